package monitor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/gammazero/deque"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/exp/maps"
	"lautenbacher.net/max31723/max31723"
)

const viewerTitle = " MAX31723 Registers "

const (
	viewerIdle int32 = iota
	viewerRunning
	viewerStopped
)

var viewerHeader = []string{"Register", "Name", "Hex", "Binary", "Min", "Max", "Errors"}

type registerHistory struct {
	values deque.Deque[int]
	errors int
	last   int
	failed bool
}

// Viewer is a TUI showing the polled registers with a bounded history.
type Viewer struct {
	tuiApp   *tview.Application
	table    *tview.Table
	logView  *tview.TextView
	history  map[max31723.Register]*registerHistory
	capacity int
	polls    int
	mu       sync.Mutex
	uiOnce   sync.Once
	ossignal chan os.Signal

	// state moves idle -> running on the first draw and to stopped once.
	// Queued updates hold life for reading so halt can wait them out.
	state atomic.Int32
	life  sync.RWMutex
	run   func() error
}

func NewViewer(capacity int, ossignal chan os.Signal) *Viewer {
	v := &Viewer{
		tuiApp:   tview.NewApplication(),
		history:  make(map[max31723.Register]*registerHistory),
		capacity: capacity,
		ossignal: ossignal,
	}
	v.run = v.tuiApp.Run
	return v
}

// LogWriter returns the pane log records should go to while the viewer runs.
func (v *Viewer) LogWriter() io.Writer {
	v.ensureUI()
	return v.logView
}

// Start runs the TUI until stopSignal is closed. It should be called as a
// goroutine.
func (v *Viewer) Start(stopSignal chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	v.ensureUI()

	done := make(chan struct{})
	go func() {
		select {
		case <-stopSignal:
			slog.Info("Stopping register viewer TUI...")
			// An application that never drew has no usable screen to stop.
			// If it is still starting up, the first draw stops it.
			if v.halt() == viewerRunning {
				v.tuiApp.Stop()
			}
		case <-done:
		}
	}()

	err := v.run()
	v.halt()
	close(done)
	if err != nil {
		slog.Error("Error running register viewer TUI", "error", err)
		v.notify(os.Interrupt)
	}
	slog.Info("Register viewer TUI has stopped.")
}

// halt marks the viewer stopped once no queued update is in flight and
// returns the previous state.
func (v *Viewer) halt() int32 {
	v.life.Lock()
	defer v.life.Unlock()
	return v.state.Swap(viewerStopped)
}

// queue runs f on the TUI goroutine and redraws. It does nothing unless the
// event loop is up, as tview blocks queued updates until the loop runs them.
// Never call it from the TUI goroutine.
func (v *Viewer) queue(f func()) {
	v.life.RLock()
	defer v.life.RUnlock()
	if v.state.Load() != viewerRunning {
		return
	}
	v.tuiApp.QueueUpdateDraw(f)
}

// notify posts sig without blocking the caller, which may be the TUI goroutine.
func (v *Viewer) notify(sig os.Signal) {
	select {
	case v.ossignal <- sig:
	default:
	}
}

// Follow redraws the viewer on every snapshot published through latest.
func (v *Viewer) Follow(latest *Latest[*Snapshot], stopSignal chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-stopSignal:
			return
		case <-latest.Channel():
			v.Update(latest.Value())
		}
	}
}

// Update records a snapshot and schedules a redraw. Safe for concurrent use.
func (v *Viewer) Update(snap *Snapshot) {
	v.mu.Lock()
	v.record(snap)
	rows, polls := v.prepareRows(), v.polls
	v.mu.Unlock()

	v.queue(func() {
		v.draw(rows, polls)
	})
}

func (v *Viewer) ensureUI() {
	v.uiOnce.Do(v.buildUI)
}

func (v *Viewer) buildUI() {
	v.table = tview.NewTable().SetBorders(false).SetFixed(1, 0)
	v.table.SetBorder(true).SetTitle(viewerTitle).SetTitleColor(tcell.ColorLightBlue)
	v.table.SetBackgroundColor(tcell.ColorDarkSlateGray)

	v.logView = tview.NewTextView().SetDynamicColors(false).SetScrollable(true)
	v.logView.SetBorder(true).SetTitle(" Log ").SetTitleColor(tcell.ColorLightBlue)
	v.logView.SetChangedFunc(func() {
		v.queue(func() {
			v.logView.ScrollToEnd()
		})
	})

	intro := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload config file and re-initialise")
	intro.SetBorder(true)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(intro, 3, 0, false).
		AddItem(v.table, 0, 2, true).
		AddItem(v.logView, 0, 1, false)

	v.tuiApp.SetRoot(layout, true).SetFocus(v.table)
	v.tuiApp.SetAfterDrawFunc(func(tcell.Screen) {
		if v.state.CompareAndSwap(viewerIdle, viewerRunning) {
			return
		}
		if v.state.Load() == viewerStopped {
			go v.tuiApp.Stop()
		}
	})
	v.tuiApp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			v.notify(os.Interrupt)
			return nil
		case 'r', 'R':
			v.notify(syscall.SIGHUP)
			return nil
		}
		return event
	})
}

// record adds a snapshot to the history. The mutex must be held.
func (v *Viewer) record(snap *Snapshot) {
	if snap == nil {
		return
	}
	v.polls++
	for _, rv := range snap.Values {
		h, ok := v.history[rv.Reg]
		if !ok {
			h = &registerHistory{}
			v.history[rv.Reg] = h
		}
		if rv.Err != nil {
			h.errors++
			h.failed = true
			continue
		}
		h.failed = false
		h.last = int(rv.Value)
		if h.values.Len() == v.capacity {
			h.values.PopFront()
		}
		h.values.PushBack(int(rv.Value))
	}
}

// prepareRows renders the table content. The mutex must be held.
func (v *Viewer) prepareRows() [][]string {
	rows := [][]string{viewerHeader}
	regs := maps.Keys(v.history)
	slices.Sort(regs)
	for _, reg := range regs {
		h := v.history[reg]
		hexStr, binStr, minStr, maxStr := "--", "--------", "--", "--"
		if h.values.Len() > 0 {
			lo, hi := h.values.At(0), h.values.At(0)
			for i := range h.values.Len() {
				lo = min(lo, h.values.At(i))
				hi = max(hi, h.values.At(i))
			}
			hexStr = fmt.Sprintf("0x%02X", h.last)
			binStr = fmt.Sprintf("%08b", h.last)
			minStr = fmt.Sprintf("0x%02X", lo)
			maxStr = fmt.Sprintf("0x%02X", hi)
		}
		if h.failed {
			hexStr = "ERR"
		}
		rows = append(rows, []string{
			fmt.Sprintf("0x%02X", uint8(reg)),
			reg.Name(),
			hexStr,
			binStr,
			minStr,
			maxStr,
			fmt.Sprintf("%d", h.errors),
		})
	}
	return rows
}

// draw fills the table. Must run on the TUI goroutine via QueueUpdateDraw.
func (v *Viewer) draw(rows [][]string, polls int) {
	v.table.Clear()
	for r, row := range rows {
		for c, text := range row {
			cell := tview.NewTableCell(text).SetExpansion(1)
			switch {
			case r == 0:
				cell.SetTextColor(tcell.ColorYellow).SetSelectable(false)
			case c == 2 && text == "ERR":
				cell.SetTextColor(tcell.ColorRed)
			default:
				cell.SetTextColor(tcell.ColorWhite)
			}
			v.table.SetCell(r, c, cell)
		}
	}
	v.table.SetTitle(fmt.Sprintf("%s(%d polls) ", viewerTitle, polls))
}
