// Package monitor polls a register range of one device and publishes the
// results to the register viewer and the HTTP API.
package monitor

import (
	"log/slog"
	"sync"
	"time"

	"lautenbacher.net/max31723/config"
	"lautenbacher.net/max31723/max31723"
)

// RegisterReader is the part of a device the poller needs.
type RegisterReader interface {
	Dump(first, last max31723.Register) ([]max31723.RegisterValue, error)
}

// Snapshot is the result of one poll over the register range.
type Snapshot struct {
	Time   time.Time
	Values []max31723.RegisterValue
}

// Poller is the only caller of its device while it runs.
type Poller struct {
	dev      RegisterReader
	first    max31723.Register
	last     max31723.Register
	interval time.Duration
	latest   *Latest[*Snapshot]
}

func NewPoller(dev RegisterReader, conf config.MonitorConfig) *Poller {
	first, last := conf.Range()
	return &Poller{
		dev:      dev,
		first:    first,
		last:     last,
		interval: conf.PollInterval,
		latest:   NewLatest[*Snapshot](),
	}
}

// Latest returns the event carrying the newest snapshot.
func (p *Poller) Latest() *Latest[*Snapshot] {
	return p.latest
}

// Poll reads the range once and publishes the snapshot.
func (p *Poller) Poll() *Snapshot {
	values, err := p.dev.Dump(p.first, p.last)
	if err != nil {
		slog.Warn("Register poll incomplete", "first", p.first, "last", p.last, "error", err)
	}
	snap := &Snapshot{Time: time.Now(), Values: values}
	p.latest.Send(snap)
	return snap
}

// Start polls immediately and then on every tick until stopSignal is closed.
// It should be called as a goroutine.
func (p *Poller) Start(stopSignal chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	p.Poll()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopSignal:
			slog.Info("Ending register poller go-routine...")
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}
