package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"lautenbacher.net/max31723/config"
	"lautenbacher.net/max31723/logging"
	"lautenbacher.net/max31723/max31723"
	"lautenbacher.net/max31723/monitor"
	"lautenbacher.net/max31723/platform"
)

const shutdownTimeout = 2 * time.Second

// App owns one bring-up of the device and, in watch mode, the monitor
// around it. A SIGHUP tears everything down and starts over with a freshly
// read config file.
type App struct {
	cfile    string
	watch    bool
	headless bool
	ossignal chan os.Signal
	out      io.Writer

	newPlatform func(*config.Config) (platform.Platform, error)
	delay       max31723.DelayFunc

	platform   platform.Platform
	dev        *max31723.Dev
	poller     *monitor.Poller
	viewer     *monitor.Viewer
	server     *http.Server
	watcher    *fsnotify.Watcher
	stopsignal chan struct{}
	shutdownWg sync.WaitGroup

	httpAddr atomic.Value
	reloads  atomic.Int32
}

func NewApp(ossignal chan os.Signal) *App {
	return &App{
		cfile:       config.CONFILE,
		ossignal:    ossignal,
		out:         os.Stdout,
		newPlatform: platform.New,
		delay:       time.Sleep,
	}
}

func main() {
	cfile := flag.String("config", config.CONFILE, "Config file to use")
	watch := flag.Bool("watch", false, "Keep polling the register range after the dump")
	headless := flag.Bool("headless", false, "Watch without the register viewer TUI")
	flag.Parse()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	app := NewApp(ossignal)
	app.cfile = *cfile
	app.watch = *watch
	app.headless = *headless

	code := app.Run()
	if err := logging.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close log: %v\n", err)
	}
	os.Exit(code)
}

// Run brings the device up, dumps the configured register range and, in
// watch mode, monitors it until an interrupt. It returns the exit code.
func (a *App) Run() int {
	for {
		conf, err := config.ReadConfig(a.cfile)
		if err != nil {
			slog.Error("Failed to read config", "error", err)
			return 1
		}
		watch := a.watch || conf.Monitor.Enabled
		tui := watch && !a.headless

		if err := a.initLogging(conf, tui); err != nil {
			slog.Error("Failed to initialise logging", "error", err)
			return 1
		}
		if err := a.initialise(conf); err != nil {
			slog.Error("Failed to initialise MAX31723", "error", err)
			return 1
		}
		a.dump(conf)

		if !watch {
			a.closePlatform()
			return 0
		}

		if err := a.startMonitor(conf, tui); err != nil {
			slog.Error("Failed to start monitor", "error", err)
			a.stopMonitor()
			a.closePlatform()
			return 1
		}
		sig := <-a.ossignal
		a.stopMonitor()
		a.closePlatform()

		if sig != syscall.SIGHUP {
			slog.Info("Received signal, exiting", "signal", sig)
			return 0
		}
		a.reloads.Add(1)
		slog.Info("Reloading config file and re-initialising", "file", a.cfile)
	}
}

func (a *App) initLogging(conf *config.Config, tui bool) error {
	if err := logging.Close(); err != nil {
		return err
	}
	lc := conf.Logging.CLI
	if tui {
		lc = conf.Logging.TUI
	}
	return logging.Init(logging.Options{Buffer: tui, Level: lc.Level, Format: lc.Format, File: lc.File})
}

// initialise opens the backend and runs the bring-up sequence. On failure
// nothing stays claimed.
func (a *App) initialise(conf *config.Config) error {
	p, err := a.newPlatform(conf)
	if err != nil {
		return err
	}
	dev, err := max31723.Initialize(p, conf.Hardware.Bus, a.delay)
	if err != nil {
		if cerr := p.Close(); cerr != nil {
			slog.Warn("Failed to release platform", "error", cerr)
		}
		return err
	}
	a.platform = p
	a.dev = dev
	return nil
}

func (a *App) closePlatform() {
	if a.platform == nil {
		return
	}
	if err := a.platform.Close(); err != nil {
		slog.Warn("Failed to release platform", "error", err)
	}
	a.platform = nil
	a.dev = nil
}

// dump prints every register of the monitored range. Failed reads are
// marked and do not stop the dump.
func (a *App) dump(conf *config.Config) {
	first, last := conf.Monitor.Range()
	values, err := a.dev.Dump(first, last)
	for _, v := range values {
		if v.Err != nil {
			fmt.Fprintf(a.out, "Register 0x%X: read failed (%v)\n", uint8(v.Reg), errors.Unwrap(v.Err))
			continue
		}
		fmt.Fprintf(a.out, "Register 0x%X: 0x%X\n", uint8(v.Reg), v.Value)
	}
	if err != nil {
		slog.Warn("Register dump incomplete", "error", err)
	}
	fmt.Fprintln(a.out, "Dump complete.")
}

func (a *App) startMonitor(conf *config.Config, tui bool) error {
	a.stopsignal = make(chan struct{})
	a.poller = monitor.NewPoller(a.dev, conf.Monitor)

	a.shutdownWg.Add(1)
	go a.poller.Start(a.stopsignal, &a.shutdownWg)

	if tui {
		a.viewer = monitor.NewViewer(conf.Monitor.History, a.ossignal)
		if err := logging.SetOutput(a.viewer.LogWriter()); err != nil {
			return err
		}
		a.shutdownWg.Add(2)
		go a.viewer.Start(a.stopsignal, &a.shutdownWg)
		go a.viewer.Follow(a.poller.Latest(), a.stopsignal, &a.shutdownWg)
	}

	if conf.Monitor.HTTPAddr != "" {
		if err := a.startServer(conf.Monitor.HTTPAddr); err != nil {
			return err
		}
	}
	return a.watchConfig()
}

func (a *App) startServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/api/registers", monitor.SnapshotHandler(a.poller.Latest()))
	mux.Handle("/api/config", config.ConfigHandler(a.cfile))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("can't listen on %s: %w", addr, err)
	}
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	a.httpAddr.Store(ln.Addr().String())
	slog.Info("Serving register API", "addr", ln.Addr().String())

	a.shutdownWg.Add(1)
	go func() {
		defer a.shutdownWg.Done()
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
		}
	}()
	return nil
}

// HTTPAddr returns the address the API listens on, or "" when it is off.
func (a *App) HTTPAddr() string {
	addr, _ := a.httpAddr.Load().(string)
	return addr
}

// watchConfig turns changes of the config file into a SIGHUP. The directory
// is watched as editors tend to replace the file instead of writing it.
func (a *App) watchConfig() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(a.cfile)); err != nil {
		watcher.Close()
		return err
	}
	a.watcher = watcher
	target := filepath.Clean(a.cfile)

	a.shutdownWg.Add(1)
	go func() {
		defer a.shutdownWg.Done()
		for {
			select {
			case <-a.stopsignal:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				slog.Info("Config file changed", "file", event.Name, "op", event.Op.String())
				select {
				case a.ossignal <- syscall.SIGHUP:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Config watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (a *App) stopMonitor() {
	if a.viewer != nil {
		logging.BufferOutput()
	}
	if a.stopsignal != nil {
		close(a.stopsignal)
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("HTTP server shutdown failed", "error", err)
		}
		cancel()
	}
	a.shutdownWg.Wait()
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			slog.Warn("Failed to close config watcher", "error", err)
		}
	}
	a.stopsignal, a.poller, a.viewer, a.server, a.watcher = nil, nil, nil, nil, nil
	a.httpAddr.Store("")
}
