package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Options selects the slog handler and where records go.
type Options struct {
	// Buffer holds records in memory until SetOutput is called. Used while
	// the register viewer owns the terminal.
	Buffer bool
	Level  string
	Format string
	// File, when set, receives a copy of every record.
	File string
}

// teeWriter writes to a live target or a memory buffer and always copies to
// an optional file.
type teeWriter struct {
	mu        sync.Mutex
	pending   bytes.Buffer
	target    io.Writer
	file      *os.File
	buffering bool
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	switch {
	case w.buffering:
		w.pending.Write(p)
	case w.target != nil:
		if _, err := w.target.Write(p); err != nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(p), firstErr
}

var writer *teeWriter

// ParseLevel maps a level name to a slog level, defaulting to INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs a new default slog logger. Without buffering, records go to
// stderr until SetOutput changes the target.
func Init(opts Options) error {
	w := &teeWriter{buffering: opts.Buffer}
	if !opts.Buffer {
		w.target = os.Stderr
	}
	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		w.file = file
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if strings.ToLower(opts.Format) == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	writer = w
	slog.SetDefault(slog.New(handler))
	return nil
}

// SetOutput flushes buffered records to target and switches to live output.
func SetOutput(target io.Writer) error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	if writer.pending.Len() > 0 {
		if _, err := target.Write(writer.pending.Bytes()); err != nil {
			return err
		}
		writer.pending.Reset()
	}
	writer.target = target
	writer.buffering = false
	return nil
}

// BufferOutput stops live output and starts buffering.
func BufferOutput() {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	writer.target = nil
	writer.buffering = true
}

// Close flushes pending records and closes the log file.
func Close() error {
	if writer == nil {
		return nil
	}
	writer.mu.Lock()
	defer writer.mu.Unlock()

	var firstErr error
	if writer.pending.Len() > 0 {
		// Pending records were already copied to the file; without a live
		// target they would be lost, so stderr gets them.
		if _, err := os.Stderr.Write(writer.pending.Bytes()); err != nil {
			firstErr = err
		}
		writer.pending.Reset()
	}
	if writer.file != nil {
		if err := writer.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		writer.file = nil
	}
	return firstErr
}
