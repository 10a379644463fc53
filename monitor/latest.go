package monitor

import "sync"

// Latest holds the most recent value and signals that a new one arrived.
// Senders never block; readers only ever see the newest value.
type Latest[T any] struct {
	mu     sync.Mutex
	value  T
	notify chan struct{}
}

func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{notify: make(chan struct{}, 1)}
}

// Send replaces the held value and raises the notification if none is pending.
func (l *Latest[T]) Send(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.value = v
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Channel returns the notification channel for use in select statements.
func (l *Latest[T]) Channel() <-chan struct{} {
	return l.notify
}

// Value returns the newest value.
func (l *Latest[T]) Value() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}
