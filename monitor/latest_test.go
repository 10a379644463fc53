package monitor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatest_SendAndValue(t *testing.T) {
	l := NewLatest[int]()
	assert.Equal(t, 0, l.Value(), "zero value before first send")

	l.Send(7)
	l.Send(9)
	assert.Equal(t, 9, l.Value(), "only the newest value is kept")
}

func TestLatest_SingleNotification(t *testing.T) {
	l := NewLatest[string]()
	l.Send("a")
	l.Send("b")

	select {
	case <-l.Channel():
	default:
		t.Fatal("should have received a notification")
	}
	select {
	case <-l.Channel():
		t.Fatal("notifications must coalesce")
	default:
	}
	assert.Equal(t, "b", l.Value())
}

func TestLatest_ConcurrentSend(t *testing.T) {
	l := NewLatest[int]()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			l.Send(v)
		}(i)
	}
	wg.Wait()

	assert.Len(t, l.Channel(), 1)
	assert.GreaterOrEqual(t, l.Value(), 0)
}
