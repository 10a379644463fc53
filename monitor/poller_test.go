package monitor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lautenbacher.net/max31723/config"
	"lautenbacher.net/max31723/max31723"
	"lautenbacher.net/max31723/platform"
)

type fakeReader struct {
	mu     sync.Mutex
	calls  int
	first  max31723.Register
	last   max31723.Register
	values []max31723.RegisterValue
	err    error
}

func (f *fakeReader) Dump(first, last max31723.Register) ([]max31723.RegisterValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.first, f.last = first, last
	return f.values, f.err
}

func (f *fakeReader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func monitorConf(first, last int) config.MonitorConfig {
	conf := config.Default().Monitor
	conf.FirstRegister = first
	conf.LastRegister = last
	conf.PollInterval = 10 * time.Millisecond
	return conf
}

func TestPoller_Poll(t *testing.T) {
	reader := &fakeReader{values: []max31723.RegisterValue{
		{Reg: max31723.RegTempLSB, Value: 0x80},
		{Reg: max31723.RegTempMSB, Value: 0x19},
	}}
	p := NewPoller(reader, monitorConf(1, 2))

	snap := p.Poll()
	require.NotNil(t, snap)
	assert.Equal(t, max31723.RegTempLSB, reader.first)
	assert.Equal(t, max31723.RegTempMSB, reader.last)
	assert.Equal(t, reader.values, snap.Values)
	assert.False(t, snap.Time.IsZero())
	assert.Same(t, snap, p.Latest().Value())
}

func TestPoller_PollKeepsPartialResults(t *testing.T) {
	cause := errors.New("bus fault")
	reader := &fakeReader{
		values: []max31723.RegisterValue{
			{Reg: max31723.RegConfig, Value: 0x00},
			{Reg: max31723.RegTempLSB, Err: cause},
		},
		err: cause,
	}
	p := NewPoller(reader, monitorConf(0, 1))

	snap := p.Poll()
	require.Len(t, snap.Values, 2)
	assert.ErrorIs(t, snap.Values[1].Err, cause)
}

func TestPoller_StartAndStop(t *testing.T) {
	reader := &fakeReader{}
	p := NewPoller(reader, monitorConf(0, 6))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go p.Start(stop, &wg)

	assert.Eventually(t, func() bool { return reader.count() >= 3 }, time.Second, 5*time.Millisecond)
	close(stop)
	wg.Wait()

	n := reader.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, reader.count(), "no polls after stop")
}

func TestPoller_WithSimulatedDevice(t *testing.T) {
	sim := platform.NewSimPlatform(map[int]int{1: 0x80, 2: 0x19}, 0)
	dev, err := max31723.Initialize(sim, max31723.DefaultBusConfig(), func(time.Duration) {})
	require.NoError(t, err)

	p := NewPoller(dev, monitorConf(0, 2))
	snap := p.Poll()
	require.Len(t, snap.Values, 3)
	assert.Equal(t, byte(0x00), snap.Values[0].Value)
	assert.Equal(t, byte(0x80), snap.Values[1].Value)
	assert.Equal(t, byte(0x19), snap.Values[2].Value)
	for _, v := range snap.Values {
		assert.NoError(t, v.Err)
	}
}
