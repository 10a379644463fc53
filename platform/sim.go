package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gammazero/deque"
	"golang.org/x/exp/maps"
	"lautenbacher.net/max31723/max31723"
)

// ErrSimulatedFault is returned by the simulated bus once failure injection
// kicks in.
var ErrSimulatedFault = errors.New("simulated bus fault")

// MaxRecordedFrames bounds the frame log of a SimPlatform.
const MaxRecordedFrames = 1024

// SimPlatform is an in-memory MAX31723 that honours the wire framing: a
// frame with bit 7 set in byte 0 stores byte 1, any other frame returns
// [0x00, value].
type SimPlatform struct {
	mu         sync.Mutex
	regs       [int(max31723.MaxRegister) + 1]byte
	frames     deque.Deque[[]byte]
	configured bool
	pins       max31723.PinConfig
	failAfter  int
	count      int
}

func NewSimPlatform(presets map[int]int, failAfter int) *SimPlatform {
	s := &SimPlatform{failAfter: failAfter}
	addrs := maps.Keys(presets)
	slices.Sort(addrs)
	for _, addr := range addrs {
		s.regs[addr&int(max31723.MaxRegister)] = byte(presets[addr])
		slog.Debug("Simulated register preset", "register", max31723.Register(addr), "value", presets[addr])
	}
	return s
}

func (s *SimPlatform) Configure(cfg max31723.BusConfig) error {
	if err := checkCommon(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	s.configured = true
	s.mu.Unlock()
	slog.Info("Simulated SPI bus configured", "mode", int(cfg.Mode), "speedHz", cfg.SpeedHz)
	return nil
}

func (s *SimPlatform) ConfigurePins(pins max31723.PinConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured {
		return ErrNotConfigured
	}
	s.pins = pins
	return nil
}

func (s *SimPlatform) Transact(req *max31723.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.configured {
		return ErrNotConfigured
	}
	if req.Device != 0 {
		return fmt.Errorf("%w: chip-select index %d", ErrUnsupported, req.Device)
	}
	if len(req.Tx) != 2 {
		return fmt.Errorf("simulated device expects 2 byte frames, got %d", len(req.Tx))
	}

	if s.frames.Len() == MaxRecordedFrames {
		s.frames.PopFront()
	}
	s.frames.PushBack(slices.Clone(req.Tx))
	s.count++
	if s.failAfter > 0 && s.count > s.failAfter {
		return ErrSimulatedFault
	}

	addr := req.Tx[0] &^ max31723.WriteBit
	if req.Tx[0]&max31723.WriteBit != 0 {
		s.regs[addr] = req.Tx[1]
		return nil
	}
	if len(req.Rx) > 0 {
		req.Rx[0] = 0x00
	}
	if len(req.Rx) > 1 {
		req.Rx[1] = s.regs[addr]
	}
	return nil
}

// Frames returns a copy of the last MaxRecordedFrames frames, oldest first.
func (s *SimPlatform) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([][]byte, s.frames.Len())
	for i := range ret {
		ret[i] = slices.Clone(s.frames.At(i))
	}
	return ret
}

// Pins returns the pin configuration applied by ConfigurePins.
func (s *SimPlatform) Pins() max31723.PinConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pins
}

// Register returns the simulated content of reg.
func (s *SimPlatform) Register(reg max31723.Register) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg&max31723.MaxRegister]
}

func (s *SimPlatform) Close() error {
	s.mu.Lock()
	s.configured = false
	s.mu.Unlock()
	return nil
}
