package platform

import (
	"fmt"
	"log/slog"
	"sync"

	"lautenbacher.net/max31723/max31723"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// PeriphPlatform drives the bus through Linux spidev using periph.io.
// spidev only knows active-low chip-select, so an active-high device gets
// its chip-select from a GPIO line and the kernel CS is disabled.
type PeriphPlatform struct {
	portName string
	port     spi.PortCloser
	conn     spi.Conn
	manualCS bool
	cs       *chipSelect
	active   uint8
	mu       sync.Mutex
}

func NewPeriphPlatform(portName string) *PeriphPlatform {
	return &PeriphPlatform{portName: portName}
}

// periphMode maps a bus configuration onto a periph.io SPI mode.
func periphMode(cfg max31723.BusConfig) (spi.Mode, error) {
	if err := checkCommon(cfg); err != nil {
		return 0, err
	}
	mode := spi.Mode(cfg.Mode)
	if cfg.ChipSelect == max31723.ActiveHigh {
		mode |= spi.NoCS
	}
	return mode, nil
}

func (p *PeriphPlatform) Configure(cfg max31723.BusConfig) error {
	mode, err := periphMode(cfg)
	if err != nil {
		return err
	}

	slog.Info("Initialise periph.io host and SPI...", "port", p.portName)
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to init periph: %w", err)
	}

	port, err := spireg.Open(p.portName)
	if err != nil {
		return fmt.Errorf("failed to open spi port %q: %w", p.portName, err)
	}

	conn, err := port.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, mode, cfg.WordSize)
	if err != nil {
		port.Close()
		return fmt.Errorf("failed to connect to spi device: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.port = port
	p.conn = conn
	p.manualCS = mode&spi.NoCS != 0
	p.active = cfg.ChipSelect.Level()
	return nil
}

func (p *PeriphPlatform) ConfigurePins(pins max31723.PinConfig) error {
	// Bus line muxing and I/O voltage are fixed by the device tree.
	slog.Debug("SPI pin routing is owned by the device tree", "bus", pins.Bus, "voltage", pins.Voltage)

	if !p.manualCS {
		return nil
	}
	if pins.ChipSelect < 0 {
		return fmt.Errorf("%w: active-high chip-select needs a GPIO line", ErrUnsupported)
	}

	var (
		line outputLine
		err  error
	)
	if pins.ChipSelectChip != "" {
		line, err = openGpiodLine(pins.ChipSelectChip, pins.ChipSelect)
	} else {
		line, err = openPeriphLine(pins.ChipSelect)
	}
	if err != nil {
		return err
	}
	cs, err := newChipSelect(line, p.active)
	if err != nil {
		return fmt.Errorf("failed to deassert chip-select: %w", err)
	}

	p.mu.Lock()
	p.cs = cs
	p.mu.Unlock()
	return nil
}

func (p *PeriphPlatform) Transact(req *max31723.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return ErrNotConfigured
	}
	if p.manualCS && p.cs == nil {
		return fmt.Errorf("%w: chip-select line not routed", ErrNotConfigured)
	}
	return exchange(p.conn.Tx, p.cs, req)
}

// exchange runs one full-duplex transfer framed by cs. With cs == nil the
// controller frames the transfer and always deasserts afterwards.
func exchange(tx func(w, r []byte) error, cs *chipSelect, req *max31723.Request) error {
	if req.Device != 0 {
		return fmt.Errorf("%w: chip-select index %d", ErrUnsupported, req.Device)
	}
	if cs == nil && !req.DeassertCS {
		return ErrChainedTransfer
	}

	if cs != nil {
		if err := cs.assert(); err != nil {
			return fmt.Errorf("failed to assert chip-select: %w", err)
		}
	}

	read := make([]byte, len(req.Tx))
	err := tx(req.Tx, read)
	if err != nil {
		err = fmt.Errorf("spi transaction failed: %w", err)
	} else if req.Rx != nil {
		copy(req.Rx, read)
	}

	if cs != nil && req.DeassertCS {
		if derr := cs.deassert(); derr != nil && err == nil {
			err = fmt.Errorf("failed to deassert chip-select: %w", derr)
		}
	}
	return err
}

func (p *PeriphPlatform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.cs != nil {
		if err := p.cs.close(); err != nil {
			firstErr = err
		}
		p.cs = nil
	}
	if p.port != nil {
		if err := p.port.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.port = nil
		p.conn = nil
	}
	return firstErr
}
