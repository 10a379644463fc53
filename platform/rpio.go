package platform

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
	"lautenbacher.net/max31723/max31723"
)

// RpioPlatform drives SPI0 of a Raspberry Pi through /dev/mem. The BCM
// controller supports active-high chip-select itself; a GPIO line is only
// used when the device hangs off a pin other than CE0/CE1.
type RpioPlatform struct {
	opened bool
	cs     *chipSelect
	active uint8
	mu     sync.Mutex
}

func NewRpioPlatform() *RpioPlatform {
	return &RpioPlatform{}
}

func (p *RpioPlatform) Configure(cfg max31723.BusConfig) error {
	if err := checkCommon(cfg); err != nil {
		return err
	}

	slog.Info("Initialise GPIO and Spi...")
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		rpio.Close()
		return fmt.Errorf("failed to begin spi: %w", err)
	}

	rpio.SpiSpeed(cfg.SpeedHz)
	rpio.SpiMode(cfg.Mode.CPOL(), cfg.Mode.CPHA())
	rpio.SpiChipSelect(uint8(cfg.Device))
	rpio.SpiChipSelectPolarity(uint8(cfg.Device), cfg.ChipSelect.Level())

	p.mu.Lock()
	p.opened = true
	p.active = cfg.ChipSelect.Level()
	p.mu.Unlock()
	return nil
}

func (p *RpioPlatform) ConfigurePins(pins max31723.PinConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened {
		return ErrNotConfigured
	}
	for _, offset := range pins.Bus {
		rpio.Pin(offset).Mode(rpio.Spi)
	}
	// BCM pads run at 3.3V, there is no supply selection.
	slog.Debug("SPI pins routed", "bus", pins.Bus, "voltage", pins.Voltage)

	if pins.ChipSelect >= 0 {
		cs, err := newChipSelect(openRpioLine(pins.ChipSelect), p.active)
		if err != nil {
			return err
		}
		p.cs = cs
	}
	return nil
}

func (p *RpioPlatform) Transact(req *max31723.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened {
		return ErrNotConfigured
	}
	return exchange(spiExchange, p.cs, req)
}

// spiExchange adapts rpio's in-place exchange to a separate read buffer.
func spiExchange(w, r []byte) error {
	copy(r, w)
	rpio.SpiExchange(r)
	return nil
}

func (p *RpioPlatform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened {
		return nil
	}
	if p.cs != nil {
		p.cs.close()
		p.cs = nil
	}
	rpio.SpiEnd(rpio.Spi0)
	p.opened = false
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("failed to close rpio: %w", err)
	}
	return nil
}
