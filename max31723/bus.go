package max31723

import (
	"fmt"
	"strings"
	"time"
)

// Role selects which side of the bus the host plays.
type Role int

const (
	RoleController Role = iota
	RolePeripheral
)

// Mode is the SPI clock mode. CPOL is the high order bit, CPHA the low order bit.
type Mode int

const (
	Mode0 Mode = iota
	Mode1
	Mode2
	Mode3 // clock idles high, data sampled on the trailing edge
)

// CPOL returns the clock polarity bit of the mode.
func (m Mode) CPOL() uint8 { return uint8(m>>1) & 1 }

// CPHA returns the clock phase bit of the mode.
func (m Mode) CPHA() uint8 { return uint8(m) & 1 }

// Width is the number of data lanes used per clock.
type Width int

const (
	WidthStandard Width = iota // MOSI + MISO, one bit per clock
	WidthQuad
)

// Polarity is the asserted level of the chip-select line.
type Polarity int

const (
	ActiveLow Polarity = iota
	ActiveHigh
)

// Level returns the electrical level (0 or 1) of an asserted line.
func (p Polarity) Level() uint8 {
	if p == ActiveHigh {
		return 1
	}
	return 0
}

func (r Role) String() string {
	if r == RolePeripheral {
		return "peripheral"
	}
	return "controller"
}

func (r *Role) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "controller", "master":
		*r = RoleController
	case "peripheral", "client":
		*r = RolePeripheral
	default:
		return fmt.Errorf("unknown bus role %q", text)
	}
	return nil
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (w Width) String() string {
	if w == WidthQuad {
		return "quad"
	}
	return "standard"
}

func (w *Width) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "standard", "":
		*w = WidthStandard
	case "quad":
		*w = WidthQuad
	default:
		return fmt.Errorf("unknown data width %q", text)
	}
	return nil
}

func (w Width) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (p Polarity) String() string {
	if p == ActiveHigh {
		return "high"
	}
	return "low"
}

func (p *Polarity) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "high", "active-high":
		*p = ActiveHigh
	case "low", "active-low":
		*p = ActiveLow
	default:
		return fmt.Errorf("unknown chip-select polarity %q", text)
	}
	return nil
}

func (p Polarity) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// PinConfig describes the pins routed to the SPI peripheral.
type PinConfig struct {
	// Bus lists the clock and data lines to hand over to the SPI function.
	Bus []int `yaml:"Bus"`
	// ChipSelect is the line driven as chip-select, -1 for the controller's own CE line.
	ChipSelect int `yaml:"ChipSelect"`
	// ChipSelectChip names a gpiochip (e.g. "gpiochip0") that owns ChipSelect.
	// Empty means the line is resolved through the host's pin registry.
	ChipSelectChip string `yaml:"ChipSelectChip"`
	// Voltage is the I/O supply selection for the routed pins.
	Voltage string `yaml:"Voltage"`
}

// BusConfig is the complete, immutable set of bus parameters applied by Initialize.
type BusConfig struct {
	Role       Role          `yaml:"Role"`
	Mode       Mode          `yaml:"Mode"`
	WordSize   int           `yaml:"WordSize"`
	Width      Width         `yaml:"Width"`
	ChipSelect Polarity      `yaml:"ChipSelect"`
	SpeedHz    int           `yaml:"SpeedHz"`
	Device     int           `yaml:"Device"`
	Pins       PinConfig     `yaml:"Pins"`
	ResetDelay time.Duration `yaml:"ResetDelay"`
}

// DefaultBusConfig returns the parameters the MAX31723 needs: controller role,
// mode 3, 8 bit words on two data lines, active-high chip select at 10 kHz.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Role:       RoleController,
		Mode:       Mode3,
		WordSize:   8,
		Width:      WidthStandard,
		ChipSelect: ActiveHigh,
		SpeedHz:    10000,
		Device:     0,
		Pins: PinConfig{
			ChipSelect: -1,
			Voltage:    "VDDIOH",
		},
		ResetDelay: 100 * time.Millisecond,
	}
}

// Validate checks that the configuration is one the transactor can drive.
func (c BusConfig) Validate() error {
	if c.Role != RoleController {
		return fmt.Errorf("bus role must be controller, got %s", c.Role)
	}
	if c.Mode < Mode0 || c.Mode > Mode3 {
		return fmt.Errorf("spi mode must be between 0 and 3, got %d", c.Mode)
	}
	if c.WordSize != 8 {
		return fmt.Errorf("word size must be 8 bits, got %d", c.WordSize)
	}
	if c.Width != WidthStandard {
		return fmt.Errorf("data width must be standard, got %s", c.Width)
	}
	if c.SpeedHz <= 0 {
		return fmt.Errorf("bus speed must be positive, got %d", c.SpeedHz)
	}
	if c.Device != 0 {
		return fmt.Errorf("only chip-select index 0 is supported, got %d", c.Device)
	}
	if c.ResetDelay < 0 {
		return fmt.Errorf("reset delay must not be negative, got %s", c.ResetDelay)
	}
	return nil
}

// Request is one blocking transaction, bounded by chip-select assertion and
// deassertion.
type Request struct {
	Device int
	Tx     []byte
	// Rx receives len(Rx) inbound bytes. A nil Rx discards everything the
	// device drives back.
	Rx         []byte
	DeassertCS bool
}

// Transport is the serial bus the device hangs off.
type Transport interface {
	// Configure applies role, clock mode, word size, lane width, chip-select
	// polarity and speed.
	Configure(cfg BusConfig) error
	// ConfigurePins routes the bus and chip-select pins.
	ConfigurePins(pins PinConfig) error
	// Transact runs one blocking transaction and returns its status.
	Transact(req *Request) error
}

// DelayFunc blocks the caller for d.
type DelayFunc func(d time.Duration)
