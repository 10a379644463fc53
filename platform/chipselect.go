package platform

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
	"github.com/warthog618/gpiod"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// outputLine is a GPIO output that can be driven to 0 or 1.
type outputLine interface {
	set(level uint8) error
	close() error
}

// chipSelect drives a GPIO line as chip-select for backends whose
// controller cannot produce the required polarity.
type chipSelect struct {
	line   outputLine
	active uint8
}

func newChipSelect(line outputLine, active uint8) (*chipSelect, error) {
	cs := &chipSelect{line: line, active: active}
	if err := cs.deassert(); err != nil {
		line.close()
		return nil, err
	}
	return cs, nil
}

func (cs *chipSelect) assert() error {
	return cs.line.set(cs.active)
}

func (cs *chipSelect) deassert() error {
	return cs.line.set(cs.active ^ 1)
}

func (cs *chipSelect) close() error {
	return cs.line.close()
}

// periphLine is a pin from the periph.io registry.
type periphLine struct {
	pin gpio.PinIO
}

func openPeriphLine(offset int) (*periphLine, error) {
	pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", offset))
	if pin == nil {
		return nil, fmt.Errorf("failed to find pin GPIO%d", offset)
	}
	return &periphLine{pin: pin}, nil
}

func (l *periphLine) set(level uint8) error {
	return l.pin.Out(gpio.Level(level == 1))
}

func (l *periphLine) close() error {
	return l.pin.Halt()
}

// gpiodLine is a line requested from a GPIO character device.
type gpiodLine struct {
	chip *gpiod.Chip
	line *gpiod.Line
}

func openGpiodLine(chipName string, offset int) (*gpiodLine, error) {
	chip, err := gpiod.NewChip(chipName, gpiod.WithConsumer("max31723"))
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipName, err)
	}
	line, err := chip.RequestLine(offset, gpiod.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("failed to request chip-select line %d on %s: %w", offset, chipName, err)
	}
	return &gpiodLine{chip: chip, line: line}, nil
}

func (l *gpiodLine) set(level uint8) error {
	return l.line.SetValue(int(level))
}

func (l *gpiodLine) close() error {
	err := l.line.Close()
	if cerr := l.chip.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// rpioLine is a BCM pin driven through /dev/mem.
type rpioLine struct {
	pin rpio.Pin
}

func openRpioLine(offset int) *rpioLine {
	pin := rpio.Pin(offset)
	pin.Output()
	return &rpioLine{pin: pin}
}

func (l *rpioLine) set(level uint8) error {
	if level == 1 {
		l.pin.High()
	} else {
		l.pin.Low()
	}
	return nil
}

func (l *rpioLine) close() error {
	l.pin.Input()
	return nil
}
