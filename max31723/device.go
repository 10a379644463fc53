// Package max31723 drives the register interface of a MAX31723 SPI
// temperature sensor: bus bring-up and two-byte register transactions.
//
// Every transaction is one frame of two bytes. The first byte carries the
// register address with bit 7 as direction flag (1 = write), the second byte
// is the data to store on writes and a dummy 0xFF on reads, while the device
// drives the register value back.
//
// Datasheet: https://www.analog.com/media/en/technical-documentation/data-sheets/MAX31722-MAX31723.pdf
package max31723

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type direction int

const (
	dirRead direction = iota
	dirWrite
)

func (d direction) String() string {
	if d == dirWrite {
		return "write"
	}
	return "read"
}

// Dev is a MAX31723 on an initialised bus. It is not safe for concurrent use.
type Dev struct {
	t   Transport
	cfg BusConfig
}

// Initialize configures the bus, routes the pins and resets the configuration
// register to its power-up default, then waits cfg.ResetDelay.
func Initialize(t Transport, cfg BusConfig, delay DelayFunc) (*Dev, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &BusInitError{Stage: "validate", Err: err}
	}
	if delay == nil {
		delay = time.Sleep
	}

	slog.Debug("Configuring SPI bus", "mode", int(cfg.Mode), "speedHz", cfg.SpeedHz, "chipSelect", cfg.ChipSelect)
	if err := t.Configure(cfg); err != nil {
		return nil, &BusInitError{Stage: "configure", Err: err}
	}
	if err := t.ConfigurePins(cfg.Pins); err != nil {
		return nil, &BusInitError{Stage: "pins", Err: err}
	}

	d := &Dev{t: t, cfg: cfg}
	if err := d.WriteRegister(RegConfig, 0x00); err != nil {
		return nil, &BusInitError{Stage: "reset", Err: err}
	}
	delay(cfg.ResetDelay)
	slog.Info("MAX31723 initialised", "device", cfg.Device)
	return d, nil
}

// Config returns the bus configuration applied by Initialize.
func (d *Dev) Config() BusConfig {
	return d.cfg
}

// WriteRegister stores data in register addr.
func (d *Dev) WriteRegister(addr Register, data byte) error {
	_, err := d.exchange(dirWrite, addr, data)
	return err
}

// ReadRegister returns the value of register addr.
//
// On a failed transaction the returned byte is whatever the receive buffer
// held (zero if nothing was captured) and err is a *TransactionError. A 0x00
// value is only meaningful when err is nil.
func (d *Dev) ReadRegister(addr Register) (byte, error) {
	return d.exchange(dirRead, addr, Dummy)
}

// exchange builds the two-byte frame for dir, runs it and picks the
// authoritative inbound byte.
func (d *Dev) exchange(dir direction, addr Register, data byte) (byte, error) {
	req := Request{
		Device:     d.cfg.Device,
		Tx:         make([]byte, 2),
		DeassertCS: true,
	}
	if dir == dirWrite {
		req.Tx[0] = byte(addr) | WriteBit
	} else {
		req.Tx[0] = byte(addr) &^ WriteBit
		req.Rx = make([]byte, 2)
	}
	req.Tx[1] = data

	err := d.t.Transact(&req)
	if err != nil {
		err = &TransactionError{Op: dir.String(), Reg: addr & MaxRegister, Err: err}
		slog.Warn("SPI transaction failed", "op", dir.String(), "register", addr&MaxRegister, "error", err)
	}
	if dir == dirWrite {
		return 0, err
	}
	// Byte 0 was clocked in during the address phase.
	return req.Rx[1], err
}

// RegisterValue is one entry of a register dump.
type RegisterValue struct {
	Reg   Register
	Value byte
	Err   error
}

// Dump reads registers first through last inclusive, in address order.
// Every entry carries its own error; the returned error joins them.
func (d *Dev) Dump(first, last Register) ([]RegisterValue, error) {
	if first > last || last > MaxRegister {
		return nil, fmt.Errorf("max31723: invalid register range %s..%s", first, last)
	}
	values := make([]RegisterValue, 0, int(last-first)+1)
	var errs []error
	for reg := first; ; reg++ {
		v, err := d.ReadRegister(reg)
		values = append(values, RegisterValue{Reg: reg, Value: v, Err: err})
		if err != nil {
			errs = append(errs, err)
		}
		if reg == last {
			break
		}
	}
	return values, errors.Join(errs...)
}
