package platform

import (
	"errors"
	"fmt"

	"lautenbacher.net/max31723/config"
	"lautenbacher.net/max31723/max31723"
)

// Platform is a transport the MAX31723 can be driven over. Close releases
// the bus and every claimed pin.
type Platform interface {
	max31723.Transport
	Close() error
}

var (
	// ErrNotConfigured is returned by Transact before Configure succeeded.
	ErrNotConfigured = errors.New("spi bus not configured")
	// ErrUnsupported is returned for bus settings the backend cannot produce.
	ErrUnsupported = errors.New("unsupported bus setting")
	// ErrChainedTransfer is returned for requests that keep chip-select
	// asserted when the backend deasserts it after every exchange.
	ErrChainedTransfer = errors.New("chip-select cannot stay asserted across transactions")
)

// New returns the backend selected by conf.Hardware.Backend.
func New(conf *config.Config) (Platform, error) {
	switch conf.Hardware.Backend {
	case config.BackendPeriph:
		return NewPeriphPlatform(conf.Hardware.SPIPort), nil
	case config.BackendRpio:
		return NewRpioPlatform(), nil
	case config.BackendSim:
		return NewSimPlatform(conf.Hardware.Simulation.Registers, conf.Hardware.Simulation.FailAfter), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", conf.Hardware.Backend)
	}
}

// checkCommon rejects settings none of the Linux backends can drive.
func checkCommon(cfg max31723.BusConfig) error {
	if cfg.Role != max31723.RoleController {
		return fmt.Errorf("%w: role %s", ErrUnsupported, cfg.Role)
	}
	if cfg.Width != max31723.WidthStandard {
		return fmt.Errorf("%w: %s data width", ErrUnsupported, cfg.Width)
	}
	if cfg.WordSize != 8 {
		return fmt.Errorf("%w: %d bit words", ErrUnsupported, cfg.WordSize)
	}
	return nil
}
