package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"lautenbacher.net/max31723/max31723"
)

const CONFILE = "max31723.yml"

const (
	BackendPeriph = "periph"
	BackendRpio   = "rpio"
	BackendSim    = "sim"
)

type Config struct {
	Hardware HardwareConfig `yaml:"Hardware"`
	Monitor  MonitorConfig  `yaml:"Monitor"`
	Logging  LoggingConfig  `yaml:"Logging"`
}

type HardwareConfig struct {
	// Backend is one of "periph", "rpio" or "sim".
	Backend    string             `yaml:"Backend"`
	SPIPort    string             `yaml:"SPIPort"`
	Bus        max31723.BusConfig `yaml:"Bus"`
	Simulation SimulationConfig   `yaml:"Simulation"`
}

type SimulationConfig struct {
	// Registers preloads the simulated register file (address -> value).
	Registers map[int]int `yaml:"Registers"`
	// FailAfter makes every transaction after the first FailAfter ones fail.
	// Zero disables failure injection.
	FailAfter int `yaml:"FailAfter"`
}

type MonitorConfig struct {
	Enabled       bool          `yaml:"Enabled" json:"Enabled"`
	FirstRegister int           `yaml:"FirstRegister" json:"FirstRegister"`
	LastRegister  int           `yaml:"LastRegister" json:"LastRegister"`
	PollInterval  time.Duration `yaml:"PollInterval" json:"PollInterval"`
	History       int           `yaml:"History" json:"History"`
	HTTPAddr      string        `yaml:"HTTPAddr" json:"HTTPAddr"`
}

type LogConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

// LoggingConfig holds one setup for plain console runs and one for runs where
// the register viewer owns the terminal.
type LoggingConfig struct {
	CLI LogConfig `yaml:"CLI"`
	TUI LogConfig `yaml:"TUI"`
}

// Default returns a configuration for the simulated backend that dumps the
// seven documented registers.
func Default() *Config {
	return &Config{
		Hardware: HardwareConfig{
			Backend: BackendSim,
			SPIPort: "/dev/spidev0.0",
			Bus:     max31723.DefaultBusConfig(),
		},
		Monitor: MonitorConfig{
			FirstRegister: int(max31723.RegConfig),
			LastRegister:  int(max31723.RegTLowMSB),
			PollInterval:  time.Second,
			History:       500,
			HTTPAddr:      "",
		},
		Logging: LoggingConfig{
			CLI: LogConfig{Level: "INFO", Format: "text"},
			TUI: LogConfig{Level: "INFO", Format: "text"},
		},
	}
}

// ReadConfig decodes cfile on top of the defaults and validates the result.
func ReadConfig(cfile string) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	conf := Default()
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return conf, nil
}

// Validate checks the whole configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	switch c.Hardware.Backend {
	case BackendPeriph, BackendRpio, BackendSim:
	default:
		errs = append(errs, fmt.Errorf("Hardware.Backend must be one of %s, %s or %s, got %q",
			BackendPeriph, BackendRpio, BackendSim, c.Hardware.Backend))
	}
	if err := c.Hardware.Bus.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("Hardware.Bus: %w", err))
	}
	for addr, val := range c.Hardware.Simulation.Registers {
		if addr < 0 || addr > int(max31723.MaxRegister) {
			errs = append(errs, fmt.Errorf("Hardware.Simulation.Registers: address %d must be between 0 and %d", addr, max31723.MaxRegister))
		}
		if val < 0 || val > 255 {
			errs = append(errs, fmt.Errorf("Hardware.Simulation.Registers: value %d at address %d must be between 0 and 255", val, addr))
		}
	}
	if c.Hardware.Simulation.FailAfter < 0 {
		errs = append(errs, errors.New("Hardware.Simulation.FailAfter must not be negative"))
	}

	if err := c.Monitor.Validate(); err != nil {
		errs = append(errs, err)
	}

	for name, lc := range map[string]LogConfig{"CLI": c.Logging.CLI, "TUI": c.Logging.TUI} {
		switch strings.ToUpper(lc.Level) {
		case "", "DEBUG", "INFO", "WARN", "ERROR":
		default:
			errs = append(errs, fmt.Errorf("Logging.%s.Level %q is unknown", name, lc.Level))
		}
		switch strings.ToLower(lc.Format) {
		case "", "text", "json":
		default:
			errs = append(errs, fmt.Errorf("Logging.%s.Format must be text or json, got %q", name, lc.Format))
		}
	}

	return errors.Join(errs...)
}

// Validate checks the monitor section on its own, as it can be changed at runtime.
func (m MonitorConfig) Validate() error {
	var errs []error
	maxReg := int(max31723.MaxRegister)
	if m.FirstRegister < 0 || m.FirstRegister > maxReg {
		errs = append(errs, fmt.Errorf("Monitor.FirstRegister must be between 0 and %d, got %d", maxReg, m.FirstRegister))
	}
	if m.LastRegister < 0 || m.LastRegister > maxReg {
		errs = append(errs, fmt.Errorf("Monitor.LastRegister must be between 0 and %d, got %d", maxReg, m.LastRegister))
	}
	if m.FirstRegister > m.LastRegister {
		errs = append(errs, fmt.Errorf("Monitor.FirstRegister %d must not be bigger than Monitor.LastRegister %d", m.FirstRegister, m.LastRegister))
	}
	if m.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("Monitor.PollInterval must be positive, got %s", m.PollInterval))
	}
	if m.History <= 0 {
		errs = append(errs, fmt.Errorf("Monitor.History must be positive, got %d", m.History))
	}
	return errors.Join(errs...)
}

// Range returns the monitored register range.
func (m MonitorConfig) Range() (first, last max31723.Register) {
	return max31723.Register(m.FirstRegister), max31723.Register(m.LastRegister)
}
