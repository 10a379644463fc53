package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"lautenbacher.net/max31723/max31723"
)

const validHardware = `
Hardware:
  Backend: periph
  SPIPort: /dev/spidev1.0
  Bus:
    Mode: 3
    WordSize: 8
    Width: standard
    ChipSelect: high
    SpeedHz: 10000
    ResetDelay: 100ms
    Pins:
      Bus: [10, 9, 11]
      ChipSelect: 8
      ChipSelectChip: gpiochip0
      Voltage: VDDIOH
  Simulation:
    Registers: {3: 0x50, 4: 0x1F}
`

const validMonitor = `
Monitor:
  Enabled: true
  FirstRegister: 0
  LastRegister: 6
  PollInterval: 250ms
  History: 100
  HTTPAddr: ":8080"
`

const validLogging = `
Logging:
  CLI:
    Level: "WARN"
    Format: "json"
    File: "/var/log/max31723.log"
  TUI:
    Level: "DEBUG"
    Format: "text"
    File: "/tmp/max31723-tui.log"
`

func getBaseConfig() string {
	return validHardware + validMonitor + validLogging
}

func createConfigFile(t *testing.T, configData string) string {
	tempDir, err := os.MkdirTemp("", "max31723-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	configFile := filepath.Join(tempDir, CONFILE)
	err = os.WriteFile(configFile, []byte(configData), 0o644)
	if err != nil {
		t.Fatalf("Failed to write dummy config file: %v", err)
	}
	return configFile
}

func TestReadConfig(t *testing.T) {
	configFile := createConfigFile(t, getBaseConfig())

	conf, err := ReadConfig(configFile)
	assert.NoError(t, err, "ReadConfig should not return an error")

	assert.Equal(t, BackendPeriph, conf.Hardware.Backend)
	assert.Equal(t, "/dev/spidev1.0", conf.Hardware.SPIPort)
	assert.Equal(t, max31723.Mode3, conf.Hardware.Bus.Mode)
	assert.Equal(t, max31723.ActiveHigh, conf.Hardware.Bus.ChipSelect)
	assert.Equal(t, max31723.WidthStandard, conf.Hardware.Bus.Width)
	assert.Equal(t, 10000, conf.Hardware.Bus.SpeedHz)
	assert.Equal(t, 100*time.Millisecond, conf.Hardware.Bus.ResetDelay)
	assert.Equal(t, []int{10, 9, 11}, conf.Hardware.Bus.Pins.Bus)
	assert.Equal(t, 8, conf.Hardware.Bus.Pins.ChipSelect)
	assert.Equal(t, "gpiochip0", conf.Hardware.Bus.Pins.ChipSelectChip)
	assert.Equal(t, map[int]int{3: 0x50, 4: 0x1F}, conf.Hardware.Simulation.Registers)

	assert.True(t, conf.Monitor.Enabled)
	assert.Equal(t, 250*time.Millisecond, conf.Monitor.PollInterval)
	first, last := conf.Monitor.Range()
	assert.Equal(t, max31723.RegConfig, first)
	assert.Equal(t, max31723.RegTLowMSB, last)

	assert.Equal(t, "WARN", conf.Logging.CLI.Level)
	assert.Equal(t, "json", conf.Logging.CLI.Format)
	assert.Equal(t, "/var/log/max31723.log", conf.Logging.CLI.File)
	assert.Equal(t, "DEBUG", conf.Logging.TUI.Level)
	assert.Equal(t, "/tmp/max31723-tui.log", conf.Logging.TUI.File)
}

func TestReadConfig_Defaults(t *testing.T) {
	configFile := createConfigFile(t, "Hardware:\n  Backend: sim\n")

	conf, err := ReadConfig(configFile)
	assert.NoError(t, err)
	assert.Equal(t, max31723.DefaultBusConfig(), conf.Hardware.Bus)
	assert.Equal(t, 0, conf.Monitor.FirstRegister)
	assert.Equal(t, 6, conf.Monitor.LastRegister)
	assert.False(t, conf.Monitor.Enabled)
}

func TestReadConfig_MissingFile(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestReadConfig_UnknownField(t *testing.T) {
	configFile := createConfigFile(t, getBaseConfig()+"Bogus: 1\n")

	_, err := ReadConfig(configFile)
	assert.Error(t, err, "unknown top level keys are rejected")
}

func TestReadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantMsg string
	}{
		{"unknown backend", "Backend: periph", "Backend: ftdi", "Hardware.Backend must be one of"},
		{"quad width", "Width: standard", "Width: quad", "data width must be standard"},
		{"word size", "WordSize: 8", "WordSize: 16", "word size must be 8 bits"},
		{"bad polarity", "ChipSelect: high", "ChipSelect: sideways", "unknown chip-select polarity"},
		{"register out of range", "LastRegister: 6", "LastRegister: 128", "must be between 0 and 127"},
		{"inverted range", "FirstRegister: 0", "FirstRegister: 7", "must not be bigger than"},
		{"zero poll", "PollInterval: 250ms", "PollInterval: 0s", "PollInterval must be positive"},
		{"sim value", "4: 0x1F", "4: 0x100", "must be between 0 and 255"},
		{"log format", `Format: "json"`, `Format: "xml"`, "must be text or json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configData := strings.Replace(getBaseConfig(), tt.from, tt.to, 1)
			configFile := createConfigFile(t, configData)

			_, err := ReadConfig(configFile)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestMonitorValidate_CollectsAllErrors(t *testing.T) {
	m := MonitorConfig{FirstRegister: -1, LastRegister: 200, PollInterval: 0, History: 0}

	err := m.Validate()
	assert.Error(t, err)
	for _, msg := range []string{"FirstRegister", "LastRegister", "PollInterval", "History"} {
		assert.Contains(t, err.Error(), msg)
	}
}
