package max31723

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestModeBits(t *testing.T) {
	assert.Equal(t, uint8(1), Mode3.CPOL())
	assert.Equal(t, uint8(1), Mode3.CPHA())
	assert.Equal(t, uint8(1), Mode2.CPOL())
	assert.Equal(t, uint8(0), Mode2.CPHA())
	assert.Equal(t, uint8(0), Mode0.CPOL())
}

func TestPolarityLevel(t *testing.T) {
	assert.Equal(t, uint8(1), ActiveHigh.Level())
	assert.Equal(t, uint8(0), ActiveLow.Level())
}

func TestBusConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultBusConfig().Validate())

	tests := []struct {
		name   string
		modify func(*BusConfig)
	}{
		{"peripheral role", func(c *BusConfig) { c.Role = RolePeripheral }},
		{"mode out of range", func(c *BusConfig) { c.Mode = 4 }},
		{"16 bit words", func(c *BusConfig) { c.WordSize = 16 }},
		{"quad lanes", func(c *BusConfig) { c.Width = WidthQuad }},
		{"zero speed", func(c *BusConfig) { c.SpeedHz = 0 }},
		{"second device", func(c *BusConfig) { c.Device = 1 }},
		{"negative delay", func(c *BusConfig) { c.ResetDelay = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBusConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBusConfigYAML(t *testing.T) {
	cfg := DefaultBusConfig()
	data := `
Role: controller
Mode: 1
Width: standard
ChipSelect: low
SpeedHz: 500000
`
	assert.NoError(t, yaml.Unmarshal([]byte(data), &cfg))
	assert.Equal(t, Mode1, cfg.Mode)
	assert.Equal(t, ActiveLow, cfg.ChipSelect)
	assert.Equal(t, 500000, cfg.SpeedHz)
	assert.Equal(t, 8, cfg.WordSize, "unset fields keep their defaults")

	assert.Error(t, yaml.Unmarshal([]byte("ChipSelect: sideways"), &cfg))
	assert.Error(t, yaml.Unmarshal([]byte("Role: boss"), &cfg))
	assert.Error(t, yaml.Unmarshal([]byte("Width: octal"), &cfg))
}
