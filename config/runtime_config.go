package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuntimeConfig defines the subset of the configuration that can be
// modified while the monitor runs. Bus parameters are applied once at
// initialisation and are not part of it.
type RuntimeConfig struct {
	Monitor MonitorConfig `yaml:"Monitor" json:"Monitor"`
}

// MarshalJSON writes PollInterval in the same "1s" form the config file uses.
func (m MonitorConfig) MarshalJSON() ([]byte, error) {
	type plain MonitorConfig
	return json.Marshal(struct {
		plain
		PollInterval string `json:"PollInterval"`
	}{plain(m), m.PollInterval.String()})
}

// UnmarshalJSON reads PollInterval as a duration string like "250ms".
func (m *MonitorConfig) UnmarshalJSON(data []byte) error {
	type plain MonitorConfig
	aux := struct {
		*plain
		PollInterval string `json:"PollInterval"`
	}{plain: (*plain)(m), PollInterval: m.PollInterval.String()}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d, err := time.ParseDuration(aux.PollInterval)
	if err != nil {
		return fmt.Errorf("Monitor.PollInterval: %w", err)
	}
	m.PollInterval = d
	return nil
}
