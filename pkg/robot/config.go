package robot

import (
	"encoding/json"
	"fmt"
	"os"
)

const DefaultConfigFile = "taskbot.json"

// Config holds the hardware configuration: the servo bus and the calibration
// of every motor channel on it.
type Config struct {
	Port        string      `json:"port"`
	BaudRate    int         `json:"baud_rate,omitempty"`
	Calibration Calibration `json:"calibration,omitempty"`
}

// IsCalibrated returns true if every motor has calibration data
func (c *Config) IsCalibrated() bool {
	for _, name := range AllMotors() {
		if _, ok := c.Calibration[name]; !ok {
			return false
		}
	}
	return true
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1_000_000
	}
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
