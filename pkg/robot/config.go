package robot

import (
	"encoding/json"
	"os"
)

const DefaultConfigFile = "armgadget.json"

// Config holds the gadget configuration
type Config struct {
	Name   string       `json:"name"`
	Arm    ArmConfig    `json:"arm"`
	Broker BrokerConfig `json:"broker"`
	Listen string       `json:"listen,omitempty"`
}

// ArmConfig holds configuration for the arm's servo bus
type ArmConfig struct {
	Port        string      `json:"port"`
	Calibration Calibration `json:"calibration,omitempty"`
}

// BrokerConfig holds the MQTT connection the directives arrive on
type BrokerConfig struct {
	URL      string `json:"url,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Topic    string `json:"topic,omitempty"`
}

// IsCalibrated returns true if the arm has calibration data
func (a *ArmConfig) IsCalibrated() bool {
	return len(a.Calibration) > 0
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Name: "ArmGadget",
		Broker: BrokerConfig{
			Topic: "armgadget/directives",
		},
	}
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Fields absent
// from the file keep their DefaultConfig values.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
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
	return os.WriteFile(path, data, 0600)
}

// ConfigExists returns true if the given config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
