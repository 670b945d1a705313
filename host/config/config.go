// Package config loads the host bridge configuration from JSON
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"sparkbox/core"
	"sparkbox/host/serial"
	"sparkbox/protocol"
)

// Config is the host bridge configuration
type Config struct {
	// ID names this bridge in logs; generated when missing
	ID string `json:"id"`

	// AmpDevice is the serial device bound to the amp, e.g. /dev/rfcomm0
	AmpDevice string `json:"ampDevice"`
	AmpBaud   int    `json:"ampBaud,omitempty"`

	// AppDevice optionally carries the phone app side for passthrough
	AppDevice string `json:"appDevice,omitempty"`

	// MidiPort selects the MIDI input by exact name or substring
	MidiPort string `json:"midiPort,omitempty"`
	// MidiChannel is 1-16; 0 listens on all channels
	MidiChannel int `json:"midiChannel,omitempty"`

	// CC and Notes map controller or note numbers to actions such as
	// "preset:1", "toggle:DistortionTS9", "tuner", "tap", "param:Twin:2"
	CC    map[string]string `json:"cc,omitempty"`
	Notes map[string]string `json:"notes,omitempty"`

	MaxChunk        int `json:"maxChunk,omitempty"`
	PingIntervalMS  int `json:"pingIntervalMs,omitempty"`
	HealthTimeoutMS int `json:"healthTimeoutMs,omitempty"`
	TickMS          int `json:"tickMs,omitempty"`
}

// LoadConfig parses a JSON configuration and applies defaults
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(&config)

	return &config, nil
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *Config) {
	if config.ID == "" {
		config.ID = uuid.New().String()
	}
	if config.AmpDevice == "" {
		config.AmpDevice = "/dev/rfcomm0"
	}
	if config.AmpBaud == 0 {
		config.AmpBaud = serial.DefaultBaud
	}
	if config.MaxChunk == 0 {
		config.MaxChunk = protocol.DefaultChunkSize
	}
	if config.PingIntervalMS == 0 {
		config.PingIntervalMS = core.DefaultPingInterval
	}
	if config.HealthTimeoutMS == 0 {
		config.HealthTimeoutMS = core.DefaultHealthTimeout
	}
	if config.TickMS == 0 {
		config.TickMS = 2
	}
}

// DefaultConfig returns a config for a four-switch pedal sending program
// changes, with CC 80-83 on the common effect toggles
func DefaultConfig() *Config {
	config := &Config{
		CC: map[string]string{
			"80": "toggle:DistortionTS9",
			"81": "toggle:ChorusAnalog",
			"82": "tap",
			"83": "tuner",
		},
	}
	applyDefaults(config)
	return config
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sparkbox"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config at path, or returns defaults if it does not exist.
// An empty path means ConfigPath.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	config, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return config, nil
}

// Save writes the config to path, creating its directory
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Mapping converts the MIDI section into a core.Mapping
func (c *Config) Mapping() (core.Mapping, error) {
	if c.MidiChannel < 0 || c.MidiChannel > 16 {
		return core.Mapping{}, fmt.Errorf("midiChannel %d out of range 0-16", c.MidiChannel)
	}

	m := core.Mapping{Channel: c.MidiChannel - 1}

	var err error
	if m.CC, err = parseActions("cc", c.CC); err != nil {
		return core.Mapping{}, err
	}
	if m.Notes, err = parseActions("notes", c.Notes); err != nil {
		return core.Mapping{}, err
	}
	return m, nil
}

func parseActions(section string, in map[string]string) (map[uint8]core.Action, error) {
	out := make(map[uint8]core.Action, len(in))
	for key, value := range in {
		n, err := strconv.ParseUint(key, 10, 7)
		if err != nil {
			return nil, fmt.Errorf("%s: bad number %q: %w", section, key, err)
		}
		action, err := core.ParseAction(value)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %q: %w", section, key, value, err)
		}
		out[uint8(n)] = action
	}
	return out, nil
}

// BridgeConfig builds the core bridge settings
func (c *Config) BridgeConfig() (core.BridgeConfig, error) {
	mapping, err := c.Mapping()
	if err != nil {
		return core.BridgeConfig{}, err
	}

	cfg := core.DefaultBridgeConfig()
	cfg.Mapping = mapping
	cfg.MaxChunk = c.MaxChunk
	cfg.PingInterval = uint32(c.PingIntervalMS)
	cfg.HealthTimeout = uint32(c.HealthTimeoutMS)
	return cfg, nil
}
