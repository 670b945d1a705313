package config

import (
	"errors"
	"path/filepath"
	"testing"

	"sparkbox/core"
	"sparkbox/protocol"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig([]byte(`{"midiPort": "FCB1010"}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.AmpDevice != "/dev/rfcomm0" {
		t.Errorf("Expected default amp device, got %s", config.AmpDevice)
	}
	if config.MaxChunk != protocol.DefaultChunkSize {
		t.Errorf("Expected chunk %d, got %d", protocol.DefaultChunkSize, config.MaxChunk)
	}
	if config.HealthTimeoutMS != core.DefaultHealthTimeout {
		t.Errorf("Expected health timeout %d, got %d", core.DefaultHealthTimeout, config.HealthTimeoutMS)
	}
	if config.MidiPort != "FCB1010" {
		t.Errorf("Expected midi port FCB1010, got %s", config.MidiPort)
	}
	if len(config.ID) != 36 {
		t.Errorf("Expected a generated id, got %q", config.ID)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	if _, err := LoadConfig([]byte(`{"cc": 5`)); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

func TestMapping(t *testing.T) {
	config, err := LoadConfig([]byte(`{
		"midiChannel": 2,
		"cc": {"80": "toggle:Overdrive", "7": "param:Twin:4"},
		"notes": {"60": "preset:3"}
	}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	m, err := config.Mapping()
	if err != nil {
		t.Fatalf("Mapping failed: %v", err)
	}
	if m.Channel != 1 {
		t.Errorf("Expected zero-based channel 1, got %d", m.Channel)
	}
	if a := m.CC[80]; a.Kind != core.ActionToggle || a.Pedal != "Overdrive" {
		t.Errorf("Unexpected CC 80 action %+v", a)
	}
	if a := m.CC[7]; a.Kind != core.ActionParam || a.Param != 4 {
		t.Errorf("Unexpected CC 7 action %+v", a)
	}
	if a := m.Notes[60]; a.Kind != core.ActionPreset || a.Preset != 3 {
		t.Errorf("Unexpected note 60 action %+v", a)
	}

	omni := DefaultConfig()
	if m, _ := omni.Mapping(); m.Channel != -1 {
		t.Errorf("Expected channel 0 to mean any (-1), got %d", m.Channel)
	}
}

func TestMappingErrors(t *testing.T) {
	cases := []*Config{
		{MidiChannel: 17},
		{CC: map[string]string{"128": "tap"}},
		{CC: map[string]string{"x": "tap"}},
		{Notes: map[string]string{"60": "jump"}},
	}
	for i, c := range cases {
		if _, err := c.Mapping(); err == nil {
			t.Errorf("Case %d: expected error", i)
		}
	}

	c := &Config{Notes: map[string]string{"60": "jump"}}
	if _, err := c.Mapping(); !errors.Is(err, core.ErrBadAction) {
		t.Errorf("Expected ErrBadAction to be wrapped, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparkbox", "config.json")

	config := DefaultConfig()
	config.AmpDevice = "/dev/ttyUSB1"
	if err := config.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.AmpDevice != "/dev/ttyUSB1" {
		t.Errorf("Expected /dev/ttyUSB1, got %s", loaded.AmpDevice)
	}
	if loaded.ID != config.ID {
		t.Errorf("Expected id %s to persist, got %s", config.ID, loaded.ID)
	}
	if loaded.CC["82"] != "tap" {
		t.Errorf("Expected CC 82 tap, got %q", loaded.CC["82"])
	}
}

func TestLoadMissingFile(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Expected defaults for a missing file, got %v", err)
	}
	if config.AmpDevice == "" {
		t.Error("Expected default amp device")
	}
}

func TestBridgeConfig(t *testing.T) {
	config := DefaultConfig()
	config.PingIntervalMS = 500

	cfg, err := config.BridgeConfig()
	if err != nil {
		t.Fatalf("BridgeConfig failed: %v", err)
	}
	if cfg.PingInterval != 500 {
		t.Errorf("Expected ping 500, got %d", cfg.PingInterval)
	}
	if len(cfg.Mapping.CC) != 4 {
		t.Errorf("Expected 4 CC actions, got %d", len(cfg.Mapping.CC))
	}
}
