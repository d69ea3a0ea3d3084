package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the deckrecorder daemon.
//
// Design goals:
// - Make the config file the primary configuration surface.
// - Keep flags for small overrides and for environments where a file is awkward.
// - Centralize defaults and validation so the rest of the code can assume a
//   well-formed config.
type Config struct {
	// Panel hardware configuration
	Panel PanelConfig `yaml:"panel"`

	// Recorder daemon connection configuration
	Daemon DaemonConfig `yaml:"daemon"`

	// Key-to-recording-file bindings. Fixed at startup, never mutated.
	Bindings []BindingConfig `yaml:"bindings"`

	// External playback configuration
	Playback PlaybackConfig `yaml:"playback"`

	// Tap/hold gesture configuration
	Gesture GestureFileConfig `yaml:"gesture"`

	// Button icon images
	Icons IconFileConfig `yaml:"icons"`

	// IPC configuration (event injection for scripting/debugging)
	IPC IPCConfig `yaml:"ipc"`

	// State WebSocket broadcast configuration
	StateWS StateWSConfig `yaml:"state_ws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type PanelConfig struct {
	// Type selects the panel driver: "hid" (Stream Deck over USB HID) or
	// "evdev" (display-less Linux input-device panel).
	Type string `yaml:"type"`

	// Serial selects a specific Stream Deck when several are attached.
	// Empty means "first device found".
	Serial string `yaml:"serial,omitempty"`

	// Brightness is the panel backlight percentage (0-100).
	Brightness int `yaml:"brightness"`

	// Evdev configures the evdev driver; ignored for type "hid".
	Evdev EvdevConfig `yaml:"evdev,omitempty"`
}

type EvdevConfig struct {
	// Devices is the list of input event devices to monitor.
	Devices []string `yaml:"devices,omitempty"`

	// Keys is the number of keys the panel exposes.
	Keys int `yaml:"keys,omitempty"`

	// Keymap maps Linux input key codes to panel key indexes.
	Keymap map[uint16]uint8 `yaml:"keymap,omitempty"`
}

type DaemonConfig struct {
	SocketPath string `yaml:"socket_path"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

type BindingConfig struct {
	Key  uint8  `yaml:"key"`
	Path string `yaml:"path"`
}

type PlaybackConfig struct {
	// Player is the external player binary.
	Player string `yaml:"player"`

	// TargetSink routes playback to a named output sink. Empty means the
	// default output.
	TargetSink string `yaml:"target_sink,omitempty"`
}

type GestureFileConfig struct {
	// HoldMS is the tap/hold threshold in milliseconds. A release at or
	// beyond the threshold deletes the recording; below it plays it back.
	HoldMS int `yaml:"hold_ms"`
}

type IconFileConfig struct {
	// PNG paths for the three icon states. Empty or unreadable paths fall
	// back to generated solid-color icons.
	Idle      string `yaml:"idle,omitempty"`
	Recording string `yaml:"recording,omitempty"`
	Play      string `yaml:"play,omitempty"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type StateWSConfig struct {
	// Port for the state WebSocket listener. 0 disables it.
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Panel: PanelConfig{
			Type:       "hid",
			Brightness: defaultBrightness,
		},
		Daemon: DaemonConfig{
			SocketPath: "/tmp/audio-monitor.sock",
			TimeoutMS:  defaultDaemonTimeoutMS,
		},
		Bindings: []BindingConfig{
			{Key: 0, Path: "/tmp/recording_A.wav"},
			{Key: 1, Path: "/tmp/recording_B.wav"},
		},
		Playback: PlaybackConfig{
			Player: defaultPlayer,
		},
		Gesture: GestureFileConfig{
			HoldMS: defaultHoldThresholdMS,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/deckrecorder.sock",
		},
		StateWS: StateWSConfig{
			Port: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Notes:
//   - The file must be valid YAML.
//   - Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed after the document).
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies overrides from flags on top of a loaded config.
//
// Flags should pass pointers; each override is only applied if the pointer is
// non-nil. This keeps the config file as the primary configuration source
// while still allowing ad-hoc overrides for debugging/systemd overrides.
type FlagOverrides struct {
	PanelType    *string
	PanelSerial  *string
	Brightness   *int
	DaemonSocket *string
	DaemonTimeMS *int
	HoldMS       *int
	Player       *string
	TargetSink   *string
	IPCSocket    *string
	StateWSPort  *int
	LogLevel     *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.PanelType != nil {
		cfg.Panel.Type = *o.PanelType
	}
	if o.PanelSerial != nil {
		cfg.Panel.Serial = *o.PanelSerial
	}
	if o.Brightness != nil {
		cfg.Panel.Brightness = *o.Brightness
	}
	if o.DaemonSocket != nil {
		cfg.Daemon.SocketPath = *o.DaemonSocket
	}
	if o.DaemonTimeMS != nil {
		cfg.Daemon.TimeoutMS = *o.DaemonTimeMS
	}
	if o.HoldMS != nil {
		cfg.Gesture.HoldMS = *o.HoldMS
	}
	if o.Player != nil {
		cfg.Playback.Player = *o.Player
	}
	if o.TargetSink != nil {
		cfg.Playback.TargetSink = *o.TargetSink
	}
	if o.IPCSocket != nil {
		cfg.IPC.SocketPath = *o.IPCSocket
	}
	if o.StateWSPort != nil {
		cfg.StateWS.Port = *o.StateWSPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Panel
	switch c.Panel.Type {
	case "hid":
		// Nothing else required; device discovery happens at open time.
	case "evdev":
		if len(c.Panel.Evdev.Devices) == 0 {
			return errors.New("panel.evdev.devices must not be empty for panel.type evdev")
		}
		for i, dev := range c.Panel.Evdev.Devices {
			if dev == "" {
				return fmt.Errorf("panel.evdev.devices[%d] is empty", i)
			}
		}
		if c.Panel.Evdev.Keys <= 0 || c.Panel.Evdev.Keys > 256 {
			return errors.New("panel.evdev.keys must be between 1 and 256")
		}
		if len(c.Panel.Evdev.Keymap) == 0 {
			return errors.New("panel.evdev.keymap must not be empty for panel.type evdev")
		}
		for code, key := range c.Panel.Evdev.Keymap {
			if int(key) >= c.Panel.Evdev.Keys {
				return fmt.Errorf("panel.evdev.keymap[%d] maps to key %d, beyond panel.evdev.keys", code, key)
			}
		}
	default:
		return fmt.Errorf("panel.type must be %q or %q", "hid", "evdev")
	}
	if c.Panel.Brightness < 0 || c.Panel.Brightness > 100 {
		return errors.New("panel.brightness must be between 0 and 100")
	}

	// Daemon
	if c.Daemon.SocketPath == "" {
		return errors.New("daemon.socket_path must not be empty")
	}
	if c.Daemon.TimeoutMS <= 0 {
		return errors.New("daemon.timeout_ms must be > 0")
	}

	// Bindings
	if len(c.Bindings) == 0 {
		return errors.New("bindings must not be empty")
	}
	seenKeys := make(map[uint8]bool, len(c.Bindings))
	seenPaths := make(map[string]bool, len(c.Bindings))
	for i, b := range c.Bindings {
		if b.Path == "" {
			return fmt.Errorf("bindings[%d].path is empty", i)
		}
		if !filepath.IsAbs(b.Path) {
			return fmt.Errorf("bindings[%d].path must be absolute: %s", i, b.Path)
		}
		if seenKeys[b.Key] {
			return fmt.Errorf("bindings[%d]: key %d is bound twice", i, b.Key)
		}
		if seenPaths[b.Path] {
			return fmt.Errorf("bindings[%d]: path %s is bound twice", i, b.Path)
		}
		seenKeys[b.Key] = true
		seenPaths[b.Path] = true
	}

	// Playback
	if c.Playback.Player == "" {
		return errors.New("playback.player must not be empty")
	}

	// Gesture
	if c.Gesture.HoldMS <= 0 {
		return errors.New("gesture.hold_ms must be > 0")
	}

	// IPC (empty socket path disables the IPC server)

	// State WS
	if c.StateWS.Port < 0 || c.StateWS.Port > 65535 {
		return errors.New("state_ws.port must be between 0 and 65535")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// BindingMap returns the key-to-path binding table as a map.
func (c *Config) BindingMap() map[uint8]string {
	m := make(map[uint8]string, len(c.Bindings))
	for _, b := range c.Bindings {
		m[b.Key] = b.Path
	}
	return m
}

// ToGestureConfig converts file config into the internal reducer config.
func (c *Config) ToGestureConfig() GestureConfig {
	return GestureConfig{
		HoldThreshold: time.Duration(c.Gesture.HoldMS) * time.Millisecond,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
// This is handy for config values like icon paths.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
