package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "RIPPLE_"

// GridConfig sets up the playing surface
type GridConfig struct {
	Size    int           `yaml:"size"    env:"SIZE"`
	Tempo   float64       `yaml:"tempo"   env:"TEMPO"`
	Tuning  string        `yaml:"tuning"  env:"TUNING"`
	Unit    time.Duration `yaml:"unit"    env:"UNIT"`    // ripple propagation unit
	Variant string        `yaml:"variant" env:"VARIANT"` // classic or extended
}

// MIDIConfig defines the synth MIDI output
type MIDIConfig struct {
	PortName   string        `yaml:"portName,omitempty" env:"PORT"`
	Channel    int           `yaml:"channel"            env:"CHANNEL"`
	NoteLength time.Duration `yaml:"noteLength"         env:"NOTE_LENGTH"`
}

// SyncConfig is the replica and relay setup
type SyncConfig struct {
	DBPath     string `yaml:"dbPath,omitempty"   env:"DB"`
	RelayURL   string `yaml:"relayURL,omitempty" env:"RELAY_URL"`
	ListenAddr string `yaml:"listenAddr"         env:"LISTEN"`
	Secret     string `yaml:"secret,omitempty"   env:"SECRET"`
	Name       string `yaml:"name,omitempty"     env:"NAME"`
}

// Config is the main configuration structure
type Config struct {
	Grid     GridConfig `yaml:"grid"              envPrefix:"GRID_"`
	MIDI     MIDIConfig `yaml:"midi"              envPrefix:"MIDI_"`
	Sync     SyncConfig `yaml:"sync"              envPrefix:"SYNC_"`
	Palette  string     `yaml:"palette,omitempty"  env:"PALETTE"` // GIMP .gpl file
	DebugLog string     `yaml:"debugLog,omitempty" env:"DEBUG_LOG"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Grid: GridConfig{
			Size:    16,
			Tempo:   150,
			Tuning:  "maj5",
			Unit:    100 * time.Millisecond,
			Variant: "classic",
		},
		MIDI: MIDIConfig{
			Channel:    1,
			NoteLength: 150 * time.Millisecond,
		},
		Sync: SyncConfig{
			ListenAddr: ":8080",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-ripple"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultDBPath is where the local replica lives when none is configured
func DefaultDBPath() string {
	dir, err := ConfigDir()
	if err != nil {
		return "ripple.db"
	}
	return filepath.Join(dir, "ripple.db")
}

// Load reads the config at path (the default path when empty), falls back
// to defaults when the file is missing, then applies RIPPLE_ env overrides
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Sync.DBPath == "" {
		cfg.Sync.DBPath = DefaultDBPath()
	}
	return cfg, nil
}

// Save writes the config to path (the default path when empty)
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// Holds the identity secret
	return os.WriteFile(path, data, 0600)
}
