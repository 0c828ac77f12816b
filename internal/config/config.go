// Package config persists the daemon's small set of cosmetic defaults.
// Settings are stored as JSON at $XDG_CONFIG_HOME/pwsp/daemon.json (falling
// back to os.UserConfigDir()/pwsp/daemon.json).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DaemonConfig holds persisted daemon preferences. Both fields are
// optional: a fresh install has neither a default input nor a default
// volume and the daemon falls back to its own built-in defaults.
type DaemonConfig struct {
	DefaultInputName *string  `json:"default_input_name,omitempty"`
	DefaultVolume    *float32 `json:"default_volume,omitempty"`
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pwsp", "daemon.json"), nil
}

// Load reads the config file and returns it. If the file is missing,
// unreadable, or malformed, an empty DaemonConfig is returned and the
// defaults are written back — this is never treated as a fatal error.
func Load() DaemonConfig {
	path, err := Path()
	if err != nil {
		return DaemonConfig{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		_ = Save(DaemonConfig{})
		return DaemonConfig{}
	}
	var cfg DaemonConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		_ = Save(DaemonConfig{})
		return DaemonConfig{}
	}
	return cfg
}

// Save writes cfg to disk, creating the config directory if needed.
func Save(cfg DaemonConfig) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
