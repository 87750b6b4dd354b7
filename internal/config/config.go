// Package config loads and persists envel configuration from a TOML file
// in the XDG config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all envel configuration.
type Config struct {
	General GeneralConfig `toml:"general"`
	Remote  RemoteConfig  `toml:"remote"`
	Daemon  DaemonConfig  `toml:"daemon"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	Profile string `toml:"profile"`
	DataDir string `toml:"data_dir,omitempty"`
}

// RemoteConfig holds replica endpoint settings. An empty base URL disables
// all remote operations.
type RemoteConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
	Token   string `toml:"token,omitempty"`
}

// DaemonConfig holds daemon settings.
type DaemonConfig struct {
	Addr                 string `toml:"addr"`
	WatchIntervalSeconds int    `toml:"watch_interval_seconds"`
	SweepOnStart         bool   `toml:"sweep_on_start"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			Profile: "default",
		},
		Daemon: DaemonConfig{
			Addr:                 "127.0.0.1:7480",
			WatchIntervalSeconds: 30,
			SweepOnStart:         true,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "envel")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "envel")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the directory holding local state, honoring the
// configured override.
func DataDir(cfg Config) string {
	if cfg.General.DataDir != "" {
		return cfg.General.DataDir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "envel")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "envel")
}

// DataPath returns the full path to the local database.
func DataPath(cfg Config) string {
	return filepath.Join(DataDir(cfg), "envel.db")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// RemoteToken returns the replica token from env var or config, in that
// order.
func RemoteToken(cfg Config) string {
	if tok := os.Getenv("ENVEL_REMOTE_TOKEN"); tok != "" {
		return tok
	}
	return cfg.Remote.Token
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
