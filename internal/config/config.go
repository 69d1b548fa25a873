// Package config loads the sigwatch.toml settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the settings read from sigwatch.toml.
type Config struct {
	Watcher WatcherConfig `toml:"watcher"`
	Log     LogConfig     `toml:"log"`
}

// WatcherConfig tunes the signal file watcher.
type WatcherConfig struct {
	DebounceMS        int `toml:"debounce_ms"`
	MaxMessageAgeSecs int `toml:"max_message_age_secs"`
	BatchBuffer       int `toml:"batch_buffer"`
}

// LogConfig selects the log level and an optional file sink.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Watcher: WatcherConfig{
			DebounceMS:        20,
			MaxMessageAgeSecs: 10,
			BatchBuffer:       16,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults;
// exists reports whether the file was found.
func Load(path string) (cfg *Config, exists bool, err error) {
	c := Default()

	file, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, false, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		exists = true
		if err := toml.NewDecoder(file).Decode(&c); err != nil {
			return nil, false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, false, err
	}
	return &c, exists, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Watcher.DebounceMS < 1 || c.Watcher.DebounceMS > 1000 {
		return fmt.Errorf("watcher.debounce_ms must be between 1 and 1000, got %d", c.Watcher.DebounceMS)
	}
	if c.Watcher.MaxMessageAgeSecs < 1 {
		return fmt.Errorf("watcher.max_message_age_secs must be at least 1, got %d", c.Watcher.MaxMessageAgeSecs)
	}
	if c.Watcher.BatchBuffer < 1 {
		return fmt.Errorf("watcher.batch_buffer must be at least 1, got %d", c.Watcher.BatchBuffer)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}

// Debounce returns the debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watcher.DebounceMS) * time.Millisecond
}

// MaxMessageAge returns the staleness limit for signal messages.
func (c *Config) MaxMessageAge() time.Duration {
	return time.Duration(c.Watcher.MaxMessageAgeSecs) * time.Second
}

// CreateSample writes the default settings to path. An existing file is
// left alone.
func CreateSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}
	data, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode sample config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
