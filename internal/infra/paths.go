package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
)

// AppDirName is the directory name used under the user config dir.
const AppDirName = "sigwatch"

// ConfigPaths holds every well-known file inside the config directory.
type ConfigPaths struct {
	Dir          string
	SignalFile   string
	RegistryFile string
	InstanceLock string
	ConfigDB     string
	Settings     string
	IsRoot       bool
}

// NewConfigPaths lays out the well-known files under dir.
func NewConfigPaths(dir string) *ConfigPaths {
	return &ConfigPaths{
		Dir:          dir,
		SignalFile:   filepath.Join(dir, domain.SignalFileName),
		RegistryFile: filepath.Join(dir, domain.RegistryFileName),
		InstanceLock: filepath.Join(dir, domain.InstanceLockName),
		ConfigDB:     filepath.Join(dir, domain.ConfigDBName),
		Settings:     filepath.Join(dir, domain.SettingsFileName),
		IsRoot:       os.Geteuid() == 0,
	}
}

// DefaultConfigDir returns the per-user config directory, or the system
// one when running as root.
func DefaultConfigDir() (string, error) {
	if os.Geteuid() == 0 {
		return filepath.Join("/var/lib", AppDirName), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(base, AppDirName), nil
}

// ResolveConfigDir validates an explicit --config directory, or creates and
// returns the default one when flag is empty. The result is canonical.
func ResolveConfigDir(flag string) (*ConfigPaths, error) {
	if flag == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create config dir: %w", err)
		}
		canonical, err := CanonicalPath(dir)
		if err != nil {
			return nil, err
		}
		return NewConfigPaths(canonical), nil
	}

	dir := ExpandHome(flag)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config directory does not exist: %s", dir)
		}
		return nil, fmt.Errorf("stat config directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config path is not a directory: %s", dir)
	}
	if err := probeWritable(dir); err != nil {
		return nil, fmt.Errorf("config directory is not writable: %s: %w", dir, err)
	}

	canonical, err := CanonicalPath(dir)
	if err != nil {
		return nil, err
	}
	return NewConfigPaths(canonical), nil
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		return home
	}
	return path
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
