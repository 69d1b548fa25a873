// Package domain contains core entities, error kinds and collaborator interfaces.
// This is the innermost layer - no infrastructure dependencies.
package domain

import (
	"errors"
	"time"
)

// Well-known file names inside the application's config directory.
const (
	SignalFileName   = "db.sig"
	RegistryFileName = "instance.json"
	InstanceLockName = "instance.lock"
	ConfigDBName     = "config.db"
	SettingsFileName = "sigwatch.toml"
)

// Error kinds of the signalling subsystem.
var (
	// ErrPathUninitialized means the signal file was used before setup ran.
	ErrPathUninitialized = errors.New("signal path not initialized")
	// ErrAlreadyInitialized is returned by a second setup of write-once state.
	ErrAlreadyInitialized = errors.New("signal state already initialized")
	// ErrNotValidTarget is returned when a focus target fails the liveness check.
	ErrNotValidTarget = errors.New("not a valid target")
	// ErrStale marks an envelope older than the allowed age.
	ErrStale = errors.New("signal message expired")
	// ErrUnauthorized marks a message addressed to another process.
	ErrUnauthorized = errors.New("signal message addressed to another process")
	// ErrAlreadyWatching is returned when a watcher is started twice.
	ErrAlreadyWatching = errors.New("watcher already running")
	// ErrInstanceLocked means another primary instance holds the instance lock.
	ErrInstanceLocked = errors.New("another instance is already running")
	// ErrKeyExists means a store key was already written by another process.
	ErrKeyExists = errors.New("store key already exists")
	// ErrNotRegistered means no primary instance is recorded.
	ErrNotRegistered = errors.New("no instance registered")
)

// FileMeta is the part of a file's metadata used to detect real changes.
type FileMeta struct {
	Size    int64
	ModTime time.Time
}

// Equal reports whether both size and modification time match.
func (m FileMeta) Equal(other FileMeta) bool {
	return m.Size == other.Size && m.ModTime.Equal(other.ModTime)
}

// WindowHandle identifies a window of the current process. Opaque to the core.
type WindowHandle string

// MainWindow is the handle of the application's main window.
const MainWindow WindowHandle = "main"

// Instance is a running application instance recorded in the registry.
type Instance struct {
	PID        int       `json:"pid"`
	Executable string    `json:"executable"`
	StartedAt  time.Time `json:"started_at"`
	AppVersion string    `json:"app_version,omitempty"`
}

// ConfigItem is one row of the key/value config store.
type ConfigItem struct {
	ID        string
	Key       string
	Value     string
	CreatedAt int64
	UpdatedAt int64
}

// ConfigChange records one mutation of the config store.
type ConfigChange struct {
	ID    int64
	Key   string
	CfgID string
	CTime int64
}
