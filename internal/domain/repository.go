package domain

import (
	"context"
	"time"

	"github.com/eliteGoblin/focusd/sigwatch/internal/message"
)

// SignalStore reads and writes the shared signal file.
// Every write replaces the whole content.
type SignalStore interface {
	// Path returns the signal file path.
	Path() string

	// Ensure creates the file empty if it does not exist yet.
	Ensure() error

	// Touch replaces the content with zero bytes.
	Touch() error

	// WriteMessage replaces the content with the encoded message.
	WriteMessage(msg message.Message) error

	// ReadAndValidate returns the stored message if it decodes and is at
	// most maxAge old. Decode failures and stale messages both yield false.
	ReadAndValidate(maxAge time.Duration) (message.Message, bool)

	// Stat returns the file's current size and modification time.
	Stat() (FileMeta, error)
}

// ProcessManager inspects OS processes.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int

	// ExecutablePath returns the canonicalized executable path of pid.
	ExecutablePath(pid int) (string, error)

	// CurrentExecutable returns the canonicalized executable path of this process.
	CurrentExecutable() (string, error)
}

// WindowManager controls the main window of the current process.
type WindowManager interface {
	FindMainWindow() (WindowHandle, bool)
	Unminimize(w WindowHandle) error
	Show(w WindowHandle) error
	SetFocus(w WindowHandle) error
}

// ConfigNotifier receives the payload-free "configuration changed" notification.
type ConfigNotifier interface {
	ConfigChanged()
}

// ConfigNotifierFunc adapts a function to ConfigNotifier.
type ConfigNotifierFunc func()

// ConfigChanged calls f.
func (f ConfigNotifierFunc) ConfigChanged() { f() }

// Dispatcher acts on a validated message action.
type Dispatcher interface {
	// Dispatch returns true if the action was recognized, whether or not it
	// was addressed to this process.
	Dispatch(ctx context.Context, action message.Action) bool
}

// SignalStoreProvider hands out the process-wide signal store once setup ran.
type SignalStoreProvider interface {
	// Store returns ErrPathUninitialized before setup.
	Store() (SignalStore, error)
}

// InstanceRegistry records the primary application instance.
// Implementation: JSON file in the config directory.
type InstanceRegistry interface {
	// Register records inst as the primary instance.
	Register(inst Instance) error

	// Primary returns the recorded primary instance or ErrNotRegistered.
	Primary() (*Instance, error)

	// Clear removes the record.
	Clear() error

	// Path returns the registry file path.
	Path() string
}

// InstanceLock guarantees a single primary instance per installation.
type InstanceLock interface {
	// TryAcquire returns ErrInstanceLocked when another process holds the lock.
	TryAcquire() error

	// Release gives the lock up.
	Release() error
}

// ConfigStore is the key/value store whose writes are signalled to other
// instances.
type ConfigStore interface {
	// UpsertByKey inserts when key is absent and updates when exactly one row
	// has key. With several rows it changes nothing and returns ok=false.
	UpsertByKey(key, value string) (id string, ok bool, err error)

	// Insert always adds a new row.
	Insert(key, value string) (string, error)

	// Remove deletes a row by id. It reports whether a row existed.
	Remove(id string) (bool, error)

	GetByKey(key string) ([]ConfigItem, error)
	GetByID(id string) (*ConfigItem, error)
	List() ([]ConfigItem, error)

	// ChangesSince returns change records with id greater than after.
	ChangesSince(after int64) ([]ConfigChange, error)

	Close() error
}

// KeyProvider abstracts the source of the config store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key. It never replaces an existing
	// key and returns ErrKeyExists instead.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
