package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
)

// FileRegistry implements domain.InstanceRegistry using a JSON file in the
// config directory.
type FileRegistry struct {
	path string
	lock *flock.Flock
}

// NewFileRegistry creates the registry for the well-known file in dir.
func NewFileRegistry(dir string) *FileRegistry {
	return NewFileRegistryWithPath(filepath.Join(dir, domain.RegistryFileName))
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string) *FileRegistry {
	return &FileRegistry{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// Register records inst as the primary instance.
func (r *FileRegistry) Register(inst domain.Instance) error {
	if inst.PID <= 0 {
		return fmt.Errorf("invalid pid %d", inst.PID)
	}

	// Serialize against a concurrent launch writing the same file
	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = r.lock.Unlock() }()

	return r.atomicWrite(&inst)
}

// Primary returns the recorded primary instance.
func (r *FileRegistry) Primary() (*domain.Instance, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotRegistered
		}
		return nil, err
	}

	var inst domain.Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("corrupt registry %s: %w", r.path, err)
	}
	if inst.PID <= 0 {
		return nil, domain.ErrNotRegistered
	}
	return &inst, nil
}

// Clear removes the registry file. A missing file is not an error.
func (r *FileRegistry) Clear() error {
	err := os.Remove(r.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// atomicWrite writes registry to file atomically (write + rename).
func (r *FileRegistry) atomicWrite(inst *domain.Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// FileInstanceLock implements domain.InstanceLock with a non-blocking flock.
// The OS drops the lock when the holder exits, so a crashed primary never
// blocks the next launch.
type FileInstanceLock struct {
	lock *flock.Flock
}

// NewFileInstanceLock creates the single-instance lock in dir.
func NewFileInstanceLock(dir string) *FileInstanceLock {
	return &FileInstanceLock{lock: flock.New(filepath.Join(dir, domain.InstanceLockName))}
}

// TryAcquire takes the lock or returns domain.ErrInstanceLocked.
func (l *FileInstanceLock) TryAcquire() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return domain.ErrInstanceLocked
	}
	return nil
}

// Release gives the lock up.
func (l *FileInstanceLock) Release() error {
	return l.lock.Unlock()
}

// Path returns the lock file path.
func (l *FileInstanceLock) Path() string {
	return l.lock.Path()
}

var (
	_ domain.InstanceRegistry = (*FileRegistry)(nil)
	_ domain.InstanceLock     = (*FileInstanceLock)(nil)
)
