package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/message"
)

// FileSignalStore implements domain.SignalStore on a single file.
//
// Writes replace the content in place so the inode watched by every instance
// stays the same. Readers and writers serialize on an flock held on a sidecar
// "<path>.lock" file (cross-process) and on mu (within this process, where
// flock would not exclude goroutines sharing one descriptor).
type FileSignalStore struct {
	path   string
	lock   *flock.Flock
	mu     sync.Mutex
	now    func() time.Time
	logger *zap.Logger
}

// NewFileSignalStore creates a store for the signal file at path.
func NewFileSignalStore(path string, logger *zap.Logger) *FileSignalStore {
	return &FileSignalStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		now:    time.Now,
		logger: logger,
	}
}

// NewSignalStoreInDir creates a store for the well-known signal file in dir.
func NewSignalStoreInDir(dir string, logger *zap.Logger) *FileSignalStore {
	return NewFileSignalStore(filepath.Join(dir, domain.SignalFileName), logger)
}

// Path returns the signal file path.
func (s *FileSignalStore) Path() string {
	return s.path
}

// Ensure creates the signal file (and its directory) empty if missing.
// Existing content is left alone.
func (s *FileSignalStore) Ensure() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create signal directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("failed to create signal file: %w", err)
	}
	s.logger.Debug("created signal file", zap.String("path", s.path))
	return f.Close()
}

// Touch replaces the content with zero bytes. Truncation is a data
// modification on every platform, unlike a timestamp-only update which some
// platforms report like an access.
func (s *FileSignalStore) Touch() error {
	if err := s.replace(nil); err != nil {
		return fmt.Errorf("failed to touch signal file: %w", err)
	}
	s.logger.Debug("signal file touched", zap.String("path", s.path))
	return nil
}

// WriteMessage replaces the content with the encoded message.
func (s *FileSignalStore) WriteMessage(msg message.Message) error {
	data, err := message.Encode(msg)
	if err != nil {
		return err
	}
	if err := s.replace(data); err != nil {
		return fmt.Errorf("failed to write signal message: %w", err)
	}
	s.logger.Debug("signal message written",
		zap.String("action", msg.Action.Tag()),
		zap.Uint64("ctime", msg.CTime))
	return nil
}

// ReadAndValidate reads and decodes the stored message. It never returns
// decode errors: a bare touch, a torn read or a corrupt file all mean "no
// actionable message", as does a message older than maxAge.
func (s *FileSignalStore) ReadAndValidate(maxAge time.Duration) (message.Message, bool) {
	data, err := s.read()
	if err != nil {
		s.logger.Warn("failed to read signal file", zap.String("path", s.path), zap.Error(err))
		return message.Message{}, false
	}

	msg, err := message.Decode(data)
	if err != nil {
		if errors.Is(err, message.ErrEmpty) {
			s.logger.Debug("signal file holds no message")
		} else {
			s.logger.Debug("signal file holds an undecodable message", zap.Error(err))
		}
		return message.Message{}, false
	}

	now := s.now()
	if !msg.IsValid(maxAge, now) {
		s.logger.Warn("signal message ignored",
			zap.NamedError("reason", domain.ErrStale),
			zap.String("action", msg.Action.Tag()),
			zap.Duration("age", msg.Age(now)),
			zap.Duration("max_age", maxAge))
		return message.Message{}, false
	}

	return msg, true
}

// Stat returns the file's current size and modification time.
func (s *FileSignalStore) Stat() (domain.FileMeta, error) {
	return StatFileMeta(s.path)
}

// StatFileMeta returns size and modification time of path.
func StatFileMeta(path string) (domain.FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.FileMeta{}, err
	}
	return domain.FileMeta{Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *FileSignalStore) replace(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire signal lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	return os.WriteFile(s.path, data, 0600)
}

func (s *FileSignalStore) read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire signal lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	return os.ReadFile(s.path)
}

// Ensure FileSignalStore implements domain.SignalStore.
var _ domain.SignalStore = (*FileSignalStore)(nil)
