package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/message"
)

// Signaler is the producer side of the signal file.
type Signaler struct {
	provider       domain.SignalStoreProvider
	processManager domain.ProcessManager
	logger         *zap.Logger
}

// NewSignaler creates a producer writing through provider's store.
func NewSignaler(provider domain.SignalStoreProvider, pm domain.ProcessManager, logger *zap.Logger) *Signaler {
	return &Signaler{
		provider:       provider,
		processManager: pm,
		logger:         logger,
	}
}

// NotifyConfigChanged touches the signal file so every watcher emits a
// config-changed notification.
func (s *Signaler) NotifyConfigChanged() error {
	store, err := s.provider.Store()
	if err != nil {
		return err
	}
	if err := store.Touch(); err != nil {
		return fmt.Errorf("touch signal file: %w", err)
	}
	s.logger.Debug("config change signalled", zap.String("path", store.Path()))
	return nil
}

// RequestFocus asks the instance with pid to raise its main window. It
// returns false, without writing, when pid is not a live instance of this
// application.
func (s *Signaler) RequestFocus(pid uint32) (bool, error) {
	store, err := s.provider.Store()
	if err != nil {
		return false, err
	}

	if !s.IsValidTarget(int64(pid)) {
		s.logger.Info("focus target rejected",
			zap.Uint32("pid", pid),
			zap.NamedError("reason", domain.ErrNotValidTarget))
		return false, nil
	}

	if err := store.WriteMessage(message.New(message.Focus(pid))); err != nil {
		return false, fmt.Errorf("write focus request: %w", err)
	}
	s.logger.Info("focus requested", zap.Uint32("pid", pid))
	return true, nil
}

// IsValidTarget reports whether pid is running the same executable as
// this process. A recycled PID owned by another program fails.
func (s *Signaler) IsValidTarget(pid int64) bool {
	if pid <= 0 || pid > int64(^uint32(0)) {
		return false
	}
	p := int(pid)
	if !s.processManager.IsRunning(p) {
		return false
	}

	theirs, err := s.processManager.ExecutablePath(p)
	if err != nil {
		s.logger.Debug("cannot resolve target executable", zap.Int("pid", p), zap.Error(err))
		return false
	}
	ours, err := s.processManager.CurrentExecutable()
	if err != nil {
		s.logger.Warn("cannot resolve own executable", zap.Error(err))
		return false
	}
	return theirs == ours
}
