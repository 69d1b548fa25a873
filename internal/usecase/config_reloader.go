package usecase

import (
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
)

// ConfigReloader is the config-changed subscriber. On each notification it
// reads the change log past the last seen record and hands new records to
// onChange.
type ConfigReloader struct {
	store    domain.ConfigStore
	onChange func([]domain.ConfigChange)
	logger   *zap.Logger

	mu       sync.Mutex
	lastSeen int64
}

// NewConfigReloader creates a reloader. onChange may be nil.
func NewConfigReloader(store domain.ConfigStore, onChange func([]domain.ConfigChange), logger *zap.Logger) *ConfigReloader {
	return &ConfigReloader{store: store, onChange: onChange, logger: logger}
}

// Prime skips everything already in the change log.
func (r *ConfigReloader) Prime() error {
	changes, err := r.store.ChangesSince(0)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(changes); n > 0 {
		r.lastSeen = changes[n-1].ID
	}
	return nil
}

// ConfigChanged implements domain.ConfigNotifier.
func (r *ConfigReloader) ConfigChanged() {
	if _, err := r.Reload(); err != nil {
		r.logger.Warn("config reload failed", zap.Error(err))
	}
}

// Reload fetches and forwards unseen changes.
func (r *ConfigReloader) Reload() ([]domain.ConfigChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changes, err := r.store.ChangesSince(r.lastSeen)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		r.logger.Debug("config changed, nothing new in change log")
		return nil, nil
	}

	r.lastSeen = changes[len(changes)-1].ID
	keys := make([]string, 0, len(changes))
	for _, c := range changes {
		keys = append(keys, c.Key)
	}
	r.logger.Info("config reloaded",
		zap.Int("changes", len(changes)),
		zap.Strings("keys", keys),
		zap.Int64("last_seen", r.lastSeen))

	if r.onChange != nil {
		r.onChange(changes)
	}
	return changes, nil
}

// LastSeen returns the id of the newest change handled.
func (r *ConfigReloader) LastSeen() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}

// Ensure ConfigReloader implements domain.ConfigNotifier.
var _ domain.ConfigNotifier = (*ConfigReloader)(nil)
