package usecase

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
)

// ChangeNotifier signals other instances that configuration changed.
type ChangeNotifier interface {
	NotifyConfigChanged() error
}

// ConfigService mutates the config store and signals every successful
// mutation. A failed signal is logged; the write itself stands.
type ConfigService struct {
	store    domain.ConfigStore
	notifier ChangeNotifier
	logger   *zap.Logger
}

// NewConfigService creates a config service.
func NewConfigService(store domain.ConfigStore, notifier ChangeNotifier, logger *zap.Logger) *ConfigService {
	return &ConfigService{store: store, notifier: notifier, logger: logger}
}

// Set upserts key. ok is false when several rows share key.
func (s *ConfigService) Set(key, value string) (string, bool, error) {
	id, ok, err := s.store.UpsertByKey(key, value)
	if err != nil {
		return "", false, err
	}
	if !ok {
		s.logger.Warn("multiple rows for key, not updated", zap.String("key", key))
		return "", false, nil
	}
	s.signal(key)
	return id, true, nil
}

// Add inserts a new row even if key exists.
func (s *ConfigService) Add(key, value string) (string, error) {
	id, err := s.store.Insert(key, value)
	if err != nil {
		return "", err
	}
	s.signal(key)
	return id, nil
}

// Remove deletes the row with id.
func (s *ConfigService) Remove(id string) (bool, error) {
	removed, err := s.store.Remove(id)
	if err != nil || !removed {
		return removed, err
	}
	s.signal(id)
	return true, nil
}

// Get returns every row with key.
func (s *ConfigService) Get(key string) ([]domain.ConfigItem, error) {
	return s.store.GetByKey(key)
}

// List returns all rows.
func (s *ConfigService) List() ([]domain.ConfigItem, error) {
	return s.store.List()
}

func (s *ConfigService) signal(subject string) {
	if err := s.notifier.NotifyConfigChanged(); err != nil {
		s.logger.Warn("failed to signal config change",
			zap.String("subject", subject),
			zap.Error(err))
	}
}
