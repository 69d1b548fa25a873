package usecase

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
)

// staticProvider hands out a fixed store, or err when store is nil.
type staticProvider struct {
	store domain.SignalStore
}

func (p staticProvider) Store() (domain.SignalStore, error) {
	if p.store == nil {
		return nil, domain.ErrPathUninitialized
	}
	return p.store, nil
}

// countingChangeNotifier implements ChangeNotifier.
type countingChangeNotifier struct {
	calls int
	err   error
}

func (n *countingChangeNotifier) NotifyConfigChanged() error {
	n.calls++
	return n.err
}

// memConfigStore is an in-memory domain.ConfigStore.
type memConfigStore struct {
	mu      sync.Mutex
	items   map[string]domain.ConfigItem
	changes []domain.ConfigChange
	nextID  int
	failErr error
}

func newMemConfigStore() *memConfigStore {
	return &memConfigStore{items: make(map[string]domain.ConfigItem)}
}

func (m *memConfigStore) UpsertByKey(key, value string) (string, bool, error) {
	if m.failErr != nil {
		return "", false, m.failErr
	}
	m.mu.Lock()
	var found []string
	for id, it := range m.items {
		if it.Key == key {
			found = append(found, id)
		}
	}
	m.mu.Unlock()

	switch len(found) {
	case 0:
		id, err := m.Insert(key, value)
		return id, err == nil, err
	case 1:
		m.mu.Lock()
		defer m.mu.Unlock()
		it := m.items[found[0]]
		it.Value = value
		m.items[found[0]] = it
		m.record(key, found[0])
		return found[0], true, nil
	default:
		return "", false, nil
	}
}

func (m *memConfigStore) Insert(key, value string) (string, error) {
	if m.failErr != nil {
		return "", m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("id-%d", m.nextID)
	m.items[id] = domain.ConfigItem{ID: id, Key: key, Value: value}
	m.record(key, id)
	return id, nil
}

func (m *memConfigStore) Remove(id string) (bool, error) {
	if m.failErr != nil {
		return false, m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return false, nil
	}
	delete(m.items, id)
	m.record(it.Key, id)
	return true, nil
}

func (m *memConfigStore) GetByKey(key string) ([]domain.ConfigItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ConfigItem
	for _, it := range m.items {
		if it.Key == key {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memConfigStore) GetByID(id string) (*domain.ConfigItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (m *memConfigStore) List() ([]domain.ConfigItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ConfigItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	return out, nil
}

func (m *memConfigStore) ChangesSince(after int64) ([]domain.ConfigChange, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ConfigChange
	for _, c := range m.changes {
		if c.ID > after {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memConfigStore) Close() error { return nil }

func (m *memConfigStore) record(key, id string) {
	m.changes = append(m.changes, domain.ConfigChange{
		ID:    int64(len(m.changes) + 1),
		Key:   key,
		CfgID: id,
	})
}

var errStoreDown = errors.New("store down")
