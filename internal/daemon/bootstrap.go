package daemon

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/infra"
)

// SignalState is the process-wide signalling state. It is either
// uninitialized or holds the signal store and its running watcher; Setup
// moves it from the first state to the second exactly once.
type SignalState struct {
	mu      sync.RWMutex
	store   domain.SignalStore
	watcher *Watcher
}

// NewSignalState returns an uninitialized state.
func NewSignalState() *SignalState {
	return &SignalState{}
}

// SetupDeps are the collaborators Setup wires into the watcher.
type SetupDeps struct {
	Dir        string
	Config     WatcherConfig
	Dispatcher domain.Dispatcher
	Notifier   domain.ConfigNotifier
	Logger     *zap.Logger
}

// Setup creates the signal file in deps.Dir if needed and starts watching
// it. A second call returns domain.ErrAlreadyInitialized. A failure leaves
// the state uninitialized so the caller can carry on without signalling.
func (s *SignalState) Setup(deps SetupDeps) error {
	store := infra.NewSignalStoreInDir(deps.Dir, deps.Logger)
	watcher := NewWatcher(deps.Config, store, deps.Dispatcher, deps.Notifier, deps.Logger)
	return s.Init(store, watcher)
}

// Init starts watcher and records it with store. Exposed for callers that
// build their own store.
func (s *SignalState) Init(store domain.SignalStore, watcher *Watcher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return domain.ErrAlreadyInitialized
	}
	if watcher != nil {
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("start signal watcher: %w", err)
		}
	}
	s.store = store
	s.watcher = watcher
	return nil
}

// Store returns the signal store, or domain.ErrPathUninitialized before
// setup.
func (s *SignalState) Store() (domain.SignalStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, domain.ErrPathUninitialized
	}
	return s.store, nil
}

// Path returns the signal file path once initialized.
func (s *SignalState) Path() (string, error) {
	store, err := s.Store()
	if err != nil {
		return "", err
	}
	return store.Path(), nil
}

// Watcher returns the running watcher, or nil.
func (s *SignalState) Watcher() *Watcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watcher
}

// Close stops the watcher. The store stays readable.
func (s *SignalState) Close() error {
	s.mu.RLock()
	w := s.watcher
	s.mu.RUnlock()
	if w == nil {
		return nil
	}
	return w.Stop()
}

// Ensure SignalState implements domain.SignalStoreProvider.
var _ domain.SignalStoreProvider = (*SignalState)(nil)
