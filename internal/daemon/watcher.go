// Package daemon implements the signal file watcher and its process-wide state.
package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/infra"
)

// WatcherConfig holds watcher configuration.
type WatcherConfig struct {
	Debounce      time.Duration // Window that coalesces a burst of raw events
	MaxMessageAge time.Duration // Older messages are treated as absent
	BatchBuffer   int           // Capacity of the batch channel
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Debounce:      20 * time.Millisecond,
		MaxMessageAge: 10 * time.Second,
		BatchBuffer:   16,
	}
}

// WatchState is the watcher lifecycle state.
type WatchState int

const (
	StateStopped WatchState = iota
	StateWatching
)

func (s WatchState) String() string {
	if s == StateWatching {
		return "watching"
	}
	return "stopped"
}

// Watcher observes the signal file and turns each logical change into one
// dispatch or one config-changed notification.
//
// A collector goroutine reads fsnotify events for the file's directory,
// keeps those naming the signal file and groups them into batches over the
// debounce window. A single consumer goroutine drains the batch channel and
// owns the Deduplicator.
type Watcher struct {
	config     WatcherConfig
	store      domain.SignalStore
	dispatcher domain.Dispatcher
	notifier   domain.ConfigNotifier
	dedup      *Deduplicator
	logger     *zap.Logger

	// lifecycle serializes Start and Stop, including the wait for the
	// goroutines of the previous run. mu guards state for readers.
	lifecycle sync.Mutex
	mu        sync.Mutex
	state     WatchState

	fsw     *fsnotify.Watcher
	batches chan []fsnotify.Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates a stopped watcher.
func NewWatcher(
	config WatcherConfig,
	store domain.SignalStore,
	dispatcher domain.Dispatcher,
	notifier domain.ConfigNotifier,
	logger *zap.Logger,
) *Watcher {
	if config.BatchBuffer < 1 {
		config.BatchBuffer = 1
	}
	return &Watcher{
		config:     config,
		store:      store,
		dispatcher: dispatcher,
		notifier:   notifier,
		dedup:      NewDeduplicator(infra.StatFileMeta, logger),
		logger:     logger,
	}
}

// State returns the current lifecycle state.
func (w *Watcher) State() WatchState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start ensures the signal file exists, takes its current metadata as the
// dedup baseline and begins watching.
func (w *Watcher) Start() error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.State() == StateWatching {
		return domain.ErrAlreadyWatching
	}

	if err := w.store.Ensure(); err != nil {
		return fmt.Errorf("ensure signal file: %w", err)
	}
	w.dedup.Prime(w.store.Path())

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(w.store.Path())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	w.fsw = fsw
	w.batches = make(chan []fsnotify.Event, w.config.BatchBuffer)
	w.stopCh = make(chan struct{})
	w.setState(StateWatching)

	w.wg.Add(2)
	go w.collect(fsw, w.batches, w.stopCh)
	go w.consume(w.batches)

	w.logger.Info("signal watcher started",
		zap.String("path", w.store.Path()),
		zap.Duration("debounce", w.config.Debounce))
	return nil
}

// Stop tears the watch down and waits for in-flight handling to finish.
// Stopping a stopped watcher is a no-op.
func (w *Watcher) Stop() error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.State() == StateStopped {
		return nil
	}
	close(w.stopCh)
	err := w.fsw.Close()
	w.setState(StateStopped)

	w.wg.Wait()
	w.logger.Info("signal watcher stopped", zap.String("path", w.store.Path()))
	return err
}

func (w *Watcher) setState(s WatchState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Run starts the watcher and blocks until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	if err := w.Stop(); err != nil {
		w.logger.Warn("failed to close watch", zap.Error(err))
	}
	return ctx.Err()
}

// collect groups events for the signal file into batches. A batch opens
// with its first event and is flushed when the debounce window elapses.
func (w *Watcher) collect(fsw *fsnotify.Watcher, out chan<- []fsnotify.Event, stopCh <-chan struct{}) {
	defer w.wg.Done()
	defer close(out)

	name := filepath.Base(w.store.Path())
	var pending []fsnotify.Event
	var timer *time.Timer
	var timerCh <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			pending = append(pending, event)
			if timerCh == nil {
				timer = time.NewTimer(w.config.Debounce)
				timerCh = timer.C
			}

		case <-timerCh:
			timerCh = nil
			batch := pending
			pending = nil
			select {
			case out <- batch:
			case <-stopCh:
				return
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// consume handles batches until the collector closes the channel.
func (w *Watcher) consume(in <-chan []fsnotify.Event) {
	defer w.wg.Done()
	for batch := range in {
		w.handleBatch(batch)
	}
}

// handleBatch runs once per coalesced batch. Failures are logged and never
// stop the watcher.
func (w *Watcher) handleBatch(events []fsnotify.Event) {
	if !hasDataWrite(events) {
		return
	}
	path := w.store.Path()
	if !w.dedup.ShouldProcess(path) {
		fields := []zap.Field{zap.Int("events", len(events))}
		if last, ok := w.dedup.Last(); ok {
			fields = append(fields, zap.Int64("size", last.Size), zap.Time("mtime", last.ModTime))
		}
		w.logger.Debug("signal file unchanged, skipping", fields...)
		return
	}

	if msg, ok := w.store.ReadAndValidate(w.config.MaxMessageAge); ok {
		if w.dispatcher.Dispatch(context.Background(), msg.Action) {
			return
		}
		w.logger.Debug("unhandled action", zap.String("action", msg.Action.Tag()))
	}
	w.notifier.ConfigChanged()
}

// hasDataWrite reports whether any event modified file content. Chmod
// (metadata and access time) and Create/Remove/Rename are ignored.
func hasDataWrite(events []fsnotify.Event) bool {
	for _, e := range events {
		if e.Op.Has(fsnotify.Write) {
			return true
		}
	}
	return false
}
