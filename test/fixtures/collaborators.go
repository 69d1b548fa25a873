// Package fixtures provides recording collaborators for tests.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/message"
)

// RecordingWindowManager records every window call as "step:handle".
type RecordingWindowManager struct {
	mu    sync.Mutex
	calls []string

	// Missing makes FindMainWindow report no window.
	Missing bool
	// FailUnminimize makes Unminimize return an error.
	FailUnminimize bool
}

// NewRecordingWindowManager creates an empty recorder.
func NewRecordingWindowManager() *RecordingWindowManager {
	return &RecordingWindowManager{}
}

func (r *RecordingWindowManager) FindMainWindow() (domain.WindowHandle, bool) {
	if r.Missing {
		return "", false
	}
	return domain.MainWindow, true
}

func (r *RecordingWindowManager) Unminimize(w domain.WindowHandle) error {
	r.record("unminimize", w)
	if r.FailUnminimize {
		return errors.New("window is not minimized")
	}
	return nil
}

func (r *RecordingWindowManager) Show(w domain.WindowHandle) error {
	r.record("show", w)
	return nil
}

func (r *RecordingWindowManager) SetFocus(w domain.WindowHandle) error {
	r.record("set_focus", w)
	return nil
}

// Calls returns a copy of the recorded calls.
func (r *RecordingWindowManager) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// FocusSequences counts completed set_focus calls.
func (r *RecordingWindowManager) FocusSequences() int {
	n := 0
	for _, c := range r.Calls() {
		if c == "set_focus:"+string(domain.MainWindow) {
			n++
		}
	}
	return n
}

func (r *RecordingWindowManager) record(step string, w domain.WindowHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("%s:%s", step, w))
}

// CountingNotifier counts config-changed notifications.
type CountingNotifier struct {
	n atomic.Int32
}

// ConfigChanged increments the counter.
func (c *CountingNotifier) ConfigChanged() {
	c.n.Add(1)
}

// Count returns the number of notifications so far.
func (c *CountingNotifier) Count() int {
	return int(c.n.Load())
}

// RecordingDispatcher records dispatched actions. Focus actions are
// reported handled, anything else unhandled.
type RecordingDispatcher struct {
	mu      sync.Mutex
	actions []message.Action
}

func (d *RecordingDispatcher) Dispatch(_ context.Context, action message.Action) bool {
	d.mu.Lock()
	d.actions = append(d.actions, action)
	d.mu.Unlock()
	_, ok := action.(message.FocusAction)
	return ok
}

// Actions returns a copy of the dispatched actions.
func (d *RecordingDispatcher) Actions() []message.Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]message.Action(nil), d.actions...)
}

// FakeProcessManager serves PIDs and executables from maps.
type FakeProcessManager struct {
	mu          sync.Mutex
	PID         int
	Exe         string
	running     map[int]bool
	executables map[int]string
}

// NewFakeProcessManager creates a fake whose own process is pid running exe.
func NewFakeProcessManager(pid int, exe string) *FakeProcessManager {
	return &FakeProcessManager{
		PID:         pid,
		Exe:         exe,
		running:     map[int]bool{pid: true},
		executables: map[int]string{pid: exe},
	}
}

// AddProcess registers another running process.
func (f *FakeProcessManager) AddProcess(pid int, exe string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[pid] = true
	f.executables[pid] = exe
}

// Kill marks pid as no longer running.
func (f *FakeProcessManager) Kill(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.running, pid)
	delete(f.executables, pid)
}

func (f *FakeProcessManager) IsRunning(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[pid]
}

func (f *FakeProcessManager) GetCurrentPID() int {
	return f.PID
}

func (f *FakeProcessManager) ExecutablePath(pid int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exe, ok := f.executables[pid]
	if !ok {
		return "", os.ErrNotExist
	}
	return exe, nil
}

func (f *FakeProcessManager) CurrentExecutable() (string, error) {
	return f.Exe, nil
}

var (
	_ domain.WindowManager  = (*RecordingWindowManager)(nil)
	_ domain.ConfigNotifier = (*CountingNotifier)(nil)
	_ domain.Dispatcher     = (*RecordingDispatcher)(nil)
	_ domain.ProcessManager = (*FakeProcessManager)(nil)
)
