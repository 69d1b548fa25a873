package infra

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
)

var (
	errUnknownWindow = errors.New("unknown window")
	errNotMinimized  = errors.New("window is not minimized")
)

// WindowState is a snapshot of the headless main window.
type WindowState struct {
	Minimized bool
	Visible   bool
	Focused   bool
}

// LogWindowManager implements domain.WindowManager for a headless process.
// It keeps a record of the main window and logs every transition.
type LogWindowManager struct {
	mu     sync.Mutex
	state  WindowState
	exists bool
	logger *zap.Logger
}

// NewLogWindowManager creates a manager whose main window starts hidden
// and minimized, the way a tray-resident app starts.
func NewLogWindowManager(logger *zap.Logger) *LogWindowManager {
	return &LogWindowManager{
		state:  WindowState{Minimized: true},
		exists: true,
		logger: logger,
	}
}

// FindMainWindow returns the main window handle when it exists.
func (m *LogWindowManager) FindMainWindow() (domain.WindowHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return "", false
	}
	return domain.MainWindow, true
}

// Unminimize restores a minimized window.
func (m *LogWindowManager) Unminimize(w domain.WindowHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(w); err != nil {
		return err
	}
	if !m.state.Minimized {
		return errNotMinimized
	}
	m.state.Minimized = false
	m.logInfo("Window unminimized", zap.String("window", string(w)))
	return nil
}

// Show makes the window visible.
func (m *LogWindowManager) Show(w domain.WindowHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(w); err != nil {
		return err
	}
	m.state.Visible = true
	m.logInfo("Window shown", zap.String("window", string(w)))
	return nil
}

// SetFocus gives the window input focus.
func (m *LogWindowManager) SetFocus(w domain.WindowHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(w); err != nil {
		return err
	}
	m.state.Focused = true
	m.logInfo("Window focused", zap.String("window", string(w)))
	return nil
}

// Minimize hides the window again.
func (m *LogWindowManager) Minimize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = WindowState{Minimized: true}
	m.logDebug("Window minimized")
}

// Close drops the main window; FindMainWindow reports false afterwards.
func (m *LogWindowManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = false
	m.logDebug("Window closed")
}

// State returns the current window snapshot.
func (m *LogWindowManager) State() WindowState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *LogWindowManager) check(w domain.WindowHandle) error {
	if !m.exists || w != domain.MainWindow {
		return errUnknownWindow
	}
	return nil
}

func (m *LogWindowManager) logDebug(msg string, fields ...zap.Field) {
	if m.logger != nil {
		m.logger.Debug(msg, fields...)
	}
}

func (m *LogWindowManager) logInfo(msg string, fields ...zap.Field) {
	if m.logger != nil {
		m.logger.Info(msg, fields...)
	}
}

// Ensure LogWindowManager implements domain.WindowManager.
var _ domain.WindowManager = (*LogWindowManager)(nil)
