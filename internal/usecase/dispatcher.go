// Package usecase contains application business logic.
package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/message"
)

// DispatcherImpl implements domain.Dispatcher.
type DispatcherImpl struct {
	processManager domain.ProcessManager
	windows        domain.WindowManager
	logger         *zap.Logger
}

// NewDispatcher creates a dispatcher acting on this process's main window.
func NewDispatcher(pm domain.ProcessManager, windows domain.WindowManager, logger *zap.Logger) *DispatcherImpl {
	return &DispatcherImpl{
		processManager: pm,
		windows:        windows,
		logger:         logger,
	}
}

// Dispatch acts on action. A focus request addressed to another process
// is recognized and ignored. Unknown actions, and a focus request this
// process cannot serve for lack of a main window, return false.
func (d *DispatcherImpl) Dispatch(ctx context.Context, action message.Action) bool {
	switch a := action.(type) {
	case message.FocusAction:
		return d.focus(ctx, a)
	default:
		if action != nil {
			d.logger.Debug("unknown action", zap.String("action", action.Tag()))
		}
		return false
	}
}

func (d *DispatcherImpl) focus(_ context.Context, a message.FocusAction) bool {
	self := d.processManager.GetCurrentPID()
	if int64(a.Target) != int64(self) {
		d.logger.Debug("focus request ignored",
			zap.NamedError("reason", domain.ErrUnauthorized),
			zap.Uint32("target", a.Target),
			zap.Int("pid", self))
		return true
	}

	w, ok := d.windows.FindMainWindow()
	if !ok {
		d.logger.Warn("focus requested but no main window")
		return false
	}

	// Step failures are expected (e.g. unminimize on a visible window)
	if err := d.windows.Unminimize(w); err != nil {
		d.logger.Debug("unminimize failed", zap.String("window", string(w)), zap.Error(err))
	}
	if err := d.windows.Show(w); err != nil {
		d.logger.Warn("show failed", zap.String("window", string(w)), zap.Error(err))
	}
	if err := d.windows.SetFocus(w); err != nil {
		d.logger.Warn("set focus failed", zap.String("window", string(w)), zap.Error(err))
	}
	d.logger.Info("main window focused on request", zap.Int("pid", self))
	return true
}

// Ensure DispatcherImpl implements domain.Dispatcher.
var _ domain.Dispatcher = (*DispatcherImpl)(nil)
