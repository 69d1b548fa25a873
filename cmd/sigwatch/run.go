package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/daemon"
	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/infra"
	"github.com/eliteGoblin/focusd/sigwatch/internal/usecase"
)

var detach bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run as the primary instance, or focus the one already running",
	Long: `Takes the single-instance lock and runs until interrupted, watching the
signal file. If another instance already holds the lock, asks it to focus
its window and exits. SIGUSR1 minimizes the main window again.`,
	RunE: runRun,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the signal file without taking the instance lock",
	RunE:  runWatch,
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Tell every running instance that configuration changed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		signaler, err := a.producer()
		if err != nil {
			return err
		}
		if err := signaler.NotifyConfigChanged(); err != nil {
			return err
		}
		fmt.Println("Config change signalled")
		return nil
	},
}

var focusCmd = &cobra.Command{
	Use:   "focus <pid>",
	Short: "Ask the instance with the given PID to focus its window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid pid %q: %w", args[0], err)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		signaler, err := a.producer()
		if err != nil {
			return err
		}
		ok, err := signaler.RequestFocus(uint32(pid))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("PID %d is not a running instance of this application\n", pid)
			return nil
		}
		fmt.Printf("Focus requested for PID %d\n", pid)
		return nil
	},
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if detach {
		pid, err := daemon.StartDetached(a.paths.Dir, passthroughFlags(cmd.Flags())...)
		if err != nil {
			return fmt.Errorf("start background instance: %w", err)
		}
		fmt.Printf("Started background instance (PID %d)\n", pid)
		return nil
	}

	lock := infra.NewFileInstanceLock(a.paths.Dir)
	if err := lock.TryAcquire(); err != nil {
		if errors.Is(err, domain.ErrInstanceLocked) {
			return focusPrimary(a)
		}
		return err
	}
	defer func() { _ = lock.Release() }()

	registry := infra.NewFileRegistry(a.paths.Dir)
	exe, err := a.pm.CurrentExecutable()
	if err != nil {
		return fmt.Errorf("resolve own executable: %w", err)
	}
	inst := domain.Instance{
		PID:        a.pm.GetCurrentPID(),
		Executable: exe,
		StartedAt:  startedAt(),
		AppVersion: Version,
	}
	if err := registry.Register(inst); err != nil {
		return fmt.Errorf("register instance: %w", err)
	}
	defer func() {
		if err := registry.Clear(); err != nil {
			a.logger.Warn("failed to clear instance registry", zap.Error(err))
		}
	}()

	a.logger.Info("primary instance started",
		zap.Int("pid", inst.PID),
		zap.String("config_dir", a.paths.Dir))

	return serve(a)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	return serve(a)
}

// serve wires the watcher and blocks until SIGINT/SIGTERM. A watcher that
// cannot start leaves the process running without signalling.
func serve(a *app) error {
	windows := infra.NewLogWindowManager(a.logger)
	dispatcher := usecase.NewDispatcher(a.pm, windows, a.logger)

	var notifier domain.ConfigNotifier = domain.ConfigNotifierFunc(func() {
		a.logger.Info("config changed")
	})
	if store, err := a.openConfigStore(); err != nil {
		a.logger.Warn("config store unavailable, reload disabled", zap.Error(err))
	} else {
		defer store.Close()
		reloader := usecase.NewConfigReloader(store, nil, a.logger)
		if err := reloader.Prime(); err != nil {
			a.logger.Warn("failed to read change log", zap.Error(err))
		}
		notifier = reloader
	}

	if err := a.state.Setup(daemon.SetupDeps{
		Dir:        a.paths.Dir,
		Config:     a.watcherConfig(),
		Dispatcher: dispatcher,
		Notifier:   notifier,
		Logger:     a.logger,
	}); err != nil {
		a.logger.Error("signal watcher unavailable", zap.Error(err))
	}

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hide := make(chan os.Signal, 1)
	signal.Notify(hide, syscall.SIGUSR1)
	defer signal.Stop(hide)

	for {
		select {
		case <-hide:
			windows.Minimize()
		case <-ctx.Done():
			a.logger.Info("received shutdown signal")
			windows.Close()
			return nil
		}
	}
}

// focusPrimary runs in a launch that lost the instance lock.
func focusPrimary(a *app) error {
	registry := infra.NewFileRegistry(a.paths.Dir)
	primary, err := registry.Primary()
	if err != nil {
		if errors.Is(err, domain.ErrNotRegistered) {
			fmt.Println("Another instance is starting; nothing to focus")
			return nil
		}
		return err
	}

	signaler, err := a.producer()
	if err != nil {
		return err
	}
	ok, err := signaler.RequestFocus(uint32(primary.PID))
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("Already running (PID %d); focus requested\n", primary.PID)
	} else {
		fmt.Printf("Registered instance (PID %d) is gone or is another program\n", primary.PID)
	}
	return nil
}

// passthroughFlags forwards explicitly set global flags to a detached child.
func passthroughFlags(flags *pflag.FlagSet) []string {
	var out []string
	for _, name := range []string{"debug", "log-file", "log-level", "debounce-ms", "max-age-secs"} {
		f := flags.Lookup(name)
		if f != nil && f.Changed {
			out = append(out, "--"+name+"="+f.Value.String())
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
