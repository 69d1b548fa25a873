// Package main is the CLI entry point for sigwatch.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/config"
	"github.com/eliteGoblin/focusd/sigwatch/internal/daemon"
	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
	"github.com/eliteGoblin/focusd/sigwatch/internal/infra"
	"github.com/eliteGoblin/focusd/sigwatch/internal/logging"
	"github.com/eliteGoblin/focusd/sigwatch/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sigwatch",
	Short: "File-based signalling between instances of one application",
	Long: `sigwatch coordinates running instances of a single-instance application
through one shared signal file. Instances watch the file; a new launch asks
the running instance to focus its window, and config writes tell every
instance to reload.`,
	Version:      Version,
	SilenceUsage: true,
}

var (
	configDir  string
	debugMode  bool
	logFile    string
	logLevel   string
	debounceMS int
	maxAgeSecs int
	jsonOutput bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configDir, "config", "", "Config directory (default: user config dir)")
	pf.BoolVar(&debugMode, "debug", false, "Enable debug logging")
	pf.StringVar(&logFile, "log-file", "", "Also write logs to this file")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.IntVar(&debounceMS, "debounce-ms", 0, "Watcher debounce window in milliseconds")
	pf.IntVar(&maxAgeSecs, "max-age-secs", 0, "Maximum signal message age in seconds")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	runCmd.Flags().BoolVar(&detach, "detach", false, "Start the primary instance in the background")
	changesCmd.Flags().Int64Var(&changesSince, "since", 0, "Only changes with id greater than this")

	configCmd.AddCommand(configSetCmd, configAddCmd, configGetCmd, configRmCmd, configListCmd, changesCmd)
	rootCmd.AddCommand(runCmd, watchCmd, notifyCmd, focusCmd, configCmd, statusCmd, initCmd, versionCmd)
}

// app is the per-invocation context threaded through every command.
type app struct {
	paths  *infra.ConfigPaths
	cfg    *config.Config
	logger *zap.Logger
	pm     domain.ProcessManager
	state  *daemon.SignalState
}

// newApp resolves the config dir, loads settings, applies flag overrides
// and builds the logger.
func newApp(cmd *cobra.Command) (*app, error) {
	paths, err := infra.ResolveConfigDir(configDir)
	if err != nil {
		return nil, err
	}

	cfg, _, err := config.Load(paths.Settings)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}
	if flags.Changed("debounce-ms") {
		cfg.Watcher.DebounceMS = debounceMS
	}
	if flags.Changed("max-age-secs") {
		cfg.Watcher.MaxMessageAgeSecs = maxAgeSecs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
		Debug: debugMode,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		paths:  paths,
		cfg:    cfg,
		logger: logger,
		pm:     infra.NewProcessManager(),
		state:  daemon.NewSignalState(),
	}, nil
}

func (a *app) close() {
	if err := a.state.Close(); err != nil {
		a.logger.Warn("failed to stop watcher", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *app) watcherConfig() daemon.WatcherConfig {
	return daemon.WatcherConfig{
		Debounce:      a.cfg.Debounce(),
		MaxMessageAge: a.cfg.MaxMessageAge(),
		BatchBuffer:   a.cfg.Watcher.BatchBuffer,
	}
}

// producer initializes the state with a store and no watcher, for commands
// that only write to the signal file.
func (a *app) producer() (*usecase.Signaler, error) {
	store := infra.NewFileSignalStore(a.paths.SignalFile, a.logger)
	if err := store.Ensure(); err != nil {
		return nil, err
	}
	if err := a.state.Init(store, nil); err != nil {
		return nil, err
	}
	return usecase.NewSignaler(a.state, a.pm, a.logger), nil
}

// openConfigStore opens the encrypted config store, creating its key on
// first use.
func (a *app) openConfigStore() (*infra.EncryptedConfigStore, error) {
	key, err := infra.EnsureKey(infra.NewFileKeyProvider(a.paths.Dir))
	if err != nil {
		return nil, fmt.Errorf("config store key: %w", err)
	}
	return infra.NewEncryptedConfigStore(a.paths.Dir, key)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("sigwatch %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default sigwatch.toml into the config directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := infra.ResolveConfigDir(configDir)
		if err != nil {
			return err
		}
		if err := config.CreateSample(paths.Settings); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", paths.Settings)
		return nil
	},
}

func startedAt() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
