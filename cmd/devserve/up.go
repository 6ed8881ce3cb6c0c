package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cricv/devserve/internal/config"
	"github.com/cricv/devserve/internal/history"
	"github.com/cricv/devserve/internal/log"
	"github.com/cricv/devserve/internal/metrics"
	"github.com/cricv/devserve/internal/model"
	"github.com/cricv/devserve/internal/pipeline"
	"github.com/cricv/devserve/internal/supervisor"
	"github.com/cricv/devserve/internal/watcher"
)

// NewUpCmd creates the up command.
func NewUpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up [profile...]",
		Short: "Launch and supervise the development server",
		Long: `Up boots the development environment and supervises the server process.

The boot sequence provisions the data workspace (raw_videos, processed,
thumbnails), resolves the virtual-environment interpreter, verifies the
server port is free, and assembles the launch command. The process is then
supervised: source changes trigger a restart, crashes are retried with
exponential backoff, and a TCP probe confirms each start actually reached
a listening server.

Without arguments the "api" profile is launched. Naming several profiles
runs them concurrently; shutdown of one stops them all.

Examples:
  # Launch the API server with defaults (0.0.0.0:8000, auto-reload)
  devserve up

  # Launch on a different port without auto-reload
  devserve up --port 9000 --no-reload

  # Launch the API server and a background worker together
  devserve up api worker

  # Use a project in another directory
  devserve up -C ~/src/cricv`,
		Args: cobra.ArbitraryArgs,
		RunE: runUpCmd,
	}

	// Project location flags
	cmd.Flags().StringP("dir", "C", ".",
		"Project root directory the server runs in")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .devserve.yaml in project or home directory)")

	// Server flags
	cmd.Flags().String("host", config.DefaultHost,
		"Interface the server binds")
	cmd.Flags().IntP("port", "p", config.DefaultPort,
		"TCP port the server binds")
	cmd.Flags().String("data-dir", config.DefaultDataDir,
		"Data workspace root, relative to the project directory")

	// Supervision flags
	cmd.Flags().Bool("no-reload", false,
		"Disable watch-and-restart on source changes")
	cmd.Flags().Duration("debounce", config.DefaultDebounce,
		"Window for coalescing file events into one reload")
	cmd.Flags().Duration("ready-timeout", config.DefaultReadyTimeout,
		"How long to wait for the server port to accept connections")
	cmd.Flags().Duration("grace-timeout", config.DefaultGraceTimeout,
		"TERM-to-KILL window when stopping the server")
	cmd.Flags().Int("restart-limit", config.DefaultRestartLimit,
		"Maximum consecutive crash restarts (0 disables crash recovery)")

	// Observability flags
	cmd.Flags().Int("metrics-port", config.DefaultMetricsPort,
		"Port for the metrics/health sidecar (0 disables it)")
	cmd.Flags().Bool("no-history", false,
		"Disable run history recording")

	return cmd
}

// runUpCmd executes the up command.
func runUpCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with secret masking
	verbose := getVerboseFlag(cmd)
	logger := log.NewSecureLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, stopping...")
		cancel()
	}()

	return runUp(ctx, cmd, cfg, args, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the project directory and config file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return nil, err
	}
	cfg.WorkDir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load launch profiles from the config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath, cfg.WorkDir)

	if configPath != "" {
		cfg.Profiles, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		// Use empty config if no file found and user didn't explicitly specify one
		cfg.Profiles = &config.File{
			Profiles: make(map[string]config.Profile),
		}
	}

	return cfg, nil
}

// applyOverrides layers environment variables and then explicitly set CLI
// flags onto the config, giving the precedence defaults < file < env < flags.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	f := cmd.Flags()
	var err error

	if f.Changed("host") {
		if cfg.Host, err = f.GetString("host"); err != nil {
			return err
		}
	}
	if f.Changed("port") {
		if cfg.Port, err = f.GetInt("port"); err != nil {
			return err
		}
	}
	if f.Changed("data-dir") {
		if cfg.DataDir, err = f.GetString("data-dir"); err != nil {
			return err
		}
	}
	if f.Changed("no-reload") {
		noReload, err := f.GetBool("no-reload")
		if err != nil {
			return err
		}
		cfg.Reload = !noReload
	}
	if f.Changed("debounce") {
		if cfg.Debounce, err = f.GetDuration("debounce"); err != nil {
			return err
		}
	}
	if f.Changed("ready-timeout") {
		if cfg.ReadyTimeout, err = f.GetDuration("ready-timeout"); err != nil {
			return err
		}
	}
	if f.Changed("grace-timeout") {
		if cfg.GraceTimeout, err = f.GetDuration("grace-timeout"); err != nil {
			return err
		}
	}
	if f.Changed("restart-limit") {
		if cfg.RestartLimit, err = f.GetInt("restart-limit"); err != nil {
			return err
		}
	}
	if f.Changed("metrics-port") {
		if cfg.MetricsPort, err = f.GetInt("metrics-port"); err != nil {
			return err
		}
	}
	if f.Changed("no-history") {
		noHistory, err := f.GetBool("no-history")
		if err != nil {
			return err
		}
		if noHistory {
			cfg.HistoryDir = ""
		}
	}

	return nil
}

// primaryStatus tracks the first launched plan for the /status endpoint.
type primaryStatus struct {
	mu   sync.Mutex
	plan *model.LaunchPlan
}

// set records the plan if none is recorded yet.
func (p *primaryStatus) set(plan *model.LaunchPlan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.plan == nil {
		p.plan = plan
	}
}

// snapshot builds the current status.
func (p *primaryStatus) snapshot() metrics.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.plan == nil {
		return metrics.Status{}
	}
	return metrics.Status{
		RunID:     p.plan.RunID,
		Profile:   p.plan.Profile,
		Addr:      p.plan.Addr(),
		StartedAt: p.plan.CreatedAt,
		Uptime:    time.Since(p.plan.CreatedAt).Round(time.Second).String(),
	}
}

// runUp launches the named profiles and supervises them until shutdown.
func runUp(ctx context.Context, cmd *cobra.Command, base *config.Config, profiles []string, logger *slog.Logger) error {
	if len(profiles) == 0 {
		profiles = []string{base.Profile}
	}

	logger.Info("starting up",
		"profiles", profiles,
		"workDir", base.WorkDir,
		"reload", base.Reload,
	)

	// Open the run history store. History is best effort: a broken
	// database must not prevent the server from launching.
	var store *history.Store
	if base.HistoryDir != "" {
		var err error
		store, err = history.Open(base.HistoryDir, history.DefaultOptions())
		if err != nil {
			logger.Warn("run history disabled", "error", err)
			store = nil
		} else {
			defer store.Close() //nolint:errcheck // Best effort cleanup
			logger.Info("run history opened", "dir", base.HistoryDir)
		}
	}

	// Start the metrics sidecar
	status := &primaryStatus{}
	if base.MetricsPort != 0 {
		sidecar := metrics.NewServer(fmt.Sprintf(":%d", base.MetricsPort), status.snapshot, logger)
		sidecar.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := sidecar.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics sidecar shutdown failed", "error", err)
			}
		}()
	}

	// Launch all profiles concurrently; the first failure or shutdown
	// signal stops the whole group
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range profiles {
		g.Go(func() error {
			return launchProfile(gctx, cmd, base, name, logger, store, status)
		})
	}

	return g.Wait()
}

// launchProfile boots and supervises one launch profile.
func launchProfile(ctx context.Context, cmd *cobra.Command, base *config.Config, name string, logger *slog.Logger, store *history.Store, status *primaryStatus) error {
	cfg := *base
	cfg.Profile = name

	// Fold the named profile over the base config. An unnamed default
	// profile is allowed; anything else must be defined in the file.
	profile, defined := cfg.Profiles.GetProfile(name)
	if !defined && name != config.DefaultProfile {
		return fmt.Errorf("%w: %s", config.ErrUnknownProfile, name)
	}
	cfg.Apply(profile)

	// Re-apply env and flags so they keep precedence over the profile
	if err := applyOverrides(cmd, &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("profile %s: %w", name, err)
	}

	plan := model.NewLaunchPlan(name)
	plan.WorkDir = cfg.WorkDir
	plan.Host = cfg.Host
	plan.Port = cfg.Port
	for k, v := range profile.Env {
		plan.Env[k] = v
	}

	// A profile with an explicit command and no port of its own is a
	// worker: there is no listening socket to preflight or probe.
	if len(cfg.Command) > 0 && profile.Port == 0 {
		plan.Port = 0
	}

	// Boot: workspace, interpreter, port preflight, command
	boot := pipeline.DefaultPipeline(pipeline.Settings{
		WorkDir: cfg.WorkDir,
		DataDir: cfg.DataDir,
		Command: cfg.Command,
	}, pipeline.WithLogger(logger))

	if err := boot.Execute(ctx, plan); err != nil {
		return fmt.Errorf("boot failed for profile %s: %w", name, err)
	}
	status.set(plan)

	// Record the run before starting supervision
	if store != nil {
		rec := &model.RunRecord{
			RunID:     plan.RunID,
			Profile:   name,
			Command:   plan.Command,
			StartedAt: plan.CreatedAt,
		}
		if err := store.InsertRun(ctx, rec); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}

	// The history observer also counts starts so the finished record can
	// report how many restarts the run needed
	var starts int
	var startsMu sync.Mutex
	recordEvent := func(ev *model.RunEvent) {
		if ev.Type == model.EventStart {
			startsMu.Lock()
			starts++
			startsMu.Unlock()
		}
		if store != nil {
			// Shutdown cancels ctx before the final events land, so event
			// writes use their own context
			if err := store.InsertEvent(context.Background(), ev); err != nil {
				logger.Debug("failed to record event", "error", err)
			}
		}
	}

	opts := []supervisor.Option{
		supervisor.WithLogger(logger),
		supervisor.WithGraceTimeout(cfg.GraceTimeout),
		supervisor.WithRestartLimit(cfg.RestartLimit),
		supervisor.WithBackoffBase(cfg.BackoffBase),
		supervisor.WithObserver(recordEvent),
		supervisor.WithObserver(metrics.Observe),
	}
	if plan.Port != 0 {
		opts = append(opts, supervisor.WithReadyProbe(cfg.ReadyTimeout, cfg.ReadyInterval))
	}

	// Wire the file watcher when reloads are enabled
	if cfg.Reload {
		reloadCh, cleanup, err := startWatchers(ctx, &cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		defer cleanup()
		opts = append(opts, supervisor.WithReloads(reloadCh))
	}

	sup := supervisor.New(plan, opts...)

	fmt.Fprintf(cmd.OutOrStdout(), "Launching profile %s: %s\n", name, plan.Command[0])
	code, runErr := sup.Run(ctx)

	// Finish the history record even when shutdown already cancelled ctx
	if store != nil {
		startsMu.Lock()
		restarts := starts - 1
		startsMu.Unlock()
		if restarts < 0 {
			restarts = 0
		}
		if err := store.FinishRun(context.Background(), plan.RunID, code, restarts); err != nil {
			logger.Warn("failed to finish run record", "error", err)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, supervisor.ErrRestartLimit) {
			return fmt.Errorf("profile %s: %w", name, runErr)
		}
		return runErr
	}
	return nil
}

// startWatchers watches the configured paths and fans their debounced
// events into a single reload channel. The returned cleanup closes all
// watchers.
func startWatchers(ctx context.Context, cfg *config.Config, logger *slog.Logger) (<-chan watcher.Event, func(), error) {
	roots := cfg.WatchPaths
	if len(roots) == 0 {
		roots = []string{cfg.WorkDir}
	}

	reloadCh := make(chan watcher.Event, 1)
	var watchers []*watcher.Watcher

	cleanup := func() {
		for _, w := range watchers {
			if err := w.Close(); err != nil {
				logger.Debug("watcher close failed", "error", err)
			}
		}
	}

	for _, root := range roots {
		if !filepath.IsAbs(root) {
			root = filepath.Join(cfg.WorkDir, root)
		}

		w, err := watcher.New(root,
			watcher.WithLogger(logger),
			watcher.WithExtensions(cfg.WatchExtensions),
			watcher.WithIgnorePatterns(cfg.IgnorePatterns),
			watcher.WithSkipDirs(filepath.Base(cfg.DataDir)),
			watcher.WithDebounce(cfg.Debounce),
		)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		watchers = append(watchers, w)

		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("watcher stopped", "error", err)
			}
		}()
		go func() {
			for ev := range w.Events() {
				select {
				case reloadCh <- ev:
				default:
					// A reload is already pending; this event is subsumed
				}
			}
		}()
	}

	return reloadCh, cleanup, nil
}
