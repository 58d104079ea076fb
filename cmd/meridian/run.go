package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"helioshq/meridian/pkg/backends"
	"helioshq/meridian/pkg/backends/anthropic"
	"helioshq/meridian/pkg/backends/local"
	"helioshq/meridian/pkg/backends/openai"
	"helioshq/meridian/pkg/batch"
	"helioshq/meridian/pkg/breaker"
	"helioshq/meridian/pkg/config"
	"helioshq/meridian/pkg/routing"
	"helioshq/meridian/pkg/routing/strategies"
	"helioshq/meridian/pkg/server"
	"helioshq/meridian/pkg/telemetry/health"
	"helioshq/meridian/pkg/telemetry/logging"
	"helioshq/meridian/pkg/telemetry/metrics"
	"helioshq/meridian/pkg/usage"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Meridian gateway",
	Long: `Start the Meridian gateway with the specified configuration.

The gateway listens on the configured address and routes LLM API requests
across the configured backends with circuit breaking, batching, and usage
accounting.

Examples:
  # Start with default config
  meridian run

  # Start with custom config
  meridian run --config /etc/meridian/config.yaml

  # Override listen address
  meridian run --listen 0.0.0.0:8080

  # Validate config without starting the gateway
  meridian run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "disable config hot reload")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	} else if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Meridian v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	router, err := buildRouter(cfg, collector)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	defer router.Close()
	fmt.Printf("✓ Backends registered (%d routes)\n", len(router.Routes()))

	scheduler := batch.New(router, batchConfig(cfg.Batch))
	scheduler.SetObserver(collector)
	if cfg.Batch.IsEnabled() {
		scheduler.Start()
		defer scheduler.Stop()
		fmt.Printf("✓ Batch scheduler started (strategy: %s)\n", cfg.Batch.Strategy)
	}

	ledger, closeStore, err := buildLedger(cfg.Usage)
	if err != nil {
		return fmt.Errorf("build usage ledger: %w", err)
	}
	defer closeStore()
	router.SetRecorder(ledger)

	flusher := usage.NewFlusher(ledger, cfg.Usage.FlushSchedule)
	if cfg.Usage.IsEnabled() {
		if err := flusher.Start(ctx); err != nil {
			return fmt.Errorf("start usage flusher: %w", err)
		}
		defer flusher.Stop()
	}
	fmt.Println("✓ Usage accounting initialized")

	go sampleBackendHealth(ctx, router, collector)

	checker := health.New(0)
	checker.Register("backends", func(context.Context) error {
		for _, route := range router.Routes() {
			if route.Backend.Health().Healthy {
				return nil
			}
		}
		return fmt.Errorf("no healthy backends")
	})

	srv, err := server.New(cfg.Server, server.Deps{
		Router:    router,
		Scheduler: scheduler,
		Ledger:    ledger,
		Collector: collector,
		Checker:   checker,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if !runFlags.noWatch {
		watcher, err := config.NewWatcher(cfgFile, config.DefaultDebounceInterval)
		if err != nil {
			slog.Warn("config hot reload unavailable", "error", err)
		} else {
			go func() {
				if err := watcher.Watch(ctx, func(next *config.Config) {
					applyReload(router, scheduler, next)
				}); err != nil {
					slog.Warn("config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	fmt.Println()
	fmt.Printf("✓ Gateway listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	// Blocks until a termination signal or a listener error.
	if err := srv.Start(ctx); err != nil {
		return err
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer flushCancel()
	if err := ledger.Flush(flushCtx); err != nil {
		slog.Warn("final usage flush failed", "error", err)
	}

	fmt.Println("✓ Gateway stopped")
	return nil
}

// sampleBackendHealth periodically pushes per-backend health into the
// metrics collector.
func sampleBackendHealth(ctx context.Context, router *routing.Router, collector *metrics.Collector) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, route := range router.Routes() {
				collector.UpdateBackendHealth(route.Backend.Name(), route.Backend.Health().Healthy)
			}
		}
	}
}

// buildRouter registers one route per enabled backend, honoring the
// configured preference order, with a circuit breaker each.
func buildRouter(cfg *config.Config, collector *metrics.Collector) (*routing.Router, error) {
	strategy, err := strategies.New(cfg.Routing.Strategy)
	if err != nil {
		return nil, err
	}
	router := routing.New(strategy)

	for _, name := range backendOrder(cfg) {
		bc := cfg.Backends[name]
		if !bc.IsEnabled() {
			slog.Info("backend disabled, skipping", "backend", name)
			continue
		}

		backend, err := buildBackend(name, bc)
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", name, err)
		}

		brk := breaker.New(name, breaker.Config{
			FailureThreshold: cfg.Routing.FailureThreshold,
			RecoveryTimeout:  cfg.Routing.RecoveryTimeout,
			OnStateChange: func(name string, from, to breaker.State) {
				slog.Info("breaker state changed",
					"backend", name, "from", from.String(), "to", to.String())
				collector.UpdateBreakerState(name, to.String())
			},
		})

		if err := router.Register(backend, brk); err != nil {
			return nil, fmt.Errorf("register backend %q: %w", name, err)
		}
	}

	if len(router.Routes()) == 0 {
		return nil, fmt.Errorf("no enabled backends")
	}
	return router, nil
}

// backendOrder yields backend names with the routing preference order
// first, then the rest alphabetically for determinism.
func backendOrder(cfg *config.Config) []string {
	seen := make(map[string]bool, len(cfg.Backends))
	order := make([]string, 0, len(cfg.Backends))
	for _, name := range cfg.Routing.Order {
		if _, ok := cfg.Backends[name]; ok && !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	var rest []string
	for name := range cfg.Backends {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func buildBackend(name string, bc config.BackendConfig) (backends.Backend, error) {
	conf := backends.Config{
		Name:       name,
		Kind:       backends.Kind(bc.Kind),
		BaseURL:    bc.BaseURL,
		APIKey:     bc.APIKey,
		Timeout:    bc.Timeout,
		MaxRetries: bc.MaxRetries,
	}
	switch conf.Kind {
	case backends.KindOpenAI:
		return openai.New(conf)
	case backends.KindAnthropic:
		return anthropic.New(conf)
	case backends.KindLocal:
		return local.New(conf)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", bc.Kind)
	}
}

// buildLedger creates the usage ledger over the configured store. The
// returned closer shuts the store down after the ledger's final flush.
func buildLedger(cfg config.UsageConfig) (*usage.Ledger, func(), error) {
	if !cfg.IsEnabled() {
		ledger := usage.NewLedger(nil, 0)
		return ledger, func() {}, nil
	}

	var store usage.Store
	if cfg.StorePath != "" {
		sqliteStore, err := usage.NewSQLiteStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		store = sqliteStore
		slog.Info("usage store opened", "path", cfg.StorePath)
	} else {
		store = usage.NewMemoryStore()
	}

	ledger := usage.NewLedger(store, cfg.FlushEvery)
	closeStore := func() {
		if err := store.Close(); err != nil {
			slog.Warn("usage store close failed", "error", err)
		}
	}
	return ledger, closeStore, nil
}

// batchConfig maps the file-level batch section onto scheduler knobs.
func batchConfig(cfg config.BatchConfig) batch.Config {
	return batch.Config{
		Strategy:             cfg.Strategy,
		MaxBatchSize:         cfg.MaxBatchSize,
		MinBatchSize:         cfg.MinBatchSize,
		MaxWait:              cfg.MaxWait,
		PriorityBoost:        cfg.PriorityBoost,
		CostThreshold:        cfg.CostThreshold,
		MaxConcurrentBatches: cfg.MaxConcurrentBatches,
		FanOutLimit:          cfg.FanOutLimit,
	}
}

// applyReload re-tunes the running router and scheduler from a freshly
// validated config. Backend registration is startup-only; only strategy
// and admission knobs change at runtime.
func applyReload(router *routing.Router, scheduler *batch.Scheduler, next *config.Config) {
	strategy, err := strategies.New(next.Routing.Strategy)
	if err != nil {
		slog.Warn("reload kept previous routing strategy", "error", err)
	} else {
		router.SetStrategy(strategy)
		slog.Info("routing strategy reloaded", "strategy", next.Routing.Strategy)
	}

	if err := scheduler.Retune(batchConfig(next.Batch)); err != nil {
		slog.Warn("reload kept previous batch config", "error", err)
	}
}
