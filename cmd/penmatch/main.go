// Penmatch - deterministic student identity resolution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edu-registry/penmatch/internal/api"
	"github.com/edu-registry/penmatch/internal/bus"
	"github.com/edu-registry/penmatch/internal/cache"
	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/engine"
	"github.com/edu-registry/penmatch/internal/frequency"
	"github.com/edu-registry/penmatch/internal/repository"
	"github.com/edu-registry/penmatch/internal/rules"
	"github.com/edu-registry/penmatch/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("PENMATCH_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting penmatch",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("PENMATCH_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Seed the compiled-in match-code table and starter nicknames
	if err := repository.SeedLookupTables(ctx, repo); err != nil {
		slog.Error("failed to seed lookup tables", "error", err)
		os.Exit(1)
	}

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Surname-frequency service: registry counts behind the cache
	freqSvc := frequency.NewService(repo, cacheImpl,
		time.Duration(cfg.Engine.FrequencyTTL)*time.Second)

	// Screening engine with rules from the database
	screening, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize screening engine", "error", err)
		os.Exit(1)
	}
	defer screening.Close()

	if err := loadScreeningRules(ctx, repo, screening); err != nil {
		slog.Error("failed to load screening rules", "error", err)
		os.Exit(1)
	}
	slog.Info("screening engine initialized", "rules_count", screening.RulesCount())

	// Match engine
	matcher := engine.New(repo, repo, freqSvc.Getter(), cfg.Engine, logger)
	slog.Info("match engine initialized", "engine_version", engine.Version)

	// Async worker consumes match requests from the bus
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("PENMATCH_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, screening, matcher, logger)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, screening, matcher, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("penmatch is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("penmatch shutdown complete")
}

// loadScreeningRules loads stored screening rules into the engine, falling
// back to the built-in data-quality rules when the database has none.
func loadScreeningRules(ctx context.Context, repo domain.Repository, screening *rules.Engine) error {
	dbRules, err := repo.ListScreeningRules(ctx)
	if err != nil {
		slog.Warn("failed to list screening rules from database", "error", err)
		dbRules = nil
	}

	if len(dbRules) > 0 {
		slog.Info("loading screening rules from database", "count", len(dbRules))
		return screening.ReloadRules(dbRules)
	}

	builtin := rules.BuiltinRules()
	slog.Info("no screening rules in database, loading built-ins", "count", len(builtin))
	for _, rule := range builtin {
		if err := repo.SaveScreeningRule(ctx, rule); err != nil {
			slog.Warn("failed to persist built-in rule", "id", rule.ID, "error", err)
		}
		if err := screening.LoadRule(rule); err != nil {
			return err
		}
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  penmatch - student identity resolution")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /match                           - Resolve a demographic record")
	fmt.Println("    GET  /matches/{id}                    - Get a match outcome by ID")
	fmt.Println("    GET  /students/{pen}                  - Get a registry record")
	fmt.Println("    GET  /students/{pen}/possible-matches - Possible-match links for a PEN")
	fmt.Println("    GET  /rules                           - List screening rules")
	fmt.Println("    POST /rules                           - Create a screening rule")
	fmt.Println("    POST /rules/reload                    - Hot-reload rules from database")
	fmt.Println("    GET  /health                          - Health check")
	fmt.Println("    GET  /metrics                         - Prometheus metrics")
	fmt.Println()
}
