package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stayguard/stayguard/config"
	"github.com/stayguard/stayguard/internal/api"
	"github.com/stayguard/stayguard/internal/classifier"
	"github.com/stayguard/stayguard/internal/cluster"
	"github.com/stayguard/stayguard/internal/confidence"
	"github.com/stayguard/stayguard/internal/database"
	"github.com/stayguard/stayguard/internal/enrich"
	"github.com/stayguard/stayguard/internal/geocoder"
	"github.com/stayguard/stayguard/internal/impact"
	"github.com/stayguard/stayguard/internal/lock"
	"github.com/stayguard/stayguard/internal/logger"
	"github.com/stayguard/stayguard/internal/metrics"
	middlewares "github.com/stayguard/stayguard/internal/middleware"
	"github.com/stayguard/stayguard/internal/models"
	"github.com/stayguard/stayguard/internal/orchestrator"
	"github.com/stayguard/stayguard/internal/pipeline"
	"github.com/stayguard/stayguard/internal/store"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const lockTTL = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting StayGuard application",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
	)

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close(ctx)

	// Initialize store
	alertStore := store.New(db)

	// Per-key locks: Redis when configured, in-process otherwise
	locks, closeLocks := newKeyLock(cfg.Redis)
	defer closeLocks()

	// Risk engine components
	tierTable := confidence.DefaultTierTable()
	if cfg.Risk.TierTablePath != "" {
		tierTable, err = confidence.LoadTierTable(cfg.Risk.TierTablePath)
		if err != nil {
			logger.Fatal("Failed to load tier table", "path", cfg.Risk.TierTablePath, "error", err)
		}
	}
	scorer := confidence.New(tierTable)
	clusterer := cluster.New(cfg.Risk.ClusterThreshold)
	calc := impact.New(impact.DefaultTables())

	// Enrichment: LLM when a key is configured, deterministic fallback otherwise
	enricher := newEnricher(ctx, cfg.LLM)

	// Report preparation
	cls := classifier.New()
	geo := geocoder.New(cfg.Monitoring.Cities)

	// Alert lifecycle orchestrator
	orch := orchestrator.New(alertStore, enricher, clusterer, scorer, calc, cls, locks, orchestrator.Config{
		MatchThreshold:    cfg.Risk.MatchThreshold,
		ApprovalThreshold: cfg.Risk.ApprovalThreshold,
		WindowPadding:     cfg.Risk.CandidateWindowPadding,
	})

	// Ingestion sources
	sources := newSources(ctx, cfg)

	// Initialize pipeline
	alertPipeline := pipeline.New(orch, cls, geo, sources, cfg.Pipeline)

	// Start pipeline in background
	go func() {
		if err := alertPipeline.Run(ctx); err != nil {
			logger.Error("Pipeline error", "error", err)
		}
	}()

	// Setup HTTP server
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.ReadTimeout))
	r.Use(middlewares.Security)
	r.Use(middlewares.CORS([]string{"*"}))
	r.Use(middlewares.RateLimit(300))

	// Initialize API handlers
	apiHandler := api.NewHandler(alertStore, orch, calc, Version, BuildTime, GitCommit)
	apiHandler.RegisterRoutes(r)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

// newKeyLock returns the Redis-backed lock when a Redis URL is configured,
// otherwise an in-process mutex lock.
func newKeyLock(cfg config.RedisConfig) (lock.KeyLock, func()) {
	if cfg.URL == "" {
		return lock.NewMutexKeyLock(), func() {}
	}
	rl, err := lock.NewRedisKeyLock(cfg.URL, lockTTL)
	if err != nil {
		logger.Warn("Redis lock unavailable, falling back to in-process locks", "error", err)
		return lock.NewMutexKeyLock(), func() {}
	}
	logger.Info("Using Redis-backed alert locks")
	return rl, func() {
		if err := rl.Close(); err != nil {
			logger.Warn("Failed to close Redis lock client", "error", err)
		}
	}
}

func newEnricher(ctx context.Context, cfg config.LLMConfig) enrich.Enricher {
	if cfg.APIKey == "" {
		logger.Info("LLM enrichment disabled, using static enricher")
		return enrich.NewStaticEnricher()
	}
	e, err := enrich.NewGenAIEnricher(ctx, cfg.APIKey, cfg.Model, cfg.Timeout)
	if err != nil {
		logger.Warn("LLM enricher unavailable, using static enricher", "error", err)
		return enrich.NewStaticEnricher()
	}
	logger.Info("LLM enrichment enabled", "model", cfg.Model)
	return e
}

func newSources(ctx context.Context, cfg *config.Config) []pipeline.Source {
	sources := []pipeline.Source{
		pipeline.NewRSSSource("uk-news", defaultFeeds()),
	}
	if cfg.LLM.APIKey != "" {
		scout, err := pipeline.NewScoutSource(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Cities)
		if err != nil {
			logger.Warn("LLM scout unavailable", "error", err)
		} else {
			sources = append(sources, scout)
			logger.Info("LLM scout enabled", "cities", cfg.LLM.Cities)
		}
	}
	return sources
}

func defaultFeeds() []pipeline.Feed {
	return []pipeline.Feed{
		{Name: "bbc-uk", URL: "https://feeds.bbci.co.uk/news/uk/rss.xml", Tier: models.TierMajorNews},
		{Name: "bbc-scotland", URL: "https://feeds.bbci.co.uk/news/scotland/rss.xml", Tier: models.TierMajorNews},
		{Name: "guardian-uk", URL: "https://www.theguardian.com/uk/rss", Tier: models.TierMajorNews},
		{Name: "sky-uk", URL: "https://feeds.skynews.com/feeds/rss/uk.xml", Tier: models.TierOtherNews},
	}
}

func startMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", "address", addr, "path", path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", "error", err)
	}
}
