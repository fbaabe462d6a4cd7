package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pokerwatch/player-integrity-backend/internal/api/rest"
	"github.com/pokerwatch/player-integrity-backend/internal/infrastructure/arbiter"
	"github.com/pokerwatch/player-integrity-backend/internal/infrastructure/cache"
	"github.com/pokerwatch/player-integrity-backend/internal/infrastructure/config"
	"github.com/pokerwatch/player-integrity-backend/internal/infrastructure/database"
	"github.com/pokerwatch/player-integrity-backend/internal/infrastructure/telemetry"
	"github.com/pokerwatch/player-integrity-backend/internal/metrics"
	"github.com/pokerwatch/player-integrity-backend/internal/service/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger("info")
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to set up zap logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	telConfig := telemetry.DefaultConfig()
	telConfig.ServiceName = cfg.Telemetry.ServiceName
	telConfig.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	telConfig.Enabled = cfg.Telemetry.Enabled

	provider, err := telemetry.InitializeOpenTelemetry(ctx, telConfig)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	registry, err := metrics.NewRegistry(cfg.Telemetry.ServiceName)
	if err != nil {
		log.Fatalf("Failed to create metrics registry: %v", err)
	}

	pool, err := database.NewConnectionPool(&cfg.Database, registry, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repo := database.NewPlayerRepository(pool.Pool())

	checkers := map[string]rest.HealthChecker{
		"database": pool.HealthCheck,
	}

	var (
		reports     *cache.ReportCache
		rateLimiter cache.RateLimiter
	)
	redisCache, err := cache.NewRedisCache(&cfg.Redis, zapLogger)
	if err != nil {
		logger.Warn("redis unavailable, reports uncached and rate limiting disabled", "error", err)
	} else {
		defer redisCache.Close()
		reports = cache.NewReportCache(redisCache, registry, zapLogger, cache.ReportTTL)
		rateLimiter = cache.NewRedisRateLimiter(cache.Client(redisCache), zapLogger)
		checkers["redis"] = func(ctx context.Context) error {
			_, err := redisCache.Exists(ctx, "health")
			return err
		}
	}

	var reviewer scoring.Arbiter
	if cfg.Arbiter.Enabled {
		client, err := arbiter.NewClient(&cfg.Arbiter, zapLogger)
		if err != nil {
			log.Fatalf("Failed to create arbiter client: %v", err)
		}
		reviewer = client
	}

	scoringCfg := scoring.DefaultConfig()
	scoringCfg.Weights = scoring.WeightConfig{
		Version:       cfg.Scoring.Weights.Version,
		Timing:        cfg.Scoring.Weights.Timing,
		Behavioral:    cfg.Scoring.Weights.Behavioral,
		Statistical:   cfg.Scoring.Weights.Statistical,
		RiskIndicator: cfg.Scoring.Weights.RiskIndicator,
	}
	scoringCfg.ClusterCount = cfg.Scoring.ClusterCount
	scoringCfg.ArbiterTimeout = cfg.Arbiter.Timeout
	scoringCfg.ArbiterMaxInFlight = cfg.Arbiter.MaxInFlight

	svc, err := scoring.NewService(repo, reviewer, scoringCfg, registry, logger, nil)
	if err != nil {
		log.Fatalf("Failed to create scoring service: %v", err)
	}

	server := rest.NewServer(cfg.Server, rest.ServerDeps{
		Handler:     rest.NewHandler(svc, reports, logger),
		RateLimiter: rateLimiter,
		RateLimit:   cfg.Security.RateLimit,
		Metrics:     registry,
		Logger:      logger,
		Checkers:    checkers,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}
