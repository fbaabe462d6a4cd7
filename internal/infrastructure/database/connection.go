package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pokerwatch/player-integrity-backend/internal/infrastructure/config"
	"github.com/pokerwatch/player-integrity-backend/internal/metrics"
)

// ConnectionPool wraps a pgx pool with health checking and pool statistics
// reporting.
type ConnectionPool struct {
	pool    *pgxpool.Pool
	config  *config.DatabaseConfig
	logger  *zap.Logger
	metrics *metrics.Registry
	stopCh  chan struct{}
}

// NewConnectionPool creates a connection pool and verifies connectivity.
// reg may be nil.
func NewConnectionPool(cfg *config.DatabaseConfig, reg *metrics.Registry, logger *zap.Logger) (*ConnectionPool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	configurePool(poolConfig, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cp := &ConnectionPool{
		pool:    pool,
		config:  cfg,
		logger:  logger,
		metrics: reg,
		stopCh:  make(chan struct{}),
	}
	go cp.statsRoutine()

	logger.Info("database connection pool initialized",
		zap.Int32("max_connections", poolConfig.MaxConns))

	return cp, nil
}

func configurePool(poolConfig *pgxpool.Config, cfg *config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	} else {
		poolConfig.MaxConns = 25
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	poolConfig.ConnConfig.RuntimeParams = map[string]string{
		"application_name":  "player_integrity",
		"timezone":          "UTC",
		"lock_timeout":      "10s",
		"statement_timeout": "30s",
	}
}

// Pool exposes the underlying pgx pool for repositories.
func (cp *ConnectionPool) Pool() *pgxpool.Pool {
	return cp.pool
}

// Transaction executes fn within a transaction, committing on nil and
// rolling back on error or panic.
func (cp *ConnectionPool) Transaction(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, cp.pool, pgx.TxOptions{}, fn)
}

// HealthCheck pings the database.
func (cp *ConnectionPool) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cp.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// statsRoutine periodically pushes pool statistics into the metrics registry.
func (cp *ConnectionPool) statsRoutine() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stat := cp.pool.Stat()
			cp.metrics.SetDBPoolSize(int64(stat.TotalConns()))
			cp.logger.Debug("database pool stats",
				zap.Int32("total", stat.TotalConns()),
				zap.Int32("idle", stat.IdleConns()),
				zap.Int64("acquire_count", stat.AcquireCount()))
		case <-cp.stopCh:
			return
		}
	}
}

// Close stops background routines and closes the pool.
func (cp *ConnectionPool) Close() {
	close(cp.stopCh)
	cp.pool.Close()
	cp.logger.Info("database connection pool closed")
}
