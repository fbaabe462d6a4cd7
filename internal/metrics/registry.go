package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the application
type Registry struct {
	meter metric.Meter

	// Scoring Domain Metrics
	BatchDuration      metric.Float64Histogram
	PlayersScored      metric.Int64Counter
	TierCounter        metric.Int64Counter
	BatchSampleSize    metric.Int64ObservableGauge
	ScoreDistribution  metric.Float64Histogram

	// Arbiter Metrics
	ArbiterLatency        metric.Float64Histogram
	ArbiterConsultCounter metric.Int64Counter
	ArbiterFallbackCounter metric.Int64Counter

	// Analytics Metrics
	ClusteringDuration metric.Float64Histogram
	PatternCounter     metric.Int64Counter

	// System Metrics
	DatabaseConnectionPool metric.Int64ObservableGauge
	CacheHitRate           metric.Float64ObservableGauge
	APIRequestDuration     metric.Float64Histogram
	APIRequestCounter      metric.Int64Counter

	// State for observable metrics
	mu              sync.RWMutex
	lastSampleSize  int64
	dbPoolSize      int64
	cacheHits       int64
	cacheLookups    int64
}

// NewRegistry creates a new metrics registry with all domain metrics
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	if err := r.initScoringMetrics(); err != nil {
		return nil, err
	}

	if err := r.initArbiterMetrics(); err != nil {
		return nil, err
	}

	if err := r.initAnalyticsMetrics(); err != nil {
		return nil, err
	}

	if err := r.initSystemMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

// initScoringMetrics initializes scoring domain metrics
func (r *Registry) initScoringMetrics() error {
	var err error

	r.BatchDuration, err = r.meter.Float64Histogram(
		"pin.scoring.batch_duration",
		metric.WithDescription("Duration of batch scoring runs in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000, 10000),
	)
	if err != nil {
		return err
	}

	r.PlayersScored, err = r.meter.Int64Counter(
		"pin.scoring.players_scored_total",
		metric.WithDescription("Total number of players scored"),
	)
	if err != nil {
		return err
	}

	r.TierCounter, err = r.meter.Int64Counter(
		"pin.scoring.tier_total",
		metric.WithDescription("Scored players by threat tier"),
	)
	if err != nil {
		return err
	}

	r.ScoreDistribution, err = r.meter.Float64Histogram(
		"pin.scoring.final_score",
		metric.WithDescription("Distribution of composite final scores"),
		metric.WithExplicitBucketBoundaries(10, 25, 40, 50, 60, 75, 85, 90, 95),
	)
	if err != nil {
		return err
	}

	r.BatchSampleSize, err = r.meter.Int64ObservableGauge(
		"pin.scoring.batch_sample_size",
		metric.WithDescription("Population size of the most recent scoring batch"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.lastSampleSize)
			return nil
		}),
	)

	return err
}

// initArbiterMetrics initializes external arbiter metrics
func (r *Registry) initArbiterMetrics() error {
	var err error

	r.ArbiterLatency, err = r.meter.Float64Histogram(
		"pin.arbiter.latency",
		metric.WithDescription("External arbiter round-trip latency in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(50, 100, 250, 500, 1000, 2000, 4000, 8000),
	)
	if err != nil {
		return err
	}

	r.ArbiterConsultCounter, err = r.meter.Int64Counter(
		"pin.arbiter.consult_total",
		metric.WithDescription("Total arbiter consultations"),
	)
	if err != nil {
		return err
	}

	r.ArbiterFallbackCounter, err = r.meter.Int64Counter(
		"pin.arbiter.fallback_total",
		metric.WithDescription("Arbiter consultations that degraded to the local tier"),
	)

	return err
}

// initAnalyticsMetrics initializes clustering and pattern metrics
func (r *Registry) initAnalyticsMetrics() error {
	var err error

	r.ClusteringDuration, err = r.meter.Float64Histogram(
		"pin.analytics.clustering_duration",
		metric.WithDescription("K-means clustering duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000),
	)
	if err != nil {
		return err
	}

	r.PatternCounter, err = r.meter.Int64Counter(
		"pin.analytics.pattern_total",
		metric.WithDescription("Peer-group anomalies detected by pattern type"),
	)

	return err
}

// initSystemMetrics initializes system-level metrics
func (r *Registry) initSystemMetrics() error {
	var err error

	r.DatabaseConnectionPool, err = r.meter.Int64ObservableGauge(
		"pin.system.db_connection_pool_size",
		metric.WithDescription("Current database connection pool size"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.dbPoolSize)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.CacheHitRate, err = r.meter.Float64ObservableGauge(
		"pin.system.cache_hit_rate",
		metric.WithDescription("Result cache hit rate"),
		metric.WithFloat64Callback(func(ctx context.Context, o metric.Float64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			if r.cacheLookups > 0 {
				o.Observe(float64(r.cacheHits) / float64(r.cacheLookups))
			}
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.APIRequestDuration, err = r.meter.Float64Histogram(
		"pin.api.request_duration",
		metric.WithDescription("API request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return err
	}

	r.APIRequestCounter, err = r.meter.Int64Counter(
		"pin.api.request_total",
		metric.WithDescription("Total number of API requests"),
	)

	return err
}

// Helper methods for updating observable metric values

// SetBatchSampleSize records the population size of the latest batch
func (r *Registry) SetBatchSampleSize(size int64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSampleSize = size
}

// SetDBPoolSize sets the database connection pool size
func (r *Registry) SetDBPoolSize(size int64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbPoolSize = size
}

// RecordCacheLookup records one cache lookup and whether it hit
func (r *Registry) RecordCacheLookup(hit bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheLookups++
	if hit {
		r.cacheHits++
	}
}

// Helper methods for recording metrics with common attribute patterns

// RecordBatch records one completed scoring batch
func (r *Registry) RecordBatch(ctx context.Context, durationMS float64, scored int, tierCounts map[string]int) {
	if r == nil {
		return
	}

	r.BatchDuration.Record(ctx, durationMS)
	r.PlayersScored.Add(ctx, int64(scored))
	for tier, n := range tierCounts {
		r.TierCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("tier", tier)))
	}
}

// RecordScore records one player's final score
func (r *Registry) RecordScore(ctx context.Context, score float64) {
	if r == nil {
		return
	}
	r.ScoreDistribution.Record(ctx, score)
}

// RecordArbiterConsult records one arbiter round trip
func (r *Registry) RecordArbiterConsult(ctx context.Context, latencyMS float64, fallback bool) {
	if r == nil {
		return
	}

	r.ArbiterLatency.Record(ctx, latencyMS, metric.WithAttributes(attribute.Bool("fallback", fallback)))
	r.ArbiterConsultCounter.Add(ctx, 1)
	if fallback {
		r.ArbiterFallbackCounter.Add(ctx, 1)
	}
}

// RecordClustering records one clustering run
func (r *Registry) RecordClustering(ctx context.Context, durationMS float64, converged bool) {
	if r == nil {
		return
	}
	r.ClusteringDuration.Record(ctx, durationMS, metric.WithAttributes(attribute.Bool("converged", converged)))
}

// RecordPatterns records detected peer-group anomalies by type
func (r *Registry) RecordPatterns(ctx context.Context, countsByType map[string]int) {
	if r == nil {
		return
	}
	for pt, n := range countsByType {
		r.PatternCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("pattern_type", pt)))
	}
}

// RecordAPIRequest records API request metrics
func (r *Registry) RecordAPIRequest(ctx context.Context, durationMS float64, method, path string, statusCode int) {
	if r == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	}

	r.APIRequestDuration.Record(ctx, durationMS, metric.WithAttributes(attrs...))
	r.APIRequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
