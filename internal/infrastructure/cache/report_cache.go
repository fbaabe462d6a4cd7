package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pokerwatch/player-integrity-backend/internal/metrics"
	"github.com/pokerwatch/player-integrity-backend/internal/service/scoring"
)

// ReportCache caches the expensive analytics payloads. All lookups are
// best-effort: a cache failure degrades to recomputation, never to a request
// error.
type ReportCache struct {
	cache   Cache
	metrics *metrics.Registry
	logger  *zap.Logger
	ttl     time.Duration
}

// NewReportCache creates a report cache over the shared Cache backend.
// reg may be nil.
func NewReportCache(cache Cache, reg *metrics.Registry, logger *zap.Logger, ttl time.Duration) *ReportCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = ReportTTL
	}
	return &ReportCache{
		cache:   cache,
		metrics: reg,
		logger:  logger,
		ttl:     ttl,
	}
}

// GetBatchReport returns a cached batch report by its identifier.
func (rc *ReportCache) GetBatchReport(ctx context.Context, batchID string) (*scoring.BatchReport, bool) {
	var report scoring.BatchReport
	if !rc.lookup(ctx, BatchReportPrefix+batchID, &report) {
		return nil, false
	}
	return &report, true
}

// SetBatchReport stores a finished batch report under its identifier.
func (rc *ReportCache) SetBatchReport(ctx context.Context, report *scoring.BatchReport) {
	if report == nil {
		return
	}
	rc.store(ctx, BatchReportPrefix+report.BatchID.String(), report)
}

// GetStatisticalReport returns a cached report for the given hand floor.
func (rc *ReportCache) GetStatisticalReport(ctx context.Context, minHands int64) (*scoring.StatisticalReport, bool) {
	var report scoring.StatisticalReport
	if !rc.lookup(ctx, rc.statsKey(minHands), &report) {
		return nil, false
	}
	return &report, true
}

// SetStatisticalReport stores a report for the given hand floor.
func (rc *ReportCache) SetStatisticalReport(ctx context.Context, minHands int64, report *scoring.StatisticalReport) {
	rc.store(ctx, rc.statsKey(minHands), report)
}

// GetClusterReport returns the cached clustering payload.
func (rc *ReportCache) GetClusterReport(ctx context.Context) (*scoring.ClusterReport, bool) {
	var report scoring.ClusterReport
	if !rc.lookup(ctx, ClusterPrefix+"latest", &report) {
		return nil, false
	}
	return &report, true
}

// SetClusterReport stores the clustering payload.
func (rc *ReportCache) SetClusterReport(ctx context.Context, report *scoring.ClusterReport) {
	rc.store(ctx, ClusterPrefix+"latest", report)
}

// GetPatternReport returns the cached pattern payload.
func (rc *ReportCache) GetPatternReport(ctx context.Context) (*scoring.PatternReport, bool) {
	var report scoring.PatternReport
	if !rc.lookup(ctx, PatternPrefix+"latest", &report) {
		return nil, false
	}
	return &report, true
}

// SetPatternReport stores the pattern payload.
func (rc *ReportCache) SetPatternReport(ctx context.Context, report *scoring.PatternReport) {
	rc.store(ctx, PatternPrefix+"latest", report)
}

// Invalidate drops the population-wide reports. Called after a scoring batch
// lands, since a new batch changes the population those reports derive from.
// Statistical reports are keyed per hand floor and age out on their TTL.
func (rc *ReportCache) Invalidate(ctx context.Context) {
	for _, key := range []string{
		ClusterPrefix + "latest",
		PatternPrefix + "latest",
	} {
		if err := rc.cache.Delete(ctx, key); err != nil {
			rc.logger.Debug("report cache invalidation failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

func (rc *ReportCache) statsKey(minHands int64) string {
	return fmt.Sprintf("%smin_hands:%d", StatsReportPrefix, minHands)
}

func (rc *ReportCache) lookup(ctx context.Context, key string, dest interface{}) bool {
	err := rc.cache.GetJSON(ctx, key, dest)
	hit := err == nil
	rc.metrics.RecordCacheLookup(hit)
	if err != nil {
		var miss ErrCacheKeyNotFound
		if !errors.As(err, &miss) {
			rc.logger.Debug("report cache lookup failed",
				zap.String("key", key),
				zap.Error(err))
		}
		return false
	}
	return true
}

func (rc *ReportCache) store(ctx context.Context, key string, value interface{}) {
	if err := rc.cache.SetJSON(ctx, key, value, rc.ttl); err != nil {
		rc.logger.Debug("report cache store failed",
			zap.String("key", key),
			zap.Error(err))
	}
}
