package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokerwatch/player-integrity-backend/internal/service/scoring"
)

// memoryCache is an in-process Cache for tests. TTLs are recorded but not
// enforced.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	ttls    map[string]time.Duration
	failAll bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		entries: make(map[string]string),
		ttls:    make(map[string]time.Duration),
	}
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return "", errors.New("backend unavailable")
	}
	value, ok := m.entries[key]
	if !ok {
		return "", ErrCacheKeyNotFound{Key: key}
	}
	return value, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("backend unavailable")
	}
	switch v := value.(type) {
	case string:
		m.entries[key] = v
	case []byte:
		m.entries[key] = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		m.entries[key] = string(data)
	}
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	delete(m.ttls, key)
	return nil
}

func (m *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *memoryCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	exists := false
	if _, ok := m.entries[key]; ok {
		exists = true
	}
	m.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (m *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, data, ttl)
}

func (m *memoryCache) Close() error { return nil }

func (m *memoryCache) ttlFor(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func TestReportCache_BatchReportRoundTrip(t *testing.T) {
	backend := newMemoryCache()
	rc := NewReportCache(backend, nil, nil, 0)
	ctx := context.Background()

	batchID := uuid.New()
	report := &scoring.BatchReport{
		BatchID:       batchID,
		PlayersScored: 42,
		WeightVersion: "v2-unified",
		TierCounts:    map[scoring.Tier]int{scoring.TierNoThreat: 40, scoring.TierSuspicious: 2},
	}
	rc.SetBatchReport(ctx, report)

	got, ok := rc.GetBatchReport(ctx, batchID.String())
	require.True(t, ok)
	assert.Equal(t, batchID, got.BatchID)
	assert.Equal(t, 42, got.PlayersScored)
	assert.Equal(t, 2, got.TierCounts[scoring.TierSuspicious])
	assert.Equal(t, ReportTTL, backend.ttlFor(BatchReportPrefix+batchID.String()))
}

func TestReportCache_MissReturnsFalse(t *testing.T) {
	rc := NewReportCache(newMemoryCache(), nil, nil, 0)

	_, ok := rc.GetBatchReport(context.Background(), uuid.NewString())
	assert.False(t, ok)

	_, ok = rc.GetClusterReport(context.Background())
	assert.False(t, ok)
}

func TestReportCache_StatisticalReportKeyedByHandFloor(t *testing.T) {
	rc := NewReportCache(newMemoryCache(), nil, nil, 0)
	ctx := context.Background()

	rc.SetStatisticalReport(ctx, 100, &scoring.StatisticalReport{SampleSize: 31})
	rc.SetStatisticalReport(ctx, 1000, &scoring.StatisticalReport{SampleSize: 12})

	at100, ok := rc.GetStatisticalReport(ctx, 100)
	require.True(t, ok)
	assert.Equal(t, 31, at100.SampleSize)

	at1000, ok := rc.GetStatisticalReport(ctx, 1000)
	require.True(t, ok)
	assert.Equal(t, 12, at1000.SampleSize)

	_, ok = rc.GetStatisticalReport(ctx, 500)
	assert.False(t, ok)
}

func TestReportCache_InvalidateDropsPopulationReports(t *testing.T) {
	rc := NewReportCache(newMemoryCache(), nil, nil, 0)
	ctx := context.Background()

	rc.SetClusterReport(ctx, &scoring.ClusterReport{Iterations: 7, Converged: true})
	rc.SetPatternReport(ctx, &scoring.PatternReport{})
	rc.SetStatisticalReport(ctx, 100, &scoring.StatisticalReport{SampleSize: 31})

	rc.Invalidate(ctx)

	_, ok := rc.GetClusterReport(ctx)
	assert.False(t, ok)
	_, ok = rc.GetPatternReport(ctx)
	assert.False(t, ok)

	// statistical reports survive invalidation and age out on TTL instead
	stats, ok := rc.GetStatisticalReport(ctx, 100)
	require.True(t, ok)
	assert.Equal(t, 31, stats.SampleSize)
}

func TestReportCache_BackendFailureDegradesToMiss(t *testing.T) {
	backend := newMemoryCache()
	backend.failAll = true
	rc := NewReportCache(backend, nil, nil, 0)
	ctx := context.Background()

	// stores and lookups swallow backend errors
	rc.SetClusterReport(ctx, &scoring.ClusterReport{Iterations: 3})
	_, ok := rc.GetClusterReport(ctx)
	assert.False(t, ok)
}
