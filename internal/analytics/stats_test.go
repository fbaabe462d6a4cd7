package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokerwatch/player-integrity-backend/internal/domain/player"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-9)
	assert.InDelta(t, -3, Mean([]float64{-3}), 1e-9)
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{7}, 7},
		{"odd count", []float64{9, 1, 5}, 5},
		{"even count averages middle pair", []float64{4, 1, 3, 2}, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Median(tt.values), 1e-9)
		})
	}
}

func TestStdDev(t *testing.T) {
	// stddev >= 0, and 0 iff all elements equal
	assert.Equal(t, 0.0, StdDev([]float64{5, 5, 5, 5}))
	assert.Equal(t, 0.0, StdDev([]float64{42}))
	assert.Greater(t, StdDev([]float64{1, 2, 3}), 0.0)
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestPercentile(t *testing.T) {
	sample := []float64{15, 20, 35, 40, 50}

	assert.InDelta(t, 15, Percentile(sample, 0), 1e-9)
	assert.InDelta(t, 50, Percentile(sample, 100), 1e-9)
	assert.InDelta(t, 35, Percentile(sample, 50), 1e-9)
	// 25th percentile interpolates between 20 and 35 at index 1.0 exactly
	assert.InDelta(t, 20, Percentile(sample, 25), 1e-9)
	// interpolation between order statistics
	assert.InDelta(t, 27.5, Percentile(sample, 37.5), 1e-9)
}

func TestPercentile_MinMaxProperty(t *testing.T) {
	samples := [][]float64{
		{3},
		{1, 2},
		{-5, 0, 5, 100},
		{2.5, 2.5, 2.5},
	}
	for _, s := range samples {
		min, max := s[0], s[0]
		for _, v := range s {
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
		assert.Equal(t, min, Percentile(s, 0))
		assert.Equal(t, max, Percentile(s, 100))
	}
}

func TestZScores(t *testing.T) {
	t.Run("zero variance yields zero vector", func(t *testing.T) {
		for _, z := range ZScores([]float64{3, 3, 3}) {
			assert.Equal(t, 0.0, z)
		}
	})

	t.Run("symmetric sample", func(t *testing.T) {
		z := ZScores([]float64{10, 20, 30})
		require.Len(t, z, 3)
		assert.InDelta(t, -z[2], z[0], 1e-9)
		assert.InDelta(t, 0, z[1], 1e-9)
	})
}

func TestPearsonCorrelation(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"perfect positive", []float64{1, 2, 3, 4}, []float64{2, 4, 6, 8}, 1},
		{"perfect negative", []float64{1, 2, 3, 4}, []float64{8, 6, 4, 2}, -1},
		{"zero variance returns zero", []float64{1, 2, 3}, []float64{5, 5, 5}, 0},
		{"length mismatch returns zero", []float64{1, 2}, []float64{1}, 0},
		{"empty returns zero", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PearsonCorrelation(tt.x, tt.y), 1e-9)
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{10, 20, 30, 40, 50})
	assert.InDelta(t, 30, s.Mean, 1e-9)
	assert.InDelta(t, 30, s.Median, 1e-9)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 50.0, s.Max)
	assert.InDelta(t, 20, s.Q25, 1e-9)
	assert.InDelta(t, 40, s.Q75, 1e-9)
	assert.Equal(t, 0, s.Outliers)

	assert.Equal(t, MetricSummary{}, Summarize(nil))
}

func TestComputePopulation(t *testing.T) {
	t.Run("empty batch yields zero-sample result", func(t *testing.T) {
		pop := ComputePopulation(nil)
		assert.Equal(t, 0, pop.SampleSize)
		assert.Empty(t, pop.Metrics)
	})

	t.Run("tracks all metrics and correlations", func(t *testing.T) {
		profiles := []*player.Profile{
			{PlayerID: "a", TotalHands: 1000, NetWinBB: 50, VPIP: 22, PFR: 16, AvgPreflopScore: 70, AvgPostflopScore: 65, BadActorScore: 10},
			{PlayerID: "b", TotalHands: 2000, NetWinBB: -100, VPIP: 35, PFR: 12, AvgPreflopScore: 45, AvgPostflopScore: 40, BadActorScore: 20},
			{PlayerID: "c", TotalHands: 500, NetWinBB: 10, VPIP: 18, PFR: 15, AvgPreflopScore: 80, AvgPostflopScore: 75, BadActorScore: 5},
		}
		pop := ComputePopulation(profiles)

		assert.Equal(t, 3, pop.SampleSize)
		for _, m := range []string{MetricVPIP, MetricPFR, MetricWinRate, MetricPreflopScore, MetricPostflopScore, MetricBadActor} {
			assert.Contains(t, pop.Metrics, m)
		}
		assert.Contains(t, pop.Correlations, "vpip_pfr")
		// preflop and postflop scores move together in this sample
		assert.InDelta(t, 1.0, pop.Correlations["preflop_postflop"], 0.01)
	})
}

func TestPopulationStatistics_ZScore(t *testing.T) {
	profiles := []*player.Profile{
		{PlayerID: "a", VPIP: 20}, {PlayerID: "b", VPIP: 25}, {PlayerID: "c", VPIP: 30},
	}
	pop := ComputePopulation(profiles)

	assert.InDelta(t, 0, pop.ZScore(MetricVPIP, 25), 1e-9)
	assert.Greater(t, pop.ZScore(MetricVPIP, 40), 2.0)
	assert.Equal(t, 0.0, pop.ZScore("unknown_metric", 10))
}

func TestPopulationStatistics_PercentileRank(t *testing.T) {
	profiles := []*player.Profile{
		{PlayerID: "a", VPIP: 10}, {PlayerID: "b", VPIP: 20},
		{PlayerID: "c", VPIP: 30}, {PlayerID: "d", VPIP: 40},
	}
	pop := ComputePopulation(profiles)

	assert.InDelta(t, 50, pop.PercentileRank(MetricVPIP, 25), 1e-9)
	assert.InDelta(t, 0, pop.PercentileRank(MetricVPIP, 5), 1e-9)
	assert.InDelta(t, 100, pop.PercentileRank(MetricVPIP, 99), 1e-9)
}
