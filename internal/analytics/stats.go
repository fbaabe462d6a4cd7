// Package analytics implements the statistical core of the player risk
// scoring engine: descriptive statistics, z-score outlier detection, k-means
// behavioral clustering, and peer-group pattern matching.
package analytics

import (
	"math"
	"sort"

	"github.com/pokerwatch/player-integrity-backend/internal/domain/player"
)

// Mean returns the arithmetic mean of values, 0 for an empty sample.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle order statistic, averaging the two central
// elements for even-length samples. 0 for an empty sample.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Variance returns the population variance of values.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	avg := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation. Single-element and
// zero-variance samples yield 0, never NaN.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Percentile returns the p-th percentile of values using linear
// interpolation between the bracketing order statistics
// (index = p/100 * (n-1)), clamping to the last element when the
// interpolated index exceeds bounds.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower < 0 {
		return sorted[0]
	}
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// ZScores returns the per-element standard scores of values. A zero-variance
// sample yields the zero vector rather than dividing by zero.
func ZScores(values []float64) []float64 {
	scores := make([]float64, len(values))
	avg := Mean(values)
	sd := StdDev(values)
	if sd == 0 {
		return scores
	}
	for i, v := range values {
		scores[i] = (v - avg) / sd
	}
	return scores
}

// PearsonCorrelation returns the Pearson product-moment correlation of x and
// y. Returns 0 when either series has zero variance or the lengths differ.
func PearsonCorrelation(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}

	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
	}

	fn := float64(n)
	numerator := fn*sumXY - sumX*sumY
	denominator := math.Sqrt((fn*sumX2 - sumX*sumX) * (fn*sumY2 - sumY*sumY))
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// OutlierZThreshold is the default |z| above which a sample counts as a
// population outlier.
const OutlierZThreshold = 2.5

// MetricSummary describes one metric across the population.
type MetricSummary struct {
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Q25      float64 `json:"q25"`
	Q75      float64 `json:"q75"`
	Outliers int     `json:"outliers"`
}

// Summarize computes the descriptive statistics of one metric sample.
func Summarize(values []float64) MetricSummary {
	if len(values) == 0 {
		return MetricSummary{}
	}

	s := MetricSummary{
		Mean:   Mean(values),
		Median: Median(values),
		StdDev: StdDev(values),
		Min:    values[0],
		Max:    values[0],
		Q25:    Percentile(values, 25),
		Q75:    Percentile(values, 75),
	}
	for _, v := range values {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	for _, z := range ZScores(values) {
		if math.Abs(z) > OutlierZThreshold {
			s.Outliers++
		}
	}
	return s
}

// IsApproximatelyNormal applies the distribution heuristic used for the
// population report: mean and median within a third of a standard deviation.
func (s MetricSummary) IsApproximatelyNormal() bool {
	return s.StdDev > 0 && math.Abs(s.Mean-s.Median) < s.StdDev/3
}

// Metric names tracked in PopulationStatistics.
const (
	MetricVPIP          = "vpip"
	MetricPFR           = "pfr"
	MetricWinRate       = "winrate_bb100"
	MetricPreflopScore  = "avg_preflop_score"
	MetricPostflopScore = "avg_postflop_score"
	MetricBadActor      = "bad_actor_score"
)

// PopulationStatistics holds the per-metric aggregates of one scoring batch.
// Computed once per batch, shared read-only across per-player scorers, and
// discarded when the batch completes.
type PopulationStatistics struct {
	SampleSize   int                      `json:"sample_size"`
	Metrics      map[string]MetricSummary `json:"metrics"`
	Correlations map[string]float64       `json:"correlations"`

	samples map[string][]float64
}

// ComputePopulation derives the batch-level aggregates from a set of
// profiles. An empty batch yields a zero-sample result rather than an error.
func ComputePopulation(profiles []*player.Profile) *PopulationStatistics {
	pop := &PopulationStatistics{
		SampleSize:   len(profiles),
		Metrics:      make(map[string]MetricSummary),
		Correlations: make(map[string]float64),
		samples:      make(map[string][]float64),
	}
	if len(profiles) == 0 {
		return pop
	}

	for _, p := range profiles {
		pop.samples[MetricVPIP] = append(pop.samples[MetricVPIP], p.VPIP)
		pop.samples[MetricPFR] = append(pop.samples[MetricPFR], p.PFR)
		pop.samples[MetricWinRate] = append(pop.samples[MetricWinRate], p.WinRateBB100())
		pop.samples[MetricPreflopScore] = append(pop.samples[MetricPreflopScore], p.AvgPreflopScore)
		pop.samples[MetricPostflopScore] = append(pop.samples[MetricPostflopScore], p.AvgPostflopScore)
		pop.samples[MetricBadActor] = append(pop.samples[MetricBadActor], p.BadActorScore)
	}

	for name, values := range pop.samples {
		pop.Metrics[name] = Summarize(values)
	}

	pop.Correlations["vpip_pfr"] = PearsonCorrelation(pop.samples[MetricVPIP], pop.samples[MetricPFR])
	pop.Correlations["vpip_winrate"] = PearsonCorrelation(pop.samples[MetricVPIP], pop.samples[MetricWinRate])
	pop.Correlations["pfr_winrate"] = PearsonCorrelation(pop.samples[MetricPFR], pop.samples[MetricWinRate])
	pop.Correlations["preflop_postflop"] = PearsonCorrelation(pop.samples[MetricPreflopScore], pop.samples[MetricPostflopScore])
	pop.Correlations["bad_actor_winrate"] = PearsonCorrelation(pop.samples[MetricBadActor], pop.samples[MetricWinRate])

	return pop
}

// ZScore returns the standard score of value against one population metric,
// 0 when the metric has no spread.
func (ps *PopulationStatistics) ZScore(metric string, value float64) float64 {
	s, ok := ps.Metrics[metric]
	if !ok || s.StdDev == 0 {
		return 0
	}
	return (value - s.Mean) / s.StdDev
}

// PercentileRank returns the fraction of the population strictly below value
// for one metric, expressed in [0,100].
func (ps *PopulationStatistics) PercentileRank(metric string, value float64) float64 {
	sample := ps.samples[metric]
	if len(sample) == 0 {
		return 0
	}
	below := 0
	for _, v := range sample {
		if v < value {
			below++
		}
	}
	return float64(below) / float64(len(sample)) * 100
}
