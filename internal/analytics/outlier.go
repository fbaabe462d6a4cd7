package analytics

import (
	"math"

	"github.com/pokerwatch/player-integrity-backend/internal/domain/player"
)

// MinReliableSampleSize is the population size below which outlier verdicts
// carry a low-confidence caveat. Small populations inflate z-scores; callers
// must surface the caveat rather than suppress the flags.
const MinReliableSampleSize = 20

// Outlier flag names, one per tracked metric.
const (
	FlagVPIPOutlier     = "VPIP_OUTLIER"
	FlagPFROutlier      = "PFR_OUTLIER"
	FlagWinRateOutlier  = "WINRATE_OUTLIER"
	FlagPreflopOutlier  = "PREFLOP_SCORE_OUTLIER"
	FlagPostflopOutlier = "POSTFLOP_SCORE_OUTLIER"
)

// OutlierRecord carries one player's deviations from the batch population.
type OutlierRecord struct {
	PlayerID      string             `json:"player_id"`
	ZScores       map[string]float64 `json:"z_scores"`
	Flags         []string           `json:"flags"`
	SampleSize    int                `json:"sample_size"`
	LowConfidence bool               `json:"low_confidence"`
}

// MaxAbsZ returns the largest absolute z-score across tracked metrics.
func (r *OutlierRecord) MaxAbsZ() float64 {
	max := 0.0
	for _, z := range r.ZScores {
		max = math.Max(max, math.Abs(z))
	}
	return max
}

// HasFlag reports whether the record carries the named flag.
func (r *OutlierRecord) HasFlag(name string) bool {
	for _, f := range r.Flags {
		if f == name {
			return true
		}
	}
	return false
}

// OutlierDetector flags per-player deviations against shared population
// statistics. Metrics are evaluated independently and flags unioned per
// player.
type OutlierDetector struct {
	threshold float64
}

// NewOutlierDetector creates a detector with the given |z| threshold;
// non-positive thresholds fall back to the default 2.5.
func NewOutlierDetector(threshold float64) *OutlierDetector {
	if threshold <= 0 {
		threshold = OutlierZThreshold
	}
	return &OutlierDetector{threshold: threshold}
}

// Detect computes one OutlierRecord per profile against pop. The population
// must have been computed from the same batch; the detector only reads it.
func (d *OutlierDetector) Detect(profiles []*player.Profile, pop *PopulationStatistics) []*OutlierRecord {
	records := make([]*OutlierRecord, 0, len(profiles))
	lowConfidence := pop.SampleSize < MinReliableSampleSize

	for _, p := range profiles {
		rec := &OutlierRecord{
			PlayerID:      p.PlayerID,
			ZScores:       make(map[string]float64, 5),
			SampleSize:    pop.SampleSize,
			LowConfidence: lowConfidence,
		}

		checks := []struct {
			metric string
			value  float64
			flag   string
		}{
			{MetricVPIP, p.VPIP, FlagVPIPOutlier},
			{MetricPFR, p.PFR, FlagPFROutlier},
			{MetricWinRate, p.WinRateBB100(), FlagWinRateOutlier},
			{MetricPreflopScore, p.AvgPreflopScore, FlagPreflopOutlier},
			{MetricPostflopScore, p.AvgPostflopScore, FlagPostflopOutlier},
		}

		for _, c := range checks {
			z := pop.ZScore(c.metric, c.value)
			rec.ZScores[c.metric] = z
			if math.Abs(z) > d.threshold {
				rec.Flags = append(rec.Flags, c.flag)
			}
		}

		records = append(records, rec)
	}

	return records
}
