package scoring

import (
	"math"

	"github.com/pokerwatch/player-integrity-backend/internal/domain/errors"
)

// DefaultWeightVersion names the current production weight vector.
const DefaultWeightVersion = "v2-unified"

// WeightConfig is a named, versioned weight vector over the composite
// sub-scores. Weights must sum to 1.
type WeightConfig struct {
	Version       string  `json:"version" koanf:"version"`
	Timing        float64 `json:"timing" koanf:"timing"`
	Behavioral    float64 `json:"behavioral" koanf:"behavioral"`
	Statistical   float64 `json:"statistical" koanf:"statistical"`
	RiskIndicator float64 `json:"risk_indicator" koanf:"risk_indicator"`
}

// DefaultWeights returns the unified production vector.
func DefaultWeights() WeightConfig {
	return WeightConfig{
		Version:       DefaultWeightVersion,
		Timing:        0.40,
		Behavioral:    0.25,
		Statistical:   0.20,
		RiskIndicator: 0.15,
	}
}

// Validate checks that every weight is non-negative and the vector sums to 1.
func (w WeightConfig) Validate() error {
	if w.Version == "" {
		return errors.NewValidationError("INVALID_WEIGHTS", "weight vector must be versioned")
	}
	for _, v := range []float64{w.Timing, w.Behavioral, w.Statistical, w.RiskIndicator} {
		if v < 0 || math.IsNaN(v) {
			return errors.NewValidationError("INVALID_WEIGHTS", "weights must be non-negative")
		}
	}
	sum := w.Timing + w.Behavioral + w.Statistical + w.RiskIndicator
	if math.Abs(sum-1.0) > 1e-6 {
		return errors.NewValidationError("INVALID_WEIGHTS", "weights must sum to 1")
	}
	return nil
}

// Compose combines sub-scores into a final score clamped to [0,100].
func (w WeightConfig) Compose(s SubScores) float64 {
	score := w.Timing*s.Timing +
		w.Behavioral*s.Behavioral +
		w.Statistical*s.Statistical +
		w.RiskIndicator*s.RiskIndicator
	return math.Min(100, math.Max(0, score))
}
