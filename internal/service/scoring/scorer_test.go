package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pokerwatch/player-integrity-backend/internal/analytics"
	"github.com/pokerwatch/player-integrity-backend/internal/domain/player"
)

func TestTierForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Tier
	}{
		{0, TierNoThreat},
		{25, TierNoThreat},
		{25.01, TierLowRisk},
		{50, TierLowRisk},
		{50.01, TierSuspicious},
		{75, TierSuspicious},
		{75.01, TierHighRisk},
		{90, TierHighRisk},
		{90.01, TierCritical},
		{100, TierCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TierForScore(tt.score), "score %.2f", tt.score)
	}
}

func TestEscalateTier(t *testing.T) {
	assert.Equal(t, TierLowRisk, EscalateTier(TierNoThreat))
	assert.Equal(t, TierSuspicious, EscalateTier(TierLowRisk))
	assert.Equal(t, TierHighRisk, EscalateTier(TierSuspicious))

	// Escalation never manufactures CRITICAL.
	assert.Equal(t, TierHighRisk, EscalateTier(TierHighRisk))
	assert.Equal(t, TierCritical, EscalateTier(TierCritical))
}

func TestRecommendedAction(t *testing.T) {
	assert.Equal(t, "Continue monitoring", RecommendedAction(TierNoThreat))
	assert.Equal(t, "Review recent hand history", RecommendedAction(TierLowRisk))
	assert.Equal(t, "Enhanced monitoring required", RecommendedAction(TierSuspicious))
	assert.Equal(t, "Immediate manual review recommended", RecommendedAction(TierHighRisk))
	assert.Equal(t, "Immediate investigation required", RecommendedAction(TierCritical))
}

func TestComputeSubScores(t *testing.T) {
	t.Run("no outlier record", func(t *testing.T) {
		p := &player.Profile{
			PlayerID:       "p1",
			IntentionScore: 40,
			BadActorScore:  30,
			CollusionScore: 20,
		}

		subs := computeSubScores(p, nil)
		assert.InDelta(t, 40, subs.Timing, 1e-9)
		assert.InDelta(t, 30, subs.Behavioral, 1e-9)
		assert.Zero(t, subs.Statistical)
		assert.Zero(t, subs.RiskIndicator)
	})

	t.Run("flags and z magnitude shape statistical component", func(t *testing.T) {
		p := &player.Profile{PlayerID: "p1"}
		rec := &analytics.OutlierRecord{
			PlayerID: "p1",
			ZScores:  map[string]float64{analytics.MetricVPIP: 3.0},
			Flags:    []string{analytics.FlagVPIPOutlier},
		}

		subs := computeSubScores(p, rec)
		// One flag (20) plus capped z contribution (30).
		assert.InDelta(t, 50, subs.Statistical, 1e-9)
	})

	t.Run("statistical component is capped", func(t *testing.T) {
		p := &player.Profile{PlayerID: "p1"}
		rec := &analytics.OutlierRecord{
			PlayerID: "p1",
			ZScores:  map[string]float64{analytics.MetricVPIP: 25},
			Flags: []string{
				analytics.FlagVPIPOutlier,
				analytics.FlagPFROutlier,
				analytics.FlagWinRateOutlier,
				analytics.FlagPreflopOutlier,
				analytics.FlagPostflopOutlier,
			},
		}

		subs := computeSubScores(p, rec)
		assert.InDelta(t, 100, subs.Statistical, 1e-9)
	})

	t.Run("risk indicators contribute fixed shares above threshold", func(t *testing.T) {
		p := &player.Profile{
			PlayerID:       "p1",
			BadActorScore:  80,
			IntentionScore: 75,
			CollusionScore: 60,
		}

		subs := computeSubScores(p, nil)
		assert.InDelta(t, 2*(100.0/3.0), subs.RiskIndicator, 1e-9)

		p.CollusionScore = 95
		subs = computeSubScores(p, nil)
		assert.InDelta(t, 100, subs.RiskIndicator, 1e-9)
	})
}
