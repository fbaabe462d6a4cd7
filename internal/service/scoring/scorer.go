package scoring

import (
	"math"

	"github.com/pokerwatch/player-integrity-backend/internal/analytics"
	"github.com/pokerwatch/player-integrity-backend/internal/domain/player"
)

// Tier thresholds over the final score.
const (
	tierNoThreatMax   = 25.0
	tierLowRiskMax    = 50.0
	tierSuspiciousMax = 75.0
	tierHighRiskMax   = 90.0
)

// Statistical sub-score shaping: each outlier flag is worth flagPoints up to
// flagPointsCap, and z magnitude contributes zPointsPerUnit per unit up to
// zPointsCap.
const (
	flagPoints     = 20.0
	flagPointsCap  = 60.0
	zPointsPerUnit = 10.0
	zPointsCap     = 40.0
)

// indicatorThreshold is the level at which an upstream risk indicator
// (bad actor, intention, collusion) counts toward the risk-indicator
// sub-score.
const indicatorThreshold = 70.0

// TierForScore maps a final score onto its threat tier.
func TierForScore(score float64) Tier {
	switch {
	case score <= tierNoThreatMax:
		return TierNoThreat
	case score <= tierLowRiskMax:
		return TierLowRisk
	case score <= tierSuspiciousMax:
		return TierSuspicious
	case score <= tierHighRiskMax:
		return TierHighRisk
	default:
		return TierCritical
	}
}

// EscalateTier raises a tier one step. Escalation never produces CRITICAL;
// only the score itself can.
func EscalateTier(t Tier) Tier {
	switch t {
	case TierNoThreat:
		return TierLowRisk
	case TierLowRisk:
		return TierSuspicious
	case TierSuspicious:
		return TierHighRisk
	default:
		return t
	}
}

// RecommendedAction maps a tier to the review queue action string.
func RecommendedAction(t Tier) string {
	switch t {
	case TierCritical:
		return "Immediate investigation required"
	case TierHighRisk:
		return "Immediate manual review recommended"
	case TierSuspicious:
		return "Enhanced monitoring required"
	case TierLowRisk:
		return "Review recent hand history"
	default:
		return "Continue monitoring"
	}
}

// computeSubScores derives the four composite components for one player.
// rec may be nil when no outlier record exists for the player; the
// statistical component is then 0.
func computeSubScores(p *player.Profile, rec *analytics.OutlierRecord) SubScores {
	subs := SubScores{
		Timing:     p.IntentionScore,
		Behavioral: p.BadActorScore,
	}

	if rec != nil {
		flagScore := math.Min(flagPointsCap, float64(len(rec.Flags))*flagPoints)
		zScore := math.Min(zPointsCap, rec.MaxAbsZ()*zPointsPerUnit)
		subs.Statistical = math.Min(100, flagScore+zScore)
	}

	indicators := 0
	for _, v := range []float64{p.BadActorScore, p.IntentionScore, p.CollusionScore} {
		if v > indicatorThreshold {
			indicators++
		}
	}
	subs.RiskIndicator = math.Min(100, float64(indicators)*(100.0/3.0))

	return subs
}
