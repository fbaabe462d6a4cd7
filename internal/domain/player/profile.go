package player

import (
	"math"

	"github.com/pokerwatch/player-integrity-backend/internal/domain/errors"
)

// NeutralScore is the documented baseline substituted for missing score
// fields at ingestion. Zero is a meaningful low-risk value for several
// metrics, so absent values must not silently collapse to it.
const NeutralScore = 50.0

// Profile holds the per-player behavioral aggregates one scoring pass reads.
// All percentage and score fields are clamped to [0,100] exactly once, at
// ingestion; downstream code never re-checks for missing or NaN values.
type Profile struct {
	PlayerID string `json:"player_id"`

	TotalHands int64   `json:"total_hands"`
	NetWinBB   float64 `json:"net_win_bb"`

	VPIP float64 `json:"vpip"`
	PFR  float64 `json:"pfr"`

	AvgPreflopScore  float64 `json:"avg_preflop_score"`
	AvgPostflopScore float64 `json:"avg_postflop_score"`

	// Pre-existing risk indicators from upstream systems.
	BadActorScore  float64 `json:"bad_actor_score"`
	IntentionScore float64 `json:"intention_score"`
	CollusionScore float64 `json:"collusion_score"`
}

// RawProfile mirrors the loosely-shaped rows the data layer produces.
// Pointer fields distinguish "absent" from "zero" so missing values can take
// the neutral baseline instead.
type RawProfile struct {
	PlayerID string `json:"player_id"`

	TotalHands *int64   `json:"total_hands"`
	NetWinBB   *float64 `json:"net_win_bb"`

	VPIP *float64 `json:"vpip"`
	PFR  *float64 `json:"pfr"`

	AvgPreflopScore  *float64 `json:"avg_preflop_score"`
	AvgPostflopScore *float64 `json:"avg_postflop_score"`

	BadActorScore  *float64 `json:"bad_actor_score"`
	IntentionScore *float64 `json:"intention_score"`
	CollusionScore *float64 `json:"collusion_score"`
}

// NewProfile validates and clamps a raw row into a Profile.
// Missing percentage fields default to 0 (observed frequency), missing score
// fields to NeutralScore, missing counts to 0. A negative hand count is a
// caller contract violation and is surfaced, not coerced.
func NewProfile(raw RawProfile) (*Profile, error) {
	if raw.PlayerID == "" {
		return nil, errors.NewValidationError("MISSING_PLAYER_ID", "player_id cannot be empty")
	}

	hands := int64(0)
	if raw.TotalHands != nil {
		hands = *raw.TotalHands
	}
	if hands < 0 {
		return nil, errors.NewInvariantViolation("total_hands", "total_hands cannot be negative")
	}

	p := &Profile{
		PlayerID:         raw.PlayerID,
		TotalHands:       hands,
		NetWinBB:         floatOrZero(raw.NetWinBB),
		VPIP:             clampPercent(floatOrZero(raw.VPIP)),
		PFR:              clampPercent(floatOrZero(raw.PFR)),
		AvgPreflopScore:  clampPercent(floatOrDefault(raw.AvgPreflopScore, NeutralScore)),
		AvgPostflopScore: clampPercent(floatOrDefault(raw.AvgPostflopScore, NeutralScore)),
		BadActorScore:    clampPercent(floatOrDefault(raw.BadActorScore, NeutralScore)),
		IntentionScore:   clampPercent(floatOrDefault(raw.IntentionScore, NeutralScore)),
		CollusionScore:   clampPercent(floatOrDefault(raw.CollusionScore, NeutralScore)),
	}

	return p, nil
}

// WinRateBB100 returns the volume-normalized win rate in big blinds per 100
// hands, 0 when no hands are recorded.
func (p *Profile) WinRateBB100() float64 {
	if p.TotalHands == 0 {
		return 0
	}
	return (p.NetWinBB / float64(p.TotalHands)) * 100
}

// StyleRatio returns PFR/VPIP clamped to [0,1], the x-axis of the behavioral
// projection. 0 when the player never voluntarily entered a pot.
func (p *Profile) StyleRatio() float64 {
	if p.VPIP <= 0 {
		return 0
	}
	ratio := p.PFR / p.VPIP
	return math.Max(0, math.Min(1, ratio))
}

// SkillScore returns the combined decision-quality score in [0,100], the
// y-axis of the behavioral projection.
func (p *Profile) SkillScore() float64 {
	return (p.AvgPreflopScore + p.AvgPostflopScore) / 2
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return NeutralScore
	}
	return math.Max(0, math.Min(100, v))
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func floatOrDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
