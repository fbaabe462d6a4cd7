package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pokerwatch/player-integrity-backend/internal/analytics"
	"github.com/pokerwatch/player-integrity-backend/internal/domain/player"
)

// Service defines the player risk scoring interface
type Service interface {
	// ScoreBatch scores the requested players, or the full population when no
	// ids are given
	ScoreBatch(ctx context.Context, req *ScoreBatchRequest) (*BatchReport, error)
	// StatisticalReport builds the population-wide statistical report
	StatisticalReport(ctx context.Context, minHands int64) (*StatisticalReport, error)
	// ComparePlayer positions one player against the population
	ComparePlayer(ctx context.Context, playerID string) (*PlayerComparison, error)
	// ClusterReport runs behavioral clustering over the population
	ClusterReport(ctx context.Context) (*ClusterReport, error)
	// PatternReport runs the peer-group pattern scans
	PatternReport(ctx context.Context) (*PatternReport, error)
}

// Arbiter is the external reviewer consulted for scores in the uncertainty
// band. Implementations must honor ctx cancellation.
type Arbiter interface {
	// Review asks for a verdict on one player
	Review(ctx context.Context, req *ArbiterRequest) (*ArbiterVerdict, error)
}

// Repository defines player profile storage
type Repository interface {
	// ListProfiles returns every profile eligible for scoring
	ListProfiles(ctx context.Context) ([]player.RawProfile, error)
	// GetProfiles returns the profiles for the given ids; missing ids are
	// simply absent from the result
	GetProfiles(ctx context.Context, playerIDs []string) ([]player.RawProfile, error)
	// SaveResults persists one batch's scoring output
	SaveResults(ctx context.Context, batchID uuid.UUID, results []*RiskResult) error
}

// Tier buckets a composite score
type Tier string

const (
	TierNoThreat   Tier = "NO_THREAT"
	TierLowRisk    Tier = "LOW_RISK"
	TierSuspicious Tier = "SUSPICIOUS"
	TierHighRisk   Tier = "HIGH_RISK"
	TierCritical   Tier = "CRITICAL"
)

// Per-player scoring statuses
const (
	StatusScored             = "scored"
	StatusInsufficientSample = "insufficient_sample"
	StatusNoData             = "no_data"
)

// Judgement is the arbiter's call
type Judgement string

const (
	JudgementBot       Judgement = "BOT"
	JudgementHuman     Judgement = "HUMAN"
	JudgementUncertain Judgement = "UNCERTAIN"
)

// SubScores are the composite score components, each in [0,100]
type SubScores struct {
	Timing        float64 `json:"timing"`
	Behavioral    float64 `json:"behavioral"`
	Statistical   float64 `json:"statistical"`
	RiskIndicator float64 `json:"risk_indicator"`
}

// ArbiterRequest carries the evidence handed to the external reviewer
type ArbiterRequest struct {
	PlayerID     string    `json:"player_id"`
	FinalScore   float64   `json:"final_score"`
	SubScores    SubScores `json:"sub_scores"`
	TotalHands   int64     `json:"total_hands"`
	VPIP         float64   `json:"vpip"`
	PFR          float64   `json:"pfr"`
	WinRateBB100 float64   `json:"win_rate_bb100"`
	Flags        []string  `json:"flags,omitempty"`
}

// ArbiterVerdict is the reviewer's response
type ArbiterVerdict struct {
	Judgement  Judgement `json:"judgement"`
	Reasoning  string    `json:"reasoning"`
	Confidence float64   `json:"confidence"`
}

// RiskResult is one player's scoring outcome
type RiskResult struct {
	PlayerID          string             `json:"player_id"`
	Status            string             `json:"status"`
	FinalScore        float64            `json:"final_score"`
	Tier              Tier               `json:"tier"`
	SubScores         SubScores          `json:"sub_scores"`
	Flags             []string           `json:"flags,omitempty"`
	ZScores           map[string]float64 `json:"z_scores,omitempty"`
	Arbiter           *ArbiterVerdict    `json:"arbiter,omitempty"`
	FallbackUsed      bool               `json:"fallback_used"`
	RecommendedAction string             `json:"recommended_action"`
	WeightVersion     string             `json:"weight_version"`
}

// ScoreBatchRequest selects the players to score. Empty PlayerIDs means the
// full population.
type ScoreBatchRequest struct {
	PlayerIDs []string `json:"player_ids,omitempty"`
}

// BatchReport is the output of one scoring run
type BatchReport struct {
	BatchID           uuid.UUID     `json:"batch_id"`
	GeneratedAt       time.Time     `json:"generated_at"`
	PlayersRequested  int           `json:"players_requested"`
	PlayersScored     int           `json:"players_scored"`
	SampleSize        int           `json:"sample_size"`
	TierCounts        map[Tier]int  `json:"tier_counts"`
	ArbiterConsulted  int           `json:"arbiter_consulted"`
	ArbiterFallbacks  int           `json:"arbiter_fallbacks"`
	WeightVersion     string        `json:"weight_version"`
	Results           []*RiskResult `json:"results"`
}

// VPIPDistribution counts players by preflop looseness
type VPIPDistribution struct {
	Tight     int `json:"tight"`
	Standard  int `json:"standard"`
	Loose     int `json:"loose"`
	VeryLoose int `json:"very_loose"`
}

// WinRateDistribution counts players by BB/100 band
type WinRateDistribution struct {
	BigLosers    int `json:"big_losers"`
	SmallLosers  int `json:"small_losers"`
	BreakEven    int `json:"break_even"`
	SmallWinners int `json:"small_winners"`
	BigWinners   int `json:"big_winners"`
}

// StatisticalReport is the population-wide statistical analysis payload
type StatisticalReport struct {
	SampleSize   int                                `json:"sample_size"`
	Metrics      map[string]analytics.MetricSummary `json:"metrics"`
	Correlations map[string]float64                 `json:"correlations"`
	Outliers     []analytics.OutlierRecord          `json:"outliers"`
	VPIP         VPIPDistribution                   `json:"vpip_distribution"`
	WinRate      WinRateDistribution                `json:"winrate_distribution"`
	Normality    map[string]bool                    `json:"normality"`
}

// PlayerComparison positions one player against the population
type PlayerComparison struct {
	PlayerID    string             `json:"player_id"`
	SampleSize  int                `json:"sample_size"`
	Percentiles map[string]float64 `json:"percentiles"`
	ZScores     map[string]float64 `json:"z_scores"`
}

// ClusterOverview totals one clustering run
type ClusterOverview struct {
	TotalPlayers      int     `json:"total_players"`
	SuspiciousPlayers int     `json:"suspicious_players"`
	HighRiskClusters  int     `json:"high_risk_clusters"`
	AvgBotRisk        float64 `json:"avg_bot_risk"`
}

// ClusterReport is the behavioral clustering payload
type ClusterReport struct {
	Clusters   []analytics.ClusterSummary `json:"clusters"`
	Iterations int                        `json:"iterations"`
	Converged  bool                       `json:"converged"`
	Overview   ClusterOverview            `json:"overview"`
}

// PatternReport is the peer-group pattern payload
type PatternReport struct {
	Patterns []analytics.PeerGroupAnomaly `json:"patterns"`
	Network  analytics.NetworkAnalysis    `json:"network_analysis"`
}
