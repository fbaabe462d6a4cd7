package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/pokerwatch/player-integrity-backend/internal/domain/player"
)

// Peer-group anomaly pattern types.
type PatternType string

const (
	PatternStatisticalClustering PatternType = "STATISTICAL_CLUSTERING"
	PatternBehavioralSync        PatternType = "BEHAVIORAL_SYNCHRONIZATION"
	PatternLowVarianceCluster    PatternType = "LOW_VARIANCE_CLUSTER"
	PatternProgressionAnomaly    PatternType = "PROGRESSION_ANOMALY"
	PatternHighRiskClustering    PatternType = "HIGH_RISK_CLUSTERING"
)

// Severity tiers for peer-group anomalies.
type Severity string

const (
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// PeerGroupAnomaly is one pattern detectable only by comparing many players
// against each other. Affected-player lists are capped per pattern so output
// size stays predictable.
type PeerGroupAnomaly struct {
	PatternType     PatternType `json:"pattern_type"`
	Severity        Severity    `json:"severity"`
	Description     string      `json:"description"`
	AffectedPlayers []string    `json:"affected_players"`
	RiskScore       float64     `json:"risk_score"`
	Indicators      []string    `json:"indicators"`
}

// PatternMatcherConfig carries the detection thresholds. Zero values take
// the documented defaults.
type PatternMatcherConfig struct {
	// Statistical clustering: rounded VPIP/PFR match plus preflop scores
	// within StatTolerance; flagged when more than StatMatchThreshold
	// players participate.
	StatTolerance      float64
	StatMatchThreshold int

	// Behavioral synchronization: bucket width and minimum group size.
	SyncBucketSize float64
	SyncGroupSize  int

	// Low variance: minimum band population and BB/100 stddev floor.
	LowVarianceMinPlayers int
	LowVarianceStdDev     float64

	// Reporting cap on affected-player lists.
	MaxAffectedPlayers int
}

func (c PatternMatcherConfig) withDefaults() PatternMatcherConfig {
	if c.StatTolerance == 0 {
		c.StatTolerance = 5
	}
	if c.StatMatchThreshold == 0 {
		c.StatMatchThreshold = 5
	}
	if c.SyncBucketSize == 0 {
		c.SyncBucketSize = 5
	}
	if c.SyncGroupSize == 0 {
		c.SyncGroupSize = 8
	}
	if c.LowVarianceMinPlayers == 0 {
		c.LowVarianceMinPlayers = 15
	}
	if c.LowVarianceStdDev == 0 {
		c.LowVarianceStdDev = 2
	}
	if c.MaxAffectedPlayers == 0 {
		c.MaxAffectedPlayers = 12
	}
	return c
}

// PatternMatcher scans a batch for peer-group anomalies that single-player
// scoring cannot see.
type PatternMatcher struct {
	cfg PatternMatcherConfig
}

// NewPatternMatcher creates a matcher with cfg, filling zero fields with the
// documented defaults.
func NewPatternMatcher(cfg PatternMatcherConfig) *PatternMatcher {
	return &PatternMatcher{cfg: cfg.withDefaults()}
}

// Detect runs every pattern scan and returns anomalies sorted by descending
// risk score. An empty batch yields an empty slice.
func (m *PatternMatcher) Detect(profiles []*player.Profile) []PeerGroupAnomaly {
	if len(profiles) == 0 {
		return nil
	}

	var anomalies []PeerGroupAnomaly
	anomalies = append(anomalies, m.detectStatisticalClustering(profiles)...)
	anomalies = append(anomalies, m.detectProgressionAnomalies(profiles)...)
	anomalies = append(anomalies, m.detectHighRiskClustering(profiles)...)
	anomalies = append(anomalies, m.detectLowVarianceClusters(profiles)...)
	anomalies = append(anomalies, m.detectBehavioralSync(profiles)...)

	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].RiskScore > anomalies[j].RiskScore
	})
	return anomalies
}

// detectStatisticalClustering flags players whose rounded VPIP and PFR match
// another player's and whose preflop scores sit within tolerance. Automated
// play tends to collapse these onto identical values.
func (m *PatternMatcher) detectStatisticalClustering(profiles []*player.Profile) []PeerGroupAnomaly {
	var matched []string
	for _, p := range profiles {
		vpip := math.Round(p.VPIP)
		pfr := math.Round(p.PFR)
		for _, other := range profiles {
			if other.PlayerID == p.PlayerID {
				continue
			}
			if math.Round(other.VPIP) == vpip && math.Round(other.PFR) == pfr &&
				math.Abs(other.AvgPreflopScore-p.AvgPreflopScore) < m.cfg.StatTolerance {
				matched = append(matched, p.PlayerID)
				break
			}
		}
	}

	if len(matched) <= m.cfg.StatMatchThreshold {
		return nil
	}

	return []PeerGroupAnomaly{{
		PatternType:     PatternStatisticalClustering,
		Severity:        SeverityHigh,
		Description:     "Multiple players with identical or near-identical statistics",
		AffectedPlayers: capPlayers(matched, m.cfg.MaxAffectedPlayers),
		RiskScore:       85,
		Indicators: []string{
			"Identical VPIP/PFR values across multiple accounts",
			"Similar preflop play patterns",
			fmt.Sprintf("%d accounts share a statistical signature", len(matched)),
		},
	}}
}

// detectProgressionAnomalies flags implausibly high skill on limited volume
// and implausibly exact break-even results over large volume.
func (m *PatternMatcher) detectProgressionAnomalies(profiles []*player.Profile) []PeerGroupAnomaly {
	var affected []string
	for _, p := range profiles {
		skill := p.SkillScore()
		winRate := p.WinRateBB100()
		if (skill > 90 && p.TotalHands > 500 && p.TotalHands < 2000) ||
			(math.Abs(winRate) < 0.1 && p.TotalHands > 1000) {
			affected = append(affected, p.PlayerID)
		}
	}
	if len(affected) == 0 {
		return nil
	}

	severity := SeverityMedium
	risk := 45.0
	if len(affected) > 5 {
		severity = SeverityHigh
		risk = 75
	}

	return []PeerGroupAnomaly{{
		PatternType:     PatternProgressionAnomaly,
		Severity:        severity,
		Description:     "Unnatural skill progression or results",
		AffectedPlayers: capPlayers(affected, m.cfg.MaxAffectedPlayers),
		RiskScore:       risk,
		Indicators: []string{
			"Suspiciously high skill scores with limited experience",
			"Unnaturally consistent results",
			"Lack of typical learning curve",
		},
	}}
}

// detectHighRiskClustering flags large groups of players already carrying
// elevated upstream risk indicators.
func (m *PatternMatcher) detectHighRiskClustering(profiles []*player.Profile) []PeerGroupAnomaly {
	var group []*player.Profile
	for _, p := range profiles {
		if p.BadActorScore > 70 || p.IntentionScore > 70 || p.CollusionScore > 70 {
			group = append(group, p)
		}
	}
	if len(group) <= 10 {
		return nil
	}

	var vpips, pfrs []float64
	ids := make([]string, 0, len(group))
	for _, p := range group {
		vpips = append(vpips, p.VPIP)
		pfrs = append(pfrs, p.PFR)
		ids = append(ids, p.PlayerID)
	}

	return []PeerGroupAnomaly{{
		PatternType:     PatternHighRiskClustering,
		Severity:        SeverityHigh,
		Description:     "Large cluster of high-risk players with similar characteristics",
		AffectedPlayers: capPlayers(ids, m.cfg.MaxAffectedPlayers),
		RiskScore:       80,
		Indicators: []string{
			fmt.Sprintf("%d players flagged with high risk scores", len(group)),
			fmt.Sprintf("Average VPIP: %.1f%%", Mean(vpips)),
			fmt.Sprintf("Average PFR: %.1f%%", Mean(pfrs)),
			"Potential coordinated suspicious activity",
		},
	}}
}

// volume bands for low-variance analysis
type volumeBand struct {
	name     string
	min, max int64
}

var volumeBands = []volumeBand{
	{"low", 0, 500},
	{"medium", 500, 2000},
	{"high", 2000, math.MaxInt64},
}

// detectLowVarianceClusters flags volume bands whose win rates are
// suspiciously uniform across many players.
func (m *PatternMatcher) detectLowVarianceClusters(profiles []*player.Profile) []PeerGroupAnomaly {
	var anomalies []PeerGroupAnomaly

	for _, band := range volumeBands {
		var group []*player.Profile
		for _, p := range profiles {
			if p.TotalHands >= band.min && p.TotalHands < band.max {
				group = append(group, p)
			}
		}
		if len(group) <= m.cfg.LowVarianceMinPlayers {
			continue
		}

		winRates := make([]float64, 0, len(group))
		ids := make([]string, 0, len(group))
		for _, p := range group {
			winRates = append(winRates, p.WinRateBB100())
			ids = append(ids, p.PlayerID)
		}

		sd := StdDev(winRates)
		if sd >= m.cfg.LowVarianceStdDev {
			continue
		}

		anomalies = append(anomalies, PeerGroupAnomaly{
			PatternType:     PatternLowVarianceCluster,
			Severity:        SeverityMedium,
			Description:     fmt.Sprintf("%s volume players show unnaturally consistent results", band.name),
			AffectedPlayers: capPlayers(ids, m.cfg.MaxAffectedPlayers),
			RiskScore:       60,
			Indicators: []string{
				fmt.Sprintf("Standard deviation: %.2f BB/100", sd),
				"Unusually consistent win rates across players",
				"Possible result manipulation or bot network",
			},
		})
	}

	return anomalies
}

// detectBehavioralSync quantizes (VPIP, PFR) into buckets and flags any
// bucket holding a suspiciously large group. Risk scales with group size,
// capped at 90.
func (m *PatternMatcher) detectBehavioralSync(profiles []*player.Profile) []PeerGroupAnomaly {
	type bucket struct{ vpip, pfr int }
	groups := make(map[bucket][]string)
	for _, p := range profiles {
		b := bucket{
			vpip: int(math.Round(p.VPIP/m.cfg.SyncBucketSize) * m.cfg.SyncBucketSize),
			pfr:  int(math.Round(p.PFR/m.cfg.SyncBucketSize) * m.cfg.SyncBucketSize),
		}
		groups[b] = append(groups[b], p.PlayerID)
	}

	var anomalies []PeerGroupAnomaly
	for b, ids := range groups {
		if len(ids) <= m.cfg.SyncGroupSize {
			continue
		}

		severity := SeverityMedium
		if len(ids) > 15 {
			severity = SeverityHigh
		}

		anomalies = append(anomalies, PeerGroupAnomaly{
			PatternType:     PatternBehavioralSync,
			Severity:        severity,
			Description:     "Large group of players with synchronized behavioral patterns",
			AffectedPlayers: capPlayers(ids, m.cfg.MaxAffectedPlayers),
			RiskScore:       math.Min(90, 40+float64(len(ids))*3),
			Indicators: []string{
				fmt.Sprintf("%d players with VPIP ~%d%% and PFR ~%d%%", len(ids), b.vpip, b.pfr),
				"Potential bot network or coaching group",
				"Synchronized playing styles",
			},
		})
	}

	return anomalies
}

// NetworkAnalysis summarizes one pattern-matching pass across the platform.
type NetworkAnalysis struct {
	PlayersAnalyzed     int                `json:"total_players_analyzed"`
	PatternsDetected    int                `json:"patterns_detected"`
	HighSeverity        int                `json:"high_severity_patterns"`
	MediumSeverity      int                `json:"medium_severity_patterns"`
	FlaggedPlayers      int                `json:"total_flagged_players"`
	AvgPatternRiskScore float64            `json:"avg_pattern_risk_score"`
	MostSuspicious      []PlayerPatternHit `json:"most_suspicious_players"`
}

// PlayerPatternHit counts how many distinct patterns name one player.
type PlayerPatternHit struct {
	PlayerID     string `json:"player_id"`
	PatternCount int    `json:"pattern_count"`
}

// AnalyzeNetwork aggregates pattern output: severity counts, distinct
// flagged players, and the players appearing in the most patterns.
func AnalyzeNetwork(playersAnalyzed int, anomalies []PeerGroupAnomaly) NetworkAnalysis {
	na := NetworkAnalysis{
		PlayersAnalyzed:  playersAnalyzed,
		PatternsDetected: len(anomalies),
	}

	frequency := make(map[string]int)
	riskSum := 0.0
	for _, a := range anomalies {
		riskSum += a.RiskScore
		switch a.Severity {
		case SeverityHigh:
			na.HighSeverity++
		case SeverityMedium:
			na.MediumSeverity++
		}
		for _, id := range a.AffectedPlayers {
			frequency[id]++
		}
	}
	na.FlaggedPlayers = len(frequency)
	if len(anomalies) > 0 {
		na.AvgPatternRiskScore = riskSum / float64(len(anomalies))
	}

	for id, count := range frequency {
		na.MostSuspicious = append(na.MostSuspicious, PlayerPatternHit{PlayerID: id, PatternCount: count})
	}
	sort.Slice(na.MostSuspicious, func(i, j int) bool {
		if na.MostSuspicious[i].PatternCount != na.MostSuspicious[j].PatternCount {
			return na.MostSuspicious[i].PatternCount > na.MostSuspicious[j].PatternCount
		}
		return na.MostSuspicious[i].PlayerID < na.MostSuspicious[j].PlayerID
	})
	if len(na.MostSuspicious) > 10 {
		na.MostSuspicious = na.MostSuspicious[:10]
	}

	return na
}

func capPlayers(ids []string, max int) []string {
	if len(ids) <= max {
		return ids
	}
	return ids[:max]
}
