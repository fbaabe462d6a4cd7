package analytics

import (
	"math"
	"math/rand"

	"github.com/pokerwatch/player-integrity-backend/internal/domain/player"
)

// Cluster risk labels derived from member bot-risk scores.
type ClusterLabel string

const (
	ClusterNormal     ClusterLabel = "Normal"
	ClusterMediumRisk ClusterLabel = "Medium Risk"
	ClusterHighRisk   ClusterLabel = "High Risk / Potential Bot Farm"
)

// Classification thresholds for cluster post-processing.
const (
	clusterHighMeanRisk       = 60.0
	clusterMediumMeanRisk     = 40.0
	clusterSuspiciousFraction = 0.5
	memberSuspicionThreshold  = 50.0
)

// Point is one player projected onto the 2-D behavioral plane:
// x = PFR/VPIP style ratio in [0,1], y = combined skill score in [0,100].
type Point struct {
	PlayerID string  `json:"player_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	BotRisk  float64 `json:"bot_risk"`
}

// Centroid is a cluster center on the behavioral plane.
type Centroid struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClusterSummary describes one cluster after post-processing.
type ClusterSummary struct {
	ID              int          `json:"id"`
	Size            int          `json:"size"`
	Centroid        Centroid     `json:"centroid"`
	MeanBotRisk     float64      `json:"mean_bot_risk"`
	MeanHands       float64      `json:"mean_hands"`
	SuspiciousCount int          `json:"suspicious_count"`
	Label           ClusterLabel `json:"label"`
	Members         []string     `json:"members"`
}

// ClusterResult is the full output of one clustering pass.
type ClusterResult struct {
	Assignments []int            `json:"assignments"`
	Centroids   []Centroid       `json:"centroids"`
	Iterations  int              `json:"iterations"`
	Converged   bool             `json:"converged"`
	Clusters    []ClusterSummary `json:"clusters"`
}

// ClusteringEngine partitions players into behavioral clusters with k-means.
// The random source is caller-supplied so runs are reproducible in tests and
// deterministic when required; production wiring passes a time-seeded source.
type ClusteringEngine struct {
	k             int
	maxIterations int
	rng           *rand.Rand
}

// NewClusteringEngine creates an engine with k clusters and the given random
// source. Non-positive k defaults to 4; nil rng panics early rather than
// falling back to a hidden global source.
func NewClusteringEngine(k int, rng *rand.Rand) *ClusteringEngine {
	if k <= 0 {
		k = 4
	}
	if rng == nil {
		panic("analytics: ClusteringEngine requires an explicit random source")
	}
	return &ClusteringEngine{k: k, maxIterations: 50, rng: rng}
}

// Project converts profiles into behavioral-plane points. The bot-risk score
// attached to each point is riskOf(profile), letting the caller decide which
// risk signal drives cluster labeling.
func Project(profiles []*player.Profile, riskOf func(*player.Profile) float64) []Point {
	points := make([]Point, 0, len(profiles))
	for _, p := range profiles {
		points = append(points, Point{
			PlayerID: p.PlayerID,
			X:        p.StyleRatio(),
			Y:        p.SkillScore(),
			BotRisk:  riskOf(p),
		})
	}
	return points
}

// Cluster runs k-means until assignments stabilize or the iteration cap is
// reached. The result is a local fixed point, not a global optimum. Empty
// input yields an empty result; k >= len(points) leaves some clusters empty,
// reported with size 0.
func (e *ClusteringEngine) Cluster(points []Point) *ClusterResult {
	if len(points) == 0 {
		return &ClusterResult{Converged: true}
	}

	centroids := make([]Centroid, e.k)
	for i := range centroids {
		picked := points[e.rng.Intn(len(points))]
		centroids[i] = Centroid{X: picked.X, Y: picked.Y}
	}

	assignments := make([]int, len(points))
	converged := false
	iterations := 0

	for iterations < e.maxIterations {
		changed := false

		// Assignment pass: nearest centroid by Euclidean distance.
		for i, pt := range points {
			best := 0
			bestDist := math.Inf(1)
			for j, c := range centroids {
				d := euclidean(pt, c)
				if d < bestDist {
					bestDist = d
					best = j
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		// Update pass: centroid = mean of assigned points; empty clusters
		// retain their previous position.
		sumX := make([]float64, e.k)
		sumY := make([]float64, e.k)
		counts := make([]int, e.k)
		for i, pt := range points {
			j := assignments[i]
			sumX[j] += pt.X
			sumY[j] += pt.Y
			counts[j]++
		}
		for j := range centroids {
			if counts[j] > 0 {
				centroids[j] = Centroid{X: sumX[j] / float64(counts[j]), Y: sumY[j] / float64(counts[j])}
			}
		}

		iterations++
		if !changed {
			converged = true
			break
		}
	}

	return &ClusterResult{
		Assignments: assignments,
		Centroids:   centroids,
		Iterations:  iterations,
		Converged:   converged,
	}
}

// ClusterProfiles projects, clusters, and labels profiles in one pass.
func (e *ClusteringEngine) ClusterProfiles(profiles []*player.Profile, riskOf func(*player.Profile) float64) *ClusterResult {
	points := Project(profiles, riskOf)
	result := e.Cluster(points)
	result.Clusters = e.summarize(points, profiles, result)
	return result
}

// summarize post-processes raw assignments into labeled cluster summaries.
func (e *ClusteringEngine) summarize(points []Point, profiles []*player.Profile, result *ClusterResult) []ClusterSummary {
	if len(points) == 0 {
		return nil
	}

	summaries := make([]ClusterSummary, e.k)
	for j := range summaries {
		summaries[j] = ClusterSummary{ID: j, Centroid: result.Centroids[j], Label: ClusterNormal}
	}

	for i, pt := range points {
		j := result.Assignments[i]
		s := &summaries[j]
		s.Size++
		s.MeanBotRisk += pt.BotRisk
		s.MeanHands += float64(profiles[i].TotalHands)
		if pt.BotRisk > memberSuspicionThreshold {
			s.SuspiciousCount++
		}
		s.Members = append(s.Members, pt.PlayerID)
	}

	for j := range summaries {
		s := &summaries[j]
		if s.Size == 0 {
			continue
		}
		s.MeanBotRisk /= float64(s.Size)
		s.MeanHands /= float64(s.Size)

		suspiciousFraction := float64(s.SuspiciousCount) / float64(s.Size)
		switch {
		case s.MeanBotRisk > clusterHighMeanRisk || suspiciousFraction > clusterSuspiciousFraction:
			s.Label = ClusterHighRisk
		case s.MeanBotRisk > clusterMediumMeanRisk || s.SuspiciousCount > 0:
			s.Label = ClusterMediumRisk
		}
	}

	return summaries
}

func euclidean(p Point, c Centroid) float64 {
	dx := p.X - c.X
	dy := p.Y - c.Y
	return math.Sqrt(dx*dx + dy*dy)
}
