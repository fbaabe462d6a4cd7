package scoring

import (
	"context"
	"log/slog"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pokerwatch/player-integrity-backend/internal/analytics"
	"github.com/pokerwatch/player-integrity-backend/internal/domain/errors"
	"github.com/pokerwatch/player-integrity-backend/internal/domain/player"
	"github.com/pokerwatch/player-integrity-backend/internal/metrics"
)

// Config carries the scoring service tunables
type Config struct {
	// Weights is the composite weight vector applied to every player
	Weights WeightConfig
	// ClusterCount is the k used for behavioral clustering
	ClusterCount int
	// Arbiter band: scores strictly inside (LowerBound, UpperBound) are
	// eligible for external review
	ArbiterLowerBound float64
	ArbiterUpperBound float64
	// ArbiterTimeout bounds each consultation
	ArbiterTimeout time.Duration
	// ArbiterMaxInFlight bounds concurrent consultations
	ArbiterMaxInFlight int
	// EscalationConfidence is the minimum BOT confidence that raises a tier
	EscalationConfidence float64
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Weights:              DefaultWeights(),
		ClusterCount:         4,
		ArbiterLowerBound:    tierNoThreatMax,
		ArbiterUpperBound:    tierHighRiskMax,
		ArbiterTimeout:       8 * time.Second,
		ArbiterMaxInFlight:   4,
		EscalationConfidence: 70,
	}
}

// service implements the Service interface
type service struct {
	repo     Repository
	arbiter  Arbiter
	cfg      Config
	detector *analytics.OutlierDetector
	matcher  *analytics.PatternMatcher
	metrics  *metrics.Registry
	logger   *slog.Logger

	arbiterSem chan struct{}

	// seed source for per-request clustering engines
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService creates a new scoring service. arbiter and reg may be nil; the
// service then scores without external review and without metric recording.
// rng may be nil, in which case clustering seeds from the wall clock.
func NewService(
	repo Repository,
	arbiter Arbiter,
	cfg Config,
	reg *metrics.Registry,
	logger *slog.Logger,
	rng *rand.Rand,
) (Service, error) {
	if repo == nil {
		return nil, errors.NewInternalError("scoring service requires a repository")
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.ClusterCount <= 0 {
		cfg.ClusterCount = 4
	}
	if cfg.ArbiterTimeout <= 0 {
		cfg.ArbiterTimeout = 8 * time.Second
	}
	if cfg.ArbiterMaxInFlight <= 0 {
		cfg.ArbiterMaxInFlight = 4
	}
	if cfg.ArbiterUpperBound <= cfg.ArbiterLowerBound {
		cfg.ArbiterLowerBound = tierNoThreatMax
		cfg.ArbiterUpperBound = tierHighRiskMax
	}
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &service{
		repo:       repo,
		arbiter:    arbiter,
		cfg:        cfg,
		detector:   analytics.NewOutlierDetector(analytics.OutlierZThreshold),
		matcher:    analytics.NewPatternMatcher(analytics.PatternMatcherConfig{}),
		metrics:    reg,
		logger:     logger,
		arbiterSem: make(chan struct{}, cfg.ArbiterMaxInFlight),
		rng:        rng,
	}, nil
}

// ScoreBatch scores the requested players against their own population.
// Cancellation between players returns the results scored so far.
func (s *service) ScoreBatch(ctx context.Context, req *ScoreBatchRequest) (*BatchReport, error) {
	start := time.Now()
	if req == nil {
		req = &ScoreBatchRequest{}
	}

	var (
		raws []player.RawProfile
		err  error
	)
	if len(req.PlayerIDs) == 0 {
		raws, err = s.repo.ListProfiles(ctx)
	} else {
		raws, err = s.repo.GetProfiles(ctx, req.PlayerIDs)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load player profiles")
	}

	profiles, err := buildProfiles(raws)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{
		BatchID:       uuid.New(),
		GeneratedAt:   time.Now().UTC(),
		TierCounts:    make(map[Tier]int),
		WeightVersion: s.cfg.Weights.Version,
	}
	report.PlayersRequested = len(req.PlayerIDs)
	if report.PlayersRequested == 0 {
		report.PlayersRequested = len(profiles)
	}

	// Requested ids with no stored profile still get a result row.
	var results []*RiskResult
	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		seen[p.PlayerID] = true
	}
	for _, id := range req.PlayerIDs {
		if !seen[id] {
			results = append(results, &RiskResult{
				PlayerID:          id,
				Status:            StatusNoData,
				Tier:              TierNoThreat,
				RecommendedAction: RecommendedAction(TierNoThreat),
				WeightVersion:     s.cfg.Weights.Version,
			})
		}
	}

	// An empty population is a data-quality condition, not an error: the
	// caller gets an empty report, plus no_data rows for any requested ids.
	if len(profiles) == 0 {
		report.Results = results
		s.logger.InfoContext(ctx, "batch scored",
			slog.String("batch_id", report.BatchID.String()),
			slog.Int("players_scored", 0))
		return report, nil
	}

	pop := analytics.ComputePopulation(profiles)
	records := s.detector.Detect(profiles, pop)
	recByID := make(map[string]*analytics.OutlierRecord, len(records))
	for _, rec := range records {
		recByID[rec.PlayerID] = rec
	}

	status := StatusScored
	if pop.SampleSize < analytics.MinReliableSampleSize {
		status = StatusInsufficientSample
	}

	results = append(results, s.scoreAll(ctx, profiles, recByID, status)...)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})

	report.Results = results
	report.SampleSize = pop.SampleSize
	for _, r := range results {
		if r.Status == StatusNoData {
			continue
		}
		report.PlayersScored++
		report.TierCounts[r.Tier]++
		if r.Arbiter != nil || r.FallbackUsed {
			report.ArbiterConsulted++
		}
		if r.FallbackUsed {
			report.ArbiterFallbacks++
		}
	}

	s.metrics.SetBatchSampleSize(int64(pop.SampleSize))
	tierCounts := make(map[string]int, len(report.TierCounts))
	for tier, n := range report.TierCounts {
		tierCounts[string(tier)] = n
	}
	s.metrics.RecordBatch(ctx, float64(time.Since(start).Milliseconds()), report.PlayersScored, tierCounts)

	if ctx.Err() == nil {
		if err := s.repo.SaveResults(ctx, report.BatchID, results); err != nil {
			s.logger.WarnContext(ctx, "failed to persist batch results",
				slog.String("batch_id", report.BatchID.String()),
				slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "batch scored",
		slog.String("batch_id", report.BatchID.String()),
		slog.Int("players_scored", report.PlayersScored),
		slog.Int("arbiter_consulted", report.ArbiterConsulted))

	return report, nil
}

// scoreAll fans the batch out across a bounded worker pool. Workers share
// the immutable population and write only their own result.
func (s *service) scoreAll(
	ctx context.Context,
	profiles []*player.Profile,
	recByID map[string]*analytics.OutlierRecord,
	status string,
) []*RiskResult {
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(profiles) {
		numWorkers = len(profiles)
	}

	jobs := make(chan *player.Profile)
	out := make(chan *RiskResult, len(profiles))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				out <- s.scorePlayer(ctx, p, recByID[p.PlayerID], status)
			}
		}()
	}

dispatch:
	for _, p := range profiles {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- p:
		}
	}
	close(jobs)
	wg.Wait()
	close(out)

	results := make([]*RiskResult, 0, len(profiles))
	for r := range out {
		results = append(results, r)
	}
	return results
}

// scorePlayer computes one player's composite result, consulting the
// arbiter when the score lands in the uncertainty band.
func (s *service) scorePlayer(ctx context.Context, p *player.Profile, rec *analytics.OutlierRecord, status string) *RiskResult {
	subs := computeSubScores(p, rec)
	final := s.cfg.Weights.Compose(subs)
	tier := TierForScore(final)

	result := &RiskResult{
		PlayerID:      p.PlayerID,
		Status:        status,
		FinalScore:    final,
		Tier:          tier,
		SubScores:     subs,
		WeightVersion: s.cfg.Weights.Version,
	}
	if rec != nil {
		result.Flags = rec.Flags
		result.ZScores = rec.ZScores
	}

	if s.arbiter != nil && final > s.cfg.ArbiterLowerBound && final < s.cfg.ArbiterUpperBound {
		verdict, fallback := s.consultArbiter(ctx, p, subs, final, result.Flags)
		result.Arbiter = verdict
		result.FallbackUsed = fallback
		if verdict != nil && verdict.Judgement == JudgementBot && verdict.Confidence >= s.cfg.EscalationConfidence {
			result.Tier = EscalateTier(tier)
		}
	}

	result.RecommendedAction = RecommendedAction(result.Tier)
	s.metrics.RecordScore(ctx, final)
	return result
}

// consultArbiter performs one bounded, time-limited consultation. Any
// failure degrades to the local verdict; it is never fatal.
func (s *service) consultArbiter(ctx context.Context, p *player.Profile, subs SubScores, final float64, flags []string) (*ArbiterVerdict, bool) {
	select {
	case s.arbiterSem <- struct{}{}:
	case <-ctx.Done():
		return nil, true
	}
	defer func() { <-s.arbiterSem }()

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ArbiterTimeout)
	defer cancel()

	start := time.Now()
	verdict, err := s.arbiter.Review(callCtx, &ArbiterRequest{
		PlayerID:     p.PlayerID,
		FinalScore:   final,
		SubScores:    subs,
		TotalHands:   p.TotalHands,
		VPIP:         p.VPIP,
		PFR:          p.PFR,
		WinRateBB100: p.WinRateBB100(),
		Flags:        flags,
	})
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		s.metrics.RecordArbiterConsult(ctx, latency, true)
		s.logger.WarnContext(ctx, "arbiter consultation failed",
			slog.String("player_id", p.PlayerID),
			slog.String("error", err.Error()))
		return nil, true
	}

	s.metrics.RecordArbiterConsult(ctx, latency, false)
	return verdict, false
}

// StatisticalReport builds the population-wide statistical analysis.
func (s *service) StatisticalReport(ctx context.Context, minHands int64) (*StatisticalReport, error) {
	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return nil, err
	}

	if minHands > 0 {
		filtered := profiles[:0]
		for _, p := range profiles {
			if p.TotalHands >= minHands {
				filtered = append(filtered, p)
			}
		}
		profiles = filtered
	}
	if len(profiles) == 0 {
		return &StatisticalReport{
			Metrics:      map[string]analytics.MetricSummary{},
			Correlations: map[string]float64{},
			Normality:    map[string]bool{},
		}, nil
	}

	pop := analytics.ComputePopulation(profiles)
	records := s.detector.Detect(profiles, pop)

	flagged := make([]analytics.OutlierRecord, 0)
	for _, rec := range records {
		if len(rec.Flags) > 0 {
			flagged = append(flagged, *rec)
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		return flagged[i].MaxAbsZ() > flagged[j].MaxAbsZ()
	})
	if len(flagged) > 20 {
		flagged = flagged[:20]
	}

	report := &StatisticalReport{
		SampleSize:   pop.SampleSize,
		Metrics:      pop.Metrics,
		Correlations: pop.Correlations,
		Outliers:     flagged,
		Normality:    make(map[string]bool, 3),
	}

	for _, p := range profiles {
		switch v := p.VPIP; {
		case v < 15:
			report.VPIP.Tight++
		case v < 25:
			report.VPIP.Standard++
		case v < 35:
			report.VPIP.Loose++
		default:
			report.VPIP.VeryLoose++
		}

		switch wr := p.WinRateBB100(); {
		case wr < -5:
			report.WinRate.BigLosers++
		case wr < 0:
			report.WinRate.SmallLosers++
		case wr < 2:
			report.WinRate.BreakEven++
		case wr < 5:
			report.WinRate.SmallWinners++
		default:
			report.WinRate.BigWinners++
		}
	}

	for _, metric := range []string{analytics.MetricVPIP, analytics.MetricPFR, analytics.MetricWinRate} {
		report.Normality[metric] = pop.Metrics[metric].IsApproximatelyNormal()
	}

	return report, nil
}

// ComparePlayer positions one player against the full population.
func (s *service) ComparePlayer(ctx context.Context, playerID string) (*PlayerComparison, error) {
	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return nil, err
	}
	var target *player.Profile
	for _, p := range profiles {
		if p.PlayerID == playerID {
			target = p
			break
		}
	}
	if target == nil {
		return nil, errors.ErrProfileNotFound
	}

	pop := analytics.ComputePopulation(profiles)

	comparison := &PlayerComparison{
		PlayerID:    playerID,
		SampleSize:  pop.SampleSize,
		Percentiles: make(map[string]float64, 5),
		ZScores:     make(map[string]float64, 5),
	}

	values := map[string]float64{
		analytics.MetricVPIP:          target.VPIP,
		analytics.MetricPFR:           target.PFR,
		analytics.MetricWinRate:       target.WinRateBB100(),
		analytics.MetricPreflopScore:  target.AvgPreflopScore,
		analytics.MetricPostflopScore: target.AvgPostflopScore,
	}
	for metric, v := range values {
		comparison.Percentiles[metric] = pop.PercentileRank(metric, v)
		comparison.ZScores[metric] = pop.ZScore(metric, v)
	}

	return comparison, nil
}

// ClusterReport runs behavioral clustering over the population using the
// pre-arbiter composite score as each point's bot risk.
func (s *service) ClusterReport(ctx context.Context) (*ClusterReport, error) {
	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return &ClusterReport{}, nil
	}

	pop := analytics.ComputePopulation(profiles)
	records := s.detector.Detect(profiles, pop)
	recByID := make(map[string]*analytics.OutlierRecord, len(records))
	for _, rec := range records {
		recByID[rec.PlayerID] = rec
	}

	riskOf := func(p *player.Profile) float64 {
		return s.cfg.Weights.Compose(computeSubScores(p, recByID[p.PlayerID]))
	}

	engine := analytics.NewClusteringEngine(s.cfg.ClusterCount, s.newRand())

	start := time.Now()
	result := engine.ClusterProfiles(profiles, riskOf)
	s.metrics.RecordClustering(ctx, float64(time.Since(start).Milliseconds()), result.Converged)

	report := &ClusterReport{
		Clusters:   result.Clusters,
		Iterations: result.Iterations,
		Converged:  result.Converged,
		Overview: ClusterOverview{
			TotalPlayers: len(profiles),
		},
	}

	riskSum := 0.0
	for _, p := range profiles {
		riskSum += riskOf(p)
	}
	report.Overview.AvgBotRisk = riskSum / float64(len(profiles))

	for _, c := range result.Clusters {
		report.Overview.SuspiciousPlayers += c.SuspiciousCount
		if c.Label == analytics.ClusterHighRisk {
			report.Overview.HighRiskClusters++
		}
	}

	return report, nil
}

// PatternReport runs the peer-group pattern scans over the population.
func (s *service) PatternReport(ctx context.Context) (*PatternReport, error) {
	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return nil, err
	}
	anomalies := s.matcher.Detect(profiles)

	countsByType := make(map[string]int)
	for _, a := range anomalies {
		countsByType[string(a.PatternType)]++
	}
	s.metrics.RecordPatterns(ctx, countsByType)

	return &PatternReport{
		Patterns: anomalies,
		Network:  analytics.AnalyzeNetwork(len(profiles), anomalies),
	}, nil
}

// loadProfiles fetches and validates the full population.
func (s *service) loadProfiles(ctx context.Context) ([]*player.Profile, error) {
	raws, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load player profiles")
	}
	return buildProfiles(raws)
}

// newRand derives an independent, seedable source for one clustering run.
func (s *service) newRand() *rand.Rand {
	s.rngMu.Lock()
	seed := s.rng.Int63()
	s.rngMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func buildProfiles(raws []player.RawProfile) ([]*player.Profile, error) {
	profiles := make([]*player.Profile, 0, len(raws))
	for _, raw := range raws {
		p, err := player.NewProfile(raw)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
