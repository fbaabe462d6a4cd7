// Package arbiter implements the external review client. The arbiter is an
// LLM endpoint that receives one player's scoring evidence and returns a
// BOT/HUMAN/UNCERTAIN judgement with a confidence level.
package arbiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pokerwatch/player-integrity-backend/internal/domain/errors"
	"github.com/pokerwatch/player-integrity-backend/internal/infrastructure/config"
	"github.com/pokerwatch/player-integrity-backend/internal/service/scoring"
)

// Client calls the external arbiter over HTTP. It is safe for concurrent
// use; the scoring service bounds in-flight consultations on its side and
// the limiter throttles request starts on this side.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates an arbiter client from configuration.
func NewClient(cfg *config.ArbiterConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("arbiter config is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("arbiter url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		logger:     logger,
	}, nil
}

type reviewRequest struct {
	Model  string                 `json:"model,omitempty"`
	Player *scoring.ArbiterRequest `json:"player"`
}

type reviewResponse struct {
	Judgement  string  `json:"judgement"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// Review sends one consultation and parses the verdict. The caller's ctx
// carries the deadline; the limiter wait counts against it.
func (c *Client) Review(ctx context.Context, req *scoring.ArbiterRequest) (*scoring.ArbiterVerdict, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.NewExternalError("arbiter", "rate limiter wait aborted").WithCause(err)
	}

	body, err := json.Marshal(reviewRequest{Model: c.model, Player: req})
	if err != nil {
		return nil, errors.NewInternalError("failed to encode arbiter request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewInternalError("failed to build arbiter request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("arbiter request failed",
			zap.String("player_id", req.PlayerID),
			zap.Error(err))
		return nil, errors.NewExternalError("arbiter", "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("arbiter returned non-200",
			zap.String("player_id", req.PlayerID),
			zap.Int("status", resp.StatusCode))
		return nil, errors.NewExternalError("arbiter",
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.NewExternalError("arbiter", "failed to read response").WithCause(err)
	}

	var parsed reviewResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, errors.NewExternalError("arbiter", "malformed response").WithCause(err)
	}

	verdict := &scoring.ArbiterVerdict{
		Judgement:  normalizeJudgement(parsed.Judgement),
		Reasoning:  parsed.Reasoning,
		Confidence: clampConfidence(parsed.Confidence),
	}

	c.logger.Debug("arbiter verdict received",
		zap.String("player_id", req.PlayerID),
		zap.String("judgement", string(verdict.Judgement)),
		zap.Float64("confidence", verdict.Confidence))

	return verdict, nil
}

// normalizeJudgement maps free-form model output onto the three verdicts.
// Anything unrecognized is treated as UNCERTAIN rather than rejected.
func normalizeJudgement(raw string) scoring.Judgement {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BOT":
		return scoring.JudgementBot
	case "HUMAN":
		return scoring.JudgementHuman
	default:
		return scoring.JudgementUncertain
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
