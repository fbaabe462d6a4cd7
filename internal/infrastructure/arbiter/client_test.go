package arbiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/pokerwatch/player-integrity-backend/internal/domain/errors"
	"github.com/pokerwatch/player-integrity-backend/internal/infrastructure/config"
	"github.com/pokerwatch/player-integrity-backend/internal/service/scoring"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(&config.ArbiterConfig{
		URL:               url,
		APIKey:            "secret",
		Model:             "gpt-4o",
		Timeout:           2 * time.Second,
		RequestsPerSecond: 100,
		Burst:             100,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func sampleRequest() *scoring.ArbiterRequest {
	return &scoring.ArbiterRequest{
		PlayerID:   "gray",
		FinalScore: 55,
		SubScores:  scoring.SubScores{Timing: 60, Behavioral: 50},
		TotalHands: 2000,
		VPIP:       25,
		PFR:        18,
	}
}

func TestNewClient(t *testing.T) {
	t.Run("missing url rejected", func(t *testing.T) {
		_, err := NewClient(&config.ArbiterConfig{}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("nil config rejected", func(t *testing.T) {
		_, err := NewClient(nil, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestClient_Review(t *testing.T) {
	tests := []struct {
		name           string
		response       string
		wantJudgement  scoring.Judgement
		wantConfidence float64
	}{
		{
			name:           "bot verdict",
			response:       `{"judgement":"BOT","reasoning":"metronomic timing","confidence":92}`,
			wantJudgement:  scoring.JudgementBot,
			wantConfidence: 92,
		},
		{
			name:           "lowercase judgement normalized",
			response:       `{"judgement":"human","reasoning":"organic variance","confidence":70}`,
			wantJudgement:  scoring.JudgementHuman,
			wantConfidence: 70,
		},
		{
			name:           "unknown judgement treated as uncertain",
			response:       `{"judgement":"MAYBE","reasoning":"mixed","confidence":55}`,
			wantJudgement:  scoring.JudgementUncertain,
			wantConfidence: 55,
		},
		{
			name:           "confidence clamped",
			response:       `{"judgement":"BOT","reasoning":"x","confidence":140}`,
			wantJudgement:  scoring.JudgementBot,
			wantConfidence: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var body reviewRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "gpt-4o", body.Model)
				require.NotNil(t, body.Player)
				assert.Equal(t, "gray", body.Player.PlayerID)

				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			verdict, err := client.Review(context.Background(), sampleRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.wantJudgement, verdict.Judgement)
			assert.InDelta(t, tt.wantConfidence, verdict.Confidence, 1e-9)
		})
	}
}

func TestClient_Review_UpstreamFailure(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		_, err := client.Review(context.Background(), sampleRequest())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	})

	t.Run("malformed response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		_, err := client.Review(context.Background(), sampleRequest())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := newTestClient(t, srv.URL)
		_, err := client.Review(ctx, sampleRequest())
		assert.Error(t, err)
	})
}
