package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokerwatch/player-integrity-backend/internal/domain/errors"
)

func f(v float64) *float64 { return &v }
func i(v int64) *int64     { return &v }

func TestNewProfile(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawProfile
		wantErr bool
		check   func(*testing.T, *Profile)
	}{
		{
			name: "fully populated row",
			raw: RawProfile{
				PlayerID:         "CoinPoker/184444",
				TotalHands:       i(5000),
				NetWinBB:         f(250),
				VPIP:             f(24.5),
				PFR:              f(18.2),
				AvgPreflopScore:  f(71),
				AvgPostflopScore: f(66),
				BadActorScore:    f(12),
				IntentionScore:   f(8),
				CollusionScore:   f(3),
			},
			check: func(t *testing.T, p *Profile) {
				assert.Equal(t, int64(5000), p.TotalHands)
				assert.InDelta(t, 24.5, p.VPIP, 0.001)
				assert.InDelta(t, 5.0, p.WinRateBB100(), 0.001)
			},
		},
		{
			name: "missing score fields default to neutral baseline",
			raw: RawProfile{
				PlayerID:   "CoinPoker/200001",
				TotalHands: i(120),
				VPIP:       f(30),
				PFR:        f(20),
			},
			check: func(t *testing.T, p *Profile) {
				assert.Equal(t, NeutralScore, p.AvgPreflopScore)
				assert.Equal(t, NeutralScore, p.BadActorScore)
				assert.Equal(t, NeutralScore, p.IntentionScore)
				assert.Equal(t, NeutralScore, p.CollusionScore)
				// Counts default to zero, not the neutral baseline.
				assert.Equal(t, 0.0, p.NetWinBB)
			},
		},
		{
			name: "out of range percentages are clamped",
			raw: RawProfile{
				PlayerID:      "CoinPoker/200002",
				TotalHands:    i(100),
				VPIP:          f(140),
				PFR:           f(-5),
				BadActorScore: f(250),
			},
			check: func(t *testing.T, p *Profile) {
				assert.Equal(t, 100.0, p.VPIP)
				assert.Equal(t, 0.0, p.PFR)
				assert.Equal(t, 100.0, p.BadActorScore)
			},
		},
		{
			name:    "empty player id rejected",
			raw:     RawProfile{TotalHands: i(10)},
			wantErr: true,
		},
		{
			name:    "negative hand count is an invariant violation",
			raw:     RawProfile{PlayerID: "CoinPoker/200003", TotalHands: i(-1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProfile(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestNewProfile_NegativeHandsSurfacedAsInvariant(t *testing.T) {
	_, err := NewProfile(RawProfile{PlayerID: "x", TotalHands: i(-50)})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvariant))
}

func TestProfile_StyleRatio(t *testing.T) {
	tests := []struct {
		name string
		vpip float64
		pfr  float64
		want float64
	}{
		{"typical tight-aggressive", 22, 16.5, 0.75},
		{"zero vpip", 0, 10, 0},
		{"pfr above vpip clamps to one", 10, 15, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Profile{VPIP: tt.vpip, PFR: tt.pfr}
			assert.InDelta(t, tt.want, p.StyleRatio(), 0.001)
		})
	}
}

func TestProfile_WinRateBB100_ZeroHands(t *testing.T) {
	p := &Profile{NetWinBB: 100}
	assert.Equal(t, 0.0, p.WinRateBB100())
}
