package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pokerwatch/player-integrity-backend/internal/domain/errors"
	"github.com/pokerwatch/player-integrity-backend/internal/domain/player"
	"github.com/pokerwatch/player-integrity-backend/internal/service/scoring"
)

// PlayerRepository implements the scoring.Repository interface over
// PostgreSQL. Profile rows come from the upstream hunter pipeline; nullable
// columns map onto the raw profile's pointer fields so a missing stat stays
// distinguishable from a zero.
type PlayerRepository struct {
	db *pgxpool.Pool
}

// NewPlayerRepository creates a new PostgreSQL player repository
func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

const profileColumns = `
	player_id, total_hands, net_win_bb, vpip, pfr,
	avg_preflop_score, avg_postflop_score,
	bad_actor_score, intention_score, collusion_score
`

// ListProfiles returns every profile eligible for scoring
func (r *PlayerRepository) ListProfiles(ctx context.Context) ([]player.RawProfile, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+profileColumns+`
		FROM player_profiles
		ORDER BY player_id
	`)
	if err != nil {
		return nil, errors.NewInternalError("failed to query player profiles").WithCause(err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

// GetProfiles returns the profiles for the given ids; missing ids are simply
// absent from the result
func (r *PlayerRepository) GetProfiles(ctx context.Context, playerIDs []string) ([]player.RawProfile, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+profileColumns+`
		FROM player_profiles
		WHERE player_id = ANY($1)
		ORDER BY player_id
	`, playerIDs)
	if err != nil {
		return nil, errors.NewInternalError("failed to query player profiles").WithCause(err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

// SaveResults persists one batch's scoring output
func (r *PlayerRepository) SaveResults(ctx context.Context, batchID uuid.UUID, results []*scoring.RiskResult) error {
	if len(results) == 0 {
		return nil
	}

	return pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		now := time.Now().UTC()

		_, err := tx.Exec(ctx, `
			INSERT INTO scoring_batches (id, created_at, players_scored, weight_version)
			VALUES ($1, $2, $3, $4)
		`, batchID, now, len(results), results[0].WeightVersion)
		if err != nil {
			return errors.NewInternalError("failed to insert scoring batch").WithCause(err)
		}

		batch := &pgx.Batch{}
		for _, result := range results {
			subScores, err := json.Marshal(result.SubScores)
			if err != nil {
				return errors.NewInternalError("failed to marshal sub scores").WithCause(err)
			}
			zScores, err := json.Marshal(result.ZScores)
			if err != nil {
				return errors.NewInternalError("failed to marshal z scores").WithCause(err)
			}
			var verdict []byte
			if result.Arbiter != nil {
				verdict, err = json.Marshal(result.Arbiter)
				if err != nil {
					return errors.NewInternalError("failed to marshal arbiter verdict").WithCause(err)
				}
			}

			batch.Queue(`
				INSERT INTO risk_results (
					batch_id, player_id, status, final_score, tier,
					sub_scores, flags, z_scores, arbiter_verdict,
					fallback_used, recommended_action, weight_version, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			`, batchID, result.PlayerID, result.Status, result.FinalScore,
				string(result.Tier), subScores, result.Flags, zScores, verdict,
				result.FallbackUsed, result.RecommendedAction, result.WeightVersion, now)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for range results {
			if _, err := br.Exec(); err != nil {
				return errors.NewInternalError("failed to insert risk result").WithCause(err)
			}
		}
		return nil
	})
}

// scanProfiles reads profile rows into raw profiles. pgx maps NULL columns
// onto nil pointers directly.
func scanProfiles(rows pgx.Rows) ([]player.RawProfile, error) {
	var profiles []player.RawProfile
	for rows.Next() {
		var p player.RawProfile
		err := rows.Scan(
			&p.PlayerID, &p.TotalHands, &p.NetWinBB, &p.VPIP, &p.PFR,
			&p.AvgPreflopScore, &p.AvgPostflopScore,
			&p.BadActorScore, &p.IntentionScore, &p.CollusionScore,
		)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan player profile").WithCause(err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read player profiles").WithCause(err)
	}
	return profiles, nil
}
