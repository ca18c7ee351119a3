package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
)

type CallHistoryRepo struct {
	pool *pgxpool.Pool
}

func NewCallHistoryRepo(pool *pgxpool.Pool) *CallHistoryRepo {
	return &CallHistoryRepo{pool: pool}
}

// Insert archives one terminated call. Duplicate session ids are ignored so a
// replayed handoff stays harmless.
func (r *CallHistoryRepo) Insert(ctx context.Context, outcome model.CallOutcome) error {
	if r.pool == nil {
		return nil
	}

	const query = `
INSERT INTO call_history (
	session_id,
	participant_a,
	participant_b,
	state,
	score,
	started_at,
	ended_at,
	duration_ms,
	created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, NOW()
)
ON CONFLICT (session_id) DO NOTHING
`

	_, err := r.pool.Exec(ctx, query,
		outcome.SessionID,
		outcome.ParticipantA,
		outcome.ParticipantB,
		string(outcome.State),
		outcome.Score,
		outcome.StartedAt.UTC(),
		outcome.EndedAt.UTC(),
		outcome.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert call history: %w", err)
	}

	return nil
}
