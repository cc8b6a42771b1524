package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/marketpipe/ingestor/internal/persistence"
)

// CheckpointRepo persists C10's opaque state blobs. A workflow's most
// recent row by timestamp is the one Load returns.
type CheckpointRepo struct {
	db *sqlx.DB
}

func NewCheckpointRepo(db *sqlx.DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

func (r *CheckpointRepo) Save(ctx context.Context, workflowID, stage string, state []byte) error {
	const q = `INSERT INTO checkpoints (workflow_id, stage, state, timestamp) VALUES ($1, $2, $3, now())`
	_, err := r.db.ExecContext(ctx, q, workflowID, stage, state)
	return err
}

func (r *CheckpointRepo) Load(ctx context.Context, workflowID string) (*persistence.Checkpoint, error) {
	const q = `
		SELECT workflow_id, stage, state, timestamp
		FROM checkpoints
		WHERE workflow_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`
	var cp persistence.Checkpoint
	row := r.db.QueryRowxContext(ctx, q, workflowID)
	if err := row.Scan(&cp.WorkflowID, &cp.Stage, &cp.State, &cp.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}
