package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// GateAuditRepo persists the workflow_gate_results audit trail every
// gate evaluation leaves behind.
type GateAuditRepo struct {
	db *sqlx.DB
}

func NewGateAuditRepo(db *sqlx.DB) *GateAuditRepo {
	return &GateAuditRepo{db: db}
}

const upsertGateResultSQL = `
INSERT INTO workflow_gate_results (workflow_id, stage, symbol, gate_name, passed, reason, action, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (workflow_id, stage, symbol, gate_name) DO UPDATE SET
	passed = EXCLUDED.passed, reason = EXCLUDED.reason, action = EXCLUDED.action, recorded_at = EXCLUDED.recorded_at
`

func (r *GateAuditRepo) Record(ctx context.Context, workflowID, stage, symbol, gateName string, passed bool, reason, action string) error {
	_, err := r.db.ExecContext(ctx, upsertGateResultSQL, workflowID, stage, symbol, gateName, passed, reason, action)
	return err
}
