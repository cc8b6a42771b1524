package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/marketpipe/ingestor/internal/persistence"
)

// OrchestratorRepo owns workflow_executions, stage_executions and
// symbol_states: the orchestrator's exclusive bookkeeping tables. No
// stage writes to these directly.
type OrchestratorRepo struct {
	db *sqlx.DB
}

func NewOrchestratorRepo(db *sqlx.DB) *OrchestratorRepo {
	return &OrchestratorRepo{db: db}
}

func (r *OrchestratorRepo) CreateWorkflow(ctx context.Context, w persistence.WorkflowExecution) error {
	const q = `
		INSERT INTO workflow_executions (workflow_id, type, status, current_stage, started_at, updated_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (workflow_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, q, w.WorkflowID, string(w.Type), string(w.Status), w.CurrentStage, w.StartedAt, w.UpdatedAt, w.Metadata)
	return err
}

func (r *OrchestratorRepo) UpdateWorkflow(ctx context.Context, w persistence.WorkflowExecution) error {
	const q = `
		UPDATE workflow_executions
		SET status = $2, current_stage = $3, updated_at = $4, completed_at = $5, error_message = $6, metadata = $7
		WHERE workflow_id = $1
	`
	_, err := r.db.ExecContext(ctx, q, w.WorkflowID, string(w.Status), w.CurrentStage, w.UpdatedAt, w.CompletedAt, w.ErrorMessage, w.Metadata)
	return err
}

func (r *OrchestratorRepo) GetWorkflow(ctx context.Context, workflowID string) (*persistence.WorkflowExecution, error) {
	const q = `SELECT workflow_id, type, status, current_stage, started_at, updated_at, completed_at, error_message, metadata FROM workflow_executions WHERE workflow_id = $1`
	var (
		w      persistence.WorkflowExecution
		wType  string
		status string
	)
	row := r.db.QueryRowxContext(ctx, q, workflowID)
	if err := row.Scan(&w.WorkflowID, &wType, &status, &w.CurrentStage, &w.StartedAt, &w.UpdatedAt, &w.CompletedAt, &w.ErrorMessage, &w.Metadata); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	w.Type = persistence.WorkflowType(wType)
	w.Status = persistence.WorkflowStatus(status)
	return &w, nil
}

func (r *OrchestratorRepo) UpsertStage(ctx context.Context, s persistence.StageExecution) error {
	const q = `
		INSERT INTO stage_executions (workflow_id, stage_name, status, retry_count, started_at, updated_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (workflow_id, stage_name) DO UPDATE SET
			status = EXCLUDED.status, retry_count = EXCLUDED.retry_count,
			updated_at = EXCLUDED.updated_at, error_message = EXCLUDED.error_message
	`
	_, err := r.db.ExecContext(ctx, q, s.WorkflowID, s.StageName, string(s.Status), s.RetryCount, s.StartedAt, s.UpdatedAt, s.ErrorMessage)
	return err
}

func (r *OrchestratorRepo) GetStage(ctx context.Context, workflowID, stage string) (*persistence.StageExecution, error) {
	const q = `SELECT workflow_id, stage_name, status, retry_count, started_at, updated_at, error_message FROM stage_executions WHERE workflow_id = $1 AND stage_name = $2`
	var (
		s      persistence.StageExecution
		status string
	)
	row := r.db.QueryRowxContext(ctx, q, workflowID, stage)
	if err := row.Scan(&s.WorkflowID, &s.StageName, &status, &s.RetryCount, &s.StartedAt, &s.UpdatedAt, &s.ErrorMessage); err != nil {
		return nil, err
	}
	s.Status = persistence.WorkflowStatus(status)
	return &s, nil
}

func (r *OrchestratorRepo) UpsertSymbolState(ctx context.Context, s persistence.SymbolState) error {
	const q = `
		INSERT INTO symbol_states (workflow_id, symbol, stage, status, retry_count, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (workflow_id, symbol, stage) DO UPDATE SET
			status = EXCLUDED.status, retry_count = EXCLUDED.retry_count,
			last_error = EXCLUDED.last_error, updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, q, s.WorkflowID, s.Symbol, s.Stage, string(s.Status), s.RetryCount, s.LastError, s.UpdatedAt)
	return err
}

func (r *OrchestratorRepo) GetSymbolState(ctx context.Context, workflowID, symbol, stage string) (*persistence.SymbolState, error) {
	const q = `SELECT workflow_id, symbol, stage, status, retry_count, last_error, updated_at FROM symbol_states WHERE workflow_id = $1 AND symbol = $2 AND stage = $3`
	var (
		s      persistence.SymbolState
		status string
	)
	row := r.db.QueryRowxContext(ctx, q, workflowID, symbol, stage)
	if err := row.Scan(&s.WorkflowID, &s.Symbol, &s.Stage, &status, &s.RetryCount, &s.LastError, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = persistence.WorkflowStatus(status)
	return &s, nil
}

func (r *OrchestratorRepo) ListSymbolStates(ctx context.Context, workflowID, stage string) ([]persistence.SymbolState, error) {
	const q = `SELECT workflow_id, symbol, stage, status, retry_count, last_error, updated_at FROM symbol_states WHERE workflow_id = $1 AND stage = $2 ORDER BY symbol`
	rows, err := r.db.QueryxContext(ctx, q, workflowID, stage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []persistence.SymbolState
	for rows.Next() {
		var (
			s      persistence.SymbolState
			status string
		)
		if err := rows.Scan(&s.WorkflowID, &s.Symbol, &s.Stage, &status, &s.RetryCount, &s.LastError, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Status = persistence.WorkflowStatus(status)
		states = append(states, s)
	}
	return states, rows.Err()
}
