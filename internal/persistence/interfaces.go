// Package persistence declares the repository interfaces every stage
// and the orchestrator use to read and write their domain tables. The
// orchestrator exclusively mutates WorkflowExecution, StageExecution,
// SymbolState, Checkpoint and DLQItem; stages exclusively mutate their
// own domain tables plus the ValidationReports they produce. No
// cross-stage write paths.
package persistence

import (
	"context"
	"time"

	"github.com/marketpipe/ingestor/internal/model"
)

// SaveResult is C4's contract: save(symbol, rows, frequency, source,
// force) → {inserted, updated, skipped, duplicates_prevented}.
type SaveResult struct {
	Inserted            int
	Updated             int
	Skipped             int
	DuplicatesPrevented int
}

// BarRepo is the only path into the price tables (C4, the idempotent
// writer); no stage may insert bars directly.
type BarRepo interface {
	Save(ctx context.Context, symbol string, rows []model.Bar, frequency model.Frequency, source string, force bool) (SaveResult, error)
	Latest(ctx context.Context, symbol string, frequency model.Frequency, limit int) ([]model.Bar, error)
	Exists(ctx context.Context, symbol string, date time.Time, frequency model.Frequency) (bool, error)
}

// IndicatorRepo persists and loads C5's computed rows.
type IndicatorRepo interface {
	Save(ctx context.Context, rows []model.IndicatorRow) error
	Get(ctx context.Context, symbol string, date time.Time) (*model.IndicatorRow, error)
	Latest(ctx context.Context, symbol string, limit int) ([]model.IndicatorRow, error)
}

// FinancialStatementRepo persists and loads C1's financials fetch,
// upserting on (symbol, period_end, period_type) conflict.
type FinancialStatementRepo interface {
	Upsert(ctx context.Context, statements []model.FinancialStatement) error
	ListBySymbol(ctx context.Context, symbol string) ([]model.FinancialStatement, error)
}

// EnhancedFundamentalsRepo persists C7's denormalised growth view, one
// row per symbol, upserted in place.
type EnhancedFundamentalsRepo interface {
	Upsert(ctx context.Context, f model.EnhancedFundamentals) error
	Get(ctx context.Context, symbol string) (*model.EnhancedFundamentals, error)
}

// ValidationReportRepo persists C3's reports; immutable once written.
type ValidationReportRepo interface {
	Save(ctx context.Context, report model.ValidationReport) (int64, error)
	Latest(ctx context.Context, symbol, dataType string) (*model.ValidationReport, error)
}

// WorkflowStatus mirrors spec §3's WorkflowExecution.status values.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	// WorkflowCompletedWithFailures is the terminal status for a
	// workflow that ran every stage without aborting but dead-lettered
	// at least one symbol along the way.
	WorkflowCompletedWithFailures WorkflowStatus = "completed_with_failures"
	WorkflowFailed                WorkflowStatus = "failed"
	WorkflowPaused                WorkflowStatus = "paused"
)

// WorkflowType mirrors spec §3's WorkflowExecution.type values.
type WorkflowType string

const (
	WorkflowDailyBatch WorkflowType = "daily_batch"
	WorkflowOnDemand   WorkflowType = "on_demand"
	WorkflowRecovery   WorkflowType = "recovery"
)

// WorkflowExecution is the orchestrator's top-level run record.
type WorkflowExecution struct {
	WorkflowID   string         `db:"workflow_id"`
	Type         WorkflowType   `db:"type"`
	Status       WorkflowStatus `db:"status"`
	CurrentStage string         `db:"current_stage"`
	StartedAt    time.Time      `db:"started_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	CompletedAt  *time.Time     `db:"completed_at"`
	ErrorMessage *string        `db:"error_message"`
	Metadata     []byte         `db:"metadata"` // opaque JSON
}

// StageExecution is one (workflow_id, stage_name) row.
type StageExecution struct {
	WorkflowID string         `db:"workflow_id"`
	StageName  string         `db:"stage_name"`
	Status     WorkflowStatus `db:"status"`
	RetryCount int            `db:"retry_count"`
	StartedAt  time.Time      `db:"started_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
	ErrorMessage *string      `db:"error_message"`
}

// SymbolState is the fine-grained resumption unit: one per
// (workflow_id, symbol, stage).
type SymbolState struct {
	WorkflowID   string         `db:"workflow_id"`
	Symbol       string         `db:"symbol"`
	Stage        string         `db:"stage"`
	Status       WorkflowStatus `db:"status"`
	RetryCount   int            `db:"retry_count"`
	LastError    *string        `db:"last_error"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// OrchestratorRepo owns WorkflowExecution/StageExecution/SymbolState —
// the orchestrator's exclusive bookkeeping tables.
type OrchestratorRepo interface {
	CreateWorkflow(ctx context.Context, w WorkflowExecution) error
	UpdateWorkflow(ctx context.Context, w WorkflowExecution) error
	GetWorkflow(ctx context.Context, workflowID string) (*WorkflowExecution, error)

	UpsertStage(ctx context.Context, s StageExecution) error
	GetStage(ctx context.Context, workflowID, stage string) (*StageExecution, error)

	UpsertSymbolState(ctx context.Context, s SymbolState) error
	GetSymbolState(ctx context.Context, workflowID, symbol, stage string) (*SymbolState, error)
	ListSymbolStates(ctx context.Context, workflowID, stage string) ([]SymbolState, error)
}

// Checkpoint is (workflow_id, stage, opaque_state_blob, timestamp); the
// most recent row for a workflow is authoritative.
type Checkpoint struct {
	WorkflowID string
	Stage      string
	State      []byte
	Timestamp  time.Time
}

// CheckpointStore persists and loads C10's opaque state blobs.
type CheckpointStore interface {
	Save(ctx context.Context, workflowID, stage string, state []byte) error
	Load(ctx context.Context, workflowID string) (*Checkpoint, error)
}

// DLQItem is (symbol, stage, error_message, context_json, created_at,
// resolved); grows monotonically, never rewritten.
type DLQItem struct {
	ID           int64     `db:"id"`
	Symbol       string    `db:"symbol"`
	Stage        string    `db:"stage"`
	ErrorMessage string    `db:"error_message"`
	Context      []byte    `db:"context"`
	CreatedAt    time.Time `db:"created_at"`
	Resolved     bool      `db:"resolved"`
}

// DLQRepo implements add_failed_item/get_unresolved/mark_resolved (C11).
type DLQRepo interface {
	AddFailedItem(ctx context.Context, item DLQItem) (int64, error)
	GetUnresolved(ctx context.Context) ([]DLQItem, error)
	MarkResolved(ctx context.Context, id int64) error
}

// GateAuditRepo persists workflow_gate_results, the audit trail per
// (workflow_id, stage, symbol).
type GateAuditRepo interface {
	Record(ctx context.Context, workflowID, stage, symbol, gateName string, passed bool, reason, action string) error
}
