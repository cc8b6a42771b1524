package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketpipe/ingestor/internal/checkpoint"
	"github.com/marketpipe/ingestor/internal/config"
	"github.com/marketpipe/ingestor/internal/dlq"
	"github.com/marketpipe/ingestor/internal/model"
	"github.com/marketpipe/ingestor/internal/persistence"
	"github.com/marketpipe/ingestor/internal/providers"
	"github.com/marketpipe/ingestor/internal/retry"
	"github.com/marketpipe/ingestor/internal/validate"
)

// fakeProvider returns a fixed set of bars (or an error) for every
// symbol; the other Provider methods are never exercised by a workflow
// that aborts or empties out during the ingestion stage.
type fakeProvider struct {
	bars []providers.PriceBar
	err  error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchPriceHistory(ctx context.Context, symbol string, period providers.Period) ([]providers.PriceBar, error) {
	return f.bars, f.err
}

func (f *fakeProvider) FetchCurrentPrice(ctx context.Context, symbol string) (providers.CurrentPrice, error) {
	return providers.CurrentPrice{}, errors.New("not implemented")
}

func (f *fakeProvider) FetchFundamentals(ctx context.Context, symbol string) (providers.Fundamentals, error) {
	return providers.Fundamentals{}, errors.New("not implemented")
}

func (f *fakeProvider) FetchFinancials(ctx context.Context, symbol string) ([]model.FinancialStatement, []model.FinancialStatement, []model.FinancialStatement, error) {
	return nil, nil, nil, errors.New("not implemented")
}

func (f *fakeProvider) FetchNews(ctx context.Context, symbol string, limit int) ([]providers.NewsArticle, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) FetchEarnings(ctx context.Context, symbol string) ([]providers.EarningsRecord, error) {
	return nil, errors.New("not implemented")
}

// validBars builds n consecutive daily bars, none of which trip
// MissingValues, Range or Duplicates — only a RequiredIndicator whose
// MinPeriods exceeds n can fail this dataset.
func validBars(n int) []providers.PriceBar {
	bars := make([]providers.PriceBar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		bars[i] = providers.PriceBar{
			Date: start.AddDate(0, 0, i), Open: price, High: price + 1, Low: price - 1,
			Close: price, Volume: 1000,
		}
	}
	return bars
}

type fakeBarRepo struct {
	saveResult persistence.SaveResult
	saveCalled bool
}

func (f *fakeBarRepo) Save(ctx context.Context, symbol string, rows []model.Bar, frequency model.Frequency, source string, force bool) (persistence.SaveResult, error) {
	f.saveCalled = true
	return f.saveResult, nil
}
func (f *fakeBarRepo) Latest(ctx context.Context, symbol string, frequency model.Frequency, limit int) ([]model.Bar, error) {
	return nil, nil
}
func (f *fakeBarRepo) Exists(ctx context.Context, symbol string, date time.Time, frequency model.Frequency) (bool, error) {
	return false, nil
}

type fakeIndicatorRepo struct{}

func (fakeIndicatorRepo) Save(ctx context.Context, rows []model.IndicatorRow) error { return nil }
func (fakeIndicatorRepo) Get(ctx context.Context, symbol string, date time.Time) (*model.IndicatorRow, error) {
	return nil, nil
}
func (fakeIndicatorRepo) Latest(ctx context.Context, symbol string, limit int) ([]model.IndicatorRow, error) {
	return nil, nil
}

type fakeFinancialRepo struct{}

func (fakeFinancialRepo) Upsert(ctx context.Context, statements []model.FinancialStatement) error {
	return nil
}
func (fakeFinancialRepo) ListBySymbol(ctx context.Context, symbol string) ([]model.FinancialStatement, error) {
	return nil, nil
}

type fakeFundamentalsRepo struct{}

func (fakeFundamentalsRepo) Upsert(ctx context.Context, f model.EnhancedFundamentals) error {
	return nil
}
func (fakeFundamentalsRepo) Get(ctx context.Context, symbol string) (*model.EnhancedFundamentals, error) {
	return nil, nil
}

type fakeReportRepo struct {
	reports []model.ValidationReport
}

func (f *fakeReportRepo) Save(ctx context.Context, report model.ValidationReport) (int64, error) {
	f.reports = append(f.reports, report)
	return int64(len(f.reports)), nil
}
func (f *fakeReportRepo) Latest(ctx context.Context, symbol, dataType string) (*model.ValidationReport, error) {
	return nil, nil
}

type fakeOrchestratorRepo struct {
	workflows map[string]persistence.WorkflowExecution
	stages    []persistence.StageExecution
	symbols   []persistence.SymbolState
}

func newFakeOrchestratorRepo() *fakeOrchestratorRepo {
	return &fakeOrchestratorRepo{workflows: make(map[string]persistence.WorkflowExecution)}
}

func (f *fakeOrchestratorRepo) CreateWorkflow(ctx context.Context, w persistence.WorkflowExecution) error {
	if _, exists := f.workflows[w.WorkflowID]; exists {
		return nil
	}
	f.workflows[w.WorkflowID] = w
	return nil
}
func (f *fakeOrchestratorRepo) UpdateWorkflow(ctx context.Context, w persistence.WorkflowExecution) error {
	existing := f.workflows[w.WorkflowID]
	existing.Status = w.Status
	existing.CurrentStage = w.CurrentStage
	existing.CompletedAt = w.CompletedAt
	existing.UpdatedAt = w.UpdatedAt
	f.workflows[w.WorkflowID] = existing
	return nil
}
func (f *fakeOrchestratorRepo) GetWorkflow(ctx context.Context, workflowID string) (*persistence.WorkflowExecution, error) {
	w, ok := f.workflows[workflowID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}
func (f *fakeOrchestratorRepo) UpsertStage(ctx context.Context, s persistence.StageExecution) error {
	f.stages = append(f.stages, s)
	return nil
}
func (f *fakeOrchestratorRepo) GetStage(ctx context.Context, workflowID, stage string) (*persistence.StageExecution, error) {
	return nil, nil
}
func (f *fakeOrchestratorRepo) UpsertSymbolState(ctx context.Context, s persistence.SymbolState) error {
	f.symbols = append(f.symbols, s)
	return nil
}
func (f *fakeOrchestratorRepo) GetSymbolState(ctx context.Context, workflowID, symbol, stage string) (*persistence.SymbolState, error) {
	return nil, nil
}
func (f *fakeOrchestratorRepo) ListSymbolStates(ctx context.Context, workflowID, stage string) ([]persistence.SymbolState, error) {
	return nil, nil
}

type fakeCheckpointBacking struct {
	saved map[string]*persistence.Checkpoint
}

func newFakeCheckpointBacking() *fakeCheckpointBacking {
	return &fakeCheckpointBacking{saved: make(map[string]*persistence.Checkpoint)}
}
func (f *fakeCheckpointBacking) Save(ctx context.Context, workflowID, stage string, state []byte) error {
	f.saved[workflowID] = &persistence.Checkpoint{WorkflowID: workflowID, Stage: stage, State: state, Timestamp: time.Now()}
	return nil
}
func (f *fakeCheckpointBacking) Load(ctx context.Context, workflowID string) (*persistence.Checkpoint, error) {
	return f.saved[workflowID], nil
}

type fakeDLQRepo struct {
	items []persistence.DLQItem
}

func (f *fakeDLQRepo) AddFailedItem(ctx context.Context, item persistence.DLQItem) (int64, error) {
	item.ID = int64(len(f.items) + 1)
	f.items = append(f.items, item)
	return item.ID, nil
}
func (f *fakeDLQRepo) GetUnresolved(ctx context.Context) ([]persistence.DLQItem, error) {
	return f.items, nil
}
func (f *fakeDLQRepo) MarkResolved(ctx context.Context, id int64) error { return nil }

type gateAuditCall struct {
	workflowID, stage, symbol, gateName, reason, action string
	passed                                               bool
}

type fakeGateAuditRepo struct {
	calls []gateAuditCall
}

func (f *fakeGateAuditRepo) Record(ctx context.Context, workflowID, stage, symbol, gateName string, passed bool, reason, action string) error {
	f.calls = append(f.calls, gateAuditCall{workflowID, stage, symbol, gateName, reason, action, passed})
	return nil
}

// testDeps builds a full Deps graph around the given provider and
// required-indicator list; every repo not exercised by an
// ingestion-stage-only scenario is a trivial no-op.
func testDeps(provider providers.Provider, required []validate.RequiredIndicator) (Deps, *fakeOrchestratorRepo, *fakeDLQRepo, *fakeGateAuditRepo) {
	orchRepo := newFakeOrchestratorRepo()
	dlqRepo := &fakeDLQRepo{}
	gateAudit := &fakeGateAuditRepo{}

	deps := Deps{
		Providers:        provider,
		Validator:        validate.New(required),
		BarRepo:          &fakeBarRepo{},
		IndicatorRepo:    fakeIndicatorRepo{},
		FinancialRepo:    fakeFinancialRepo{},
		FundamentalsRepo: fakeFundamentalsRepo{},
		ReportRepo:       &fakeReportRepo{},
		Orchestrator:     orchRepo,
		Checkpoints:      checkpoint.New(newFakeCheckpointBacking(), nil),
		DLQ:              dlq.New(dlqRepo),
		GateAudit:        gateAudit,
		Retry:            retry.New(config.RetryConfig{MaxAttempts: 1, InitialSecs: 1, Factor: 2.0, MaxDelaySecs: 60}),
		SignalConfigs:    nil,
		WorkerPoolSize:   2,
	}
	return deps, orchRepo, dlqRepo, gateAudit
}

// A RequiredIndicator demanding more trailing periods than the fetched
// history can supply makes IndicatorData check fail critical, which
// fails the whole report, while ValidateAndClean's row-dropping logic
// (null/duplicate/range checks only) leaves every row intact. That
// combination is exactly what IngestionGate needs to report
// FIX_DATA_QUALITY instead of RETRY.
func TestExecuteWorkflow_FixDataQualityGateAbortsWorkflow(t *testing.T) {
	provider := &fakeProvider{bars: validBars(5)}
	required := []validate.RequiredIndicator{{Name: "SMA200", MinPeriods: 200}}
	deps, orchRepo, dlqRepo, gateAudit := testDeps(provider, required)

	orch := New(deps)
	err := orch.ExecuteWorkflow(context.Background(), "wf-abort", persistence.WorkflowOnDemand, []string{"AAPL"}, false)
	require.NoError(t, err)

	wf := orchRepo.workflows["wf-abort"]
	require.Equal(t, persistence.WorkflowFailed, wf.Status)
	require.Equal(t, StageIngestion, wf.CurrentStage)

	require.Len(t, dlqRepo.items, 1)
	require.Equal(t, "AAPL", dlqRepo.items[0].Symbol)
	require.Equal(t, StageIngestion, dlqRepo.items[0].Stage)

	require.Len(t, gateAudit.calls, 1)
	require.False(t, gateAudit.calls[0].passed)
	require.Equal(t, "FIX_DATA_QUALITY", gateAudit.calls[0].action)

	for _, s := range orchRepo.stages {
		require.NotEqual(t, StageIndicators, s.StageName)
	}
}

// A symbol with no usable bars at all fails the ingestion gate with
// RETRY, which is terminal for that symbol (gate rejections are never
// retried) but does not abort the stage. With no symbol left active the
// workflow stops after ingestion instead of running the later stages.
// Because the symbol was dead-lettered along the way, the workflow's
// terminal status is completed_with_failures, not a bare completed.
func TestExecuteWorkflow_RetryGateFailureDropsSymbolAndMarksCompletedWithFailures(t *testing.T) {
	provider := &fakeProvider{bars: nil}
	deps, orchRepo, dlqRepo, gateAudit := testDeps(provider, nil)

	orch := New(deps)
	err := orch.ExecuteWorkflow(context.Background(), "wf-drop", persistence.WorkflowOnDemand, []string{"MSFT"}, false)
	require.NoError(t, err)

	wf := orchRepo.workflows["wf-drop"]
	require.Equal(t, persistence.WorkflowCompletedWithFailures, wf.Status)

	require.Len(t, dlqRepo.items, 1)
	require.Len(t, gateAudit.calls, 1)
	require.Equal(t, "RETRY", gateAudit.calls[0].action)

	for _, s := range orchRepo.stages {
		require.NotEqual(t, StageIndicators, s.StageName)
	}
}

// ExecuteWorkflow is idempotent against a repeated workflow_id (the
// resume path re-invokes it with the same id): CreateWorkflow must not
// fail on the conflict.
func TestExecuteWorkflow_ResumeReusesWorkflowID(t *testing.T) {
	provider := &fakeProvider{bars: nil}
	deps, orchRepo, _, _ := testDeps(provider, nil)
	orch := New(deps)

	require.NoError(t, orch.ExecuteWorkflow(context.Background(), "wf-resume", persistence.WorkflowOnDemand, []string{"MSFT"}, false))
	require.NoError(t, orch.ExecuteWorkflow(context.Background(), "wf-resume", persistence.WorkflowOnDemand, []string{"MSFT"}, true))

	require.Equal(t, persistence.WorkflowCompletedWithFailures, orchRepo.workflows["wf-resume"].Status)
}
