// Package orchestrator implements the workflow orchestrator (spec C12):
// it drives the six declared stages across a symbol set, dispatching
// each stage's per-symbol work across a bounded worker pool in the
// teacher's internal/infrastructure/async WorkerPool idiom, consulting
// the retry policy and dead-letter queue on failure, and checkpointing
// progress after every stage so an interrupted run can resume.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/marketpipe/ingestor/internal/aggregate"
	"github.com/marketpipe/ingestor/internal/checkpoint"
	"github.com/marketpipe/ingestor/internal/config"
	"github.com/marketpipe/ingestor/internal/dlq"
	"github.com/marketpipe/ingestor/internal/errs"
	"github.com/marketpipe/ingestor/internal/gates"
	"github.com/marketpipe/ingestor/internal/growth"
	"github.com/marketpipe/ingestor/internal/indicators"
	stepper "github.com/marketpipe/ingestor/internal/log"
	"github.com/marketpipe/ingestor/internal/metrics"
	"github.com/marketpipe/ingestor/internal/model"
	"github.com/marketpipe/ingestor/internal/persistence"
	"github.com/marketpipe/ingestor/internal/providers"
	"github.com/marketpipe/ingestor/internal/retry"
	"github.com/marketpipe/ingestor/internal/validate"
	"github.com/rs/zerolog/log"
)

// Stage names, in execution order. The orchestrator owns this sequence;
// no stage may invoke another directly.
const (
	StageIngestion          = "ingestion"
	StageIndicators         = "indicators"
	StageFinancialData      = "financial_data"
	StageWeeklyAggregation  = "weekly_aggregation"
	StageGrowthCalculations = "growth_calculations"
	StageSignalReadiness    = "signal_readiness"
)

var stageOrder = []string{
	StageIngestion,
	StageIndicators,
	StageFinancialData,
	StageWeeklyAggregation,
	StageGrowthCalculations,
	StageSignalReadiness,
}

// Deps wires every repository and engine the orchestrator drives stages
// through. All fields are required.
type Deps struct {
	Providers        providers.Provider
	Validator        *validate.Validator
	BarRepo          persistence.BarRepo
	IndicatorRepo    persistence.IndicatorRepo
	FinancialRepo    persistence.FinancialStatementRepo
	FundamentalsRepo persistence.EnhancedFundamentalsRepo
	ReportRepo       persistence.ValidationReportRepo
	Orchestrator     persistence.OrchestratorRepo
	Checkpoints      *checkpoint.Store
	DLQ              *dlq.Queue
	GateAudit        persistence.GateAuditRepo
	Retry            *retry.Policy
	SignalConfigs    map[string]config.SignalReadinessConfig
	WorkerPoolSize   int
	Metrics          *metrics.Registry
}

// Orchestrator executes workflows (spec C12).
type Orchestrator struct {
	deps Deps
}

func New(deps Deps) *Orchestrator {
	if deps.WorkerPoolSize <= 0 {
		deps.WorkerPoolSize = config.DefaultWorkerPoolSize
	}
	return &Orchestrator{deps: deps}
}

// checkpointState is the opaque blob persisted after every stage: the
// symbols still eligible to proceed to the next stage.
type checkpointState struct {
	Symbols []string `json:"symbols"`
}

// ExecuteWorkflow runs all six stages over symbols in order. A symbol
// that fails terminally or is rejected by a gate is dead-lettered and
// dropped from later stages; other symbols continue independently. The
// workflow itself fails if it cannot be bootstrapped (e.g. the
// orchestrator repo is unreachable) or if a gate returns
// FIX_DATA_QUALITY, which aborts the stage; other symbol failures are
// recorded, not propagated.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, workflowID string, wfType persistence.WorkflowType, symbols []string, force bool) error {
	now := time.Now()
	if err := o.deps.Orchestrator.CreateWorkflow(ctx, persistence.WorkflowExecution{
		WorkflowID: workflowID,
		Type:       wfType,
		Status:     persistence.WorkflowRunning,
		StartedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return err
	}

	stepLog := stepper.NewStepLogger(workflowID, stageOrder)
	active := symbols
	hadFailures := false

	for _, stage := range stageOrder {
		stepLog.StartStep(stage)

		if err := o.deps.Orchestrator.UpsertStage(ctx, persistence.StageExecution{
			WorkflowID: workflowID, StageName: stage, Status: persistence.WorkflowRunning,
			StartedAt: time.Now(), UpdatedAt: time.Now(),
		}); err != nil {
			return err
		}
		if err := o.deps.Orchestrator.UpdateWorkflow(ctx, persistence.WorkflowExecution{
			WorkflowID: workflowID, Type: wfType, Status: persistence.WorkflowRunning,
			CurrentStage: stage, UpdatedAt: time.Now(),
		}); err != nil {
			return err
		}

		survivors, aborted, anyFailed := o.runStage(ctx, workflowID, stage, active, force)
		if anyFailed {
			hadFailures = true
		}
		active = survivors
		stepLog.CompleteStep()

		blob, err := json.Marshal(checkpointState{Symbols: active})
		if err != nil {
			return err
		}
		if err := o.deps.Checkpoints.Save(ctx, workflowID, stage, blob); err != nil {
			return err
		}

		if aborted {
			failed := time.Now()
			if err := o.deps.Orchestrator.UpsertStage(ctx, persistence.StageExecution{
				WorkflowID: workflowID, StageName: stage, Status: persistence.WorkflowFailed,
				UpdatedAt: failed,
			}); err != nil {
				return err
			}
			return o.deps.Orchestrator.UpdateWorkflow(ctx, persistence.WorkflowExecution{
				WorkflowID: workflowID, Type: wfType, Status: persistence.WorkflowFailed,
				CurrentStage: stage, CompletedAt: &failed, UpdatedAt: failed,
			})
		}

		if err := o.deps.Orchestrator.UpsertStage(ctx, persistence.StageExecution{
			WorkflowID: workflowID, StageName: stage, Status: persistence.WorkflowCompleted,
			UpdatedAt: time.Now(),
		}); err != nil {
			return err
		}

		if len(active) == 0 {
			break
		}
	}
	stepLog.Finish()

	finalStatus := persistence.WorkflowCompleted
	if hadFailures {
		finalStatus = persistence.WorkflowCompletedWithFailures
	}
	completed := time.Now()
	return o.deps.Orchestrator.UpdateWorkflow(ctx, persistence.WorkflowExecution{
		WorkflowID: workflowID, Type: wfType, Status: finalStatus,
		CompletedAt: &completed, UpdatedAt: completed,
	})
}

// runStage fans work for one stage across a bounded pool of goroutines,
// a fixed-size semaphore plus WaitGroup generalised from the teacher's
// WorkerPool, and returns the symbols that survived (neither
// dead-lettered nor gate-rejected), whether the stage aborted, and
// whether any symbol was dead-lettered. A gate failure whose action is
// FIX_DATA_QUALITY aborts the whole stage (and workflow): continuing
// would propagate bad data downstream, so in-flight symbols are left
// to finish but no further work is picked up and aborted is reported.
func (o *Orchestrator) runStage(ctx context.Context, workflowID, stage string, symbols []string, force bool) (survivors []string, aborted, anyFailed bool) {
	stageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, o.deps.WorkerPoolSize)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var abortFlag, failedFlag bool
	survivors = make([]string, 0, len(symbols))

	for _, symbol := range symbols {
		select {
		case <-stageCtx.Done():
		default:
		}
		mu.Lock()
		stop := abortFlag
		mu.Unlock()
		if stop {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			ok, fatal := o.runSymbolStage(stageCtx, workflowID, stage, symbol, force)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				survivors = append(survivors, symbol)
			} else {
				failedFlag = true
			}
			if fatal {
				abortFlag = true
				cancel()
			}
		}(symbol)
	}
	wg.Wait()

	sort.Strings(survivors)
	return survivors, abortFlag, failedFlag
}

// runSymbolStage retries a single symbol's stage execution per the
// retry policy, recording SymbolState after every attempt. A gate
// rejection is never retried: it is terminal by definition. It reports
// (survived, fatal) — fatal is set when the gate's recommended action
// is FIX_DATA_QUALITY, signalling the caller to abort the whole stage.
func (o *Orchestrator) runSymbolStage(ctx context.Context, workflowID, stage, symbol string, force bool) (survived, fatal bool) {
	var timer *metrics.StageTimer
	if o.deps.Metrics != nil {
		timer = o.deps.Metrics.StartStageTimer(stage)
	}

	for attempt := 0; ; attempt++ {
		err := o.execStage(ctx, workflowID, stage, symbol, force)
		if err == nil {
			o.recordSymbolState(ctx, workflowID, symbol, stage, persistence.WorkflowCompleted, attempt, nil)
			if timer != nil {
				timer.Stop("success")
			}
			return true, false
		}

		var gf *errs.GateFailure
		if errors.As(err, &gf) {
			o.recordGateFailure(ctx, workflowID, stage, symbol, gf)
			o.deadLetter(ctx, symbol, stage, err)
			o.recordSymbolState(ctx, workflowID, symbol, stage, persistence.WorkflowFailed, attempt, err)
			if timer != nil {
				timer.Stop("gate_rejected")
			}
			return false, gf.Action == errs.ActionFixDataQuality
		}

		if !o.deps.Retry.ShouldRetry(err, attempt) {
			o.deadLetter(ctx, symbol, stage, err)
			o.recordSymbolState(ctx, workflowID, symbol, stage, persistence.WorkflowFailed, attempt, err)
			if timer != nil {
				timer.Stop("failure")
			}
			return false, false
		}

		o.recordSymbolState(ctx, workflowID, symbol, stage, persistence.WorkflowRunning, attempt+1, err)
		if o.deps.Metrics != nil {
			o.deps.Metrics.RecordRetry(stage)
		}
		if sleepErr := sleepCtx(ctx, o.deps.Retry.Delay(attempt)); sleepErr != nil {
			o.deadLetter(ctx, symbol, stage, sleepErr)
			if timer != nil {
				timer.Stop("aborted")
			}
			return false, false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o *Orchestrator) recordSymbolState(ctx context.Context, workflowID, symbol, stage string, status persistence.WorkflowStatus, retryCount int, err error) {
	var lastErr *string
	if err != nil {
		msg := err.Error()
		lastErr = &msg
	}
	if uerr := o.deps.Orchestrator.UpsertSymbolState(ctx, persistence.SymbolState{
		WorkflowID: workflowID, Symbol: symbol, Stage: stage, Status: status,
		RetryCount: retryCount, LastError: lastErr, UpdatedAt: time.Now(),
	}); uerr != nil {
		log.Error().Err(uerr).Str("symbol", symbol).Str("stage", stage).Msg("failed to record symbol state")
	}
}

func (o *Orchestrator) recordGateFailure(ctx context.Context, workflowID, stage, symbol string, gf *errs.GateFailure) {
	if err := o.deps.GateAudit.Record(ctx, workflowID, stage, symbol, gf.Gate, false, gf.Reason, string(gf.Action)); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Str("gate", gf.Gate).Msg("failed to record gate audit")
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordGateResult(gf.Gate, false)
	}
}

func (o *Orchestrator) deadLetter(ctx context.Context, symbol, stage string, cause error) {
	if _, err := o.deps.DLQ.Add(ctx, symbol, stage, cause, nil); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Str("stage", stage).Msg("failed to dead-letter symbol")
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordDLQAdd(stage)
	}
}

// execStage dispatches to the stage-specific per-symbol implementation.
func (o *Orchestrator) execStage(ctx context.Context, workflowID, stage, symbol string, force bool) error {
	switch stage {
	case StageIngestion:
		return o.runIngestion(ctx, symbol, force)
	case StageIndicators:
		return o.runIndicators(ctx, symbol)
	case StageFinancialData:
		return o.runFinancialData(ctx, symbol)
	case StageWeeklyAggregation:
		return o.runWeeklyAggregation(ctx, symbol)
	case StageGrowthCalculations:
		return o.runGrowthCalculations(ctx, symbol)
	case StageSignalReadiness:
		return o.runSignalReadiness(ctx, workflowID, symbol)
	default:
		return errs.New(errs.KindOrchestratorInternal, stage, symbol, "unknown stage", nil)
	}
}

const historyWindow = providers.Period("5y")

func (o *Orchestrator) runIngestion(ctx context.Context, symbol string, force bool) error {
	bars, err := o.deps.Providers.FetchPriceHistory(ctx, symbol, historyWindow)
	if err != nil {
		return err
	}

	rows := make([]validate.RawRow, len(bars))
	for i, b := range bars {
		open, high, low, close, volume := b.Open, b.High, b.Low, b.Close, b.Volume
		rows[i] = validate.RawRow{Date: b.Date, Open: &open, High: &high, Low: &low, Close: &close, Volume: &volume}
	}

	cleaned, report := o.deps.Validator.ValidateAndClean(symbol, "price_history", rows)
	if _, err := o.deps.ReportRepo.Save(ctx, report); err != nil {
		return err
	}

	gateResult := gates.IngestionGate(len(cleaned) > 0, &report)
	if !gateResult.Passed {
		return &errs.GateFailure{Gate: "ingestion_gate", Symbol: symbol, Reason: gateResult.Reason, Action: gateResult.Action}
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordGateResult("ingestion_gate", true)
	}

	modelBars := make([]model.Bar, len(cleaned))
	now := time.Now()
	for i, r := range cleaned {
		modelBars[i] = model.Bar{
			Symbol: symbol, Date: r.Date, Frequency: model.FreqDaily,
			Open: *r.Open, High: *r.High, Low: *r.Low, Close: *r.Close, Volume: *r.Volume,
			Source: o.deps.Providers.Name(), IngestedAt: now,
		}
	}

	result, err := o.deps.BarRepo.Save(ctx, symbol, modelBars, model.FreqDaily, o.deps.Providers.Name(), force)
	if err != nil {
		return err
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordRowsIngested("inserted", result.Inserted)
		o.deps.Metrics.RecordRowsIngested("updated", result.Updated)
		o.deps.Metrics.RecordRowsIngested("skipped", result.Skipped)
	}
	return nil
}

func (o *Orchestrator) runIndicators(ctx context.Context, symbol string) error {
	bars, err := o.deps.BarRepo.Latest(ctx, symbol, model.FreqDaily, 5000)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return errs.New(errs.KindNoData, StageIndicators, symbol, "no bars available", nil)
	}
	reverseBars(bars)

	gaps := make([]bool, len(bars))
	rows := indicators.Compute(bars, gaps)
	if err := o.deps.IndicatorRepo.Save(ctx, rows); err != nil {
		return err
	}

	latest := &rows[len(rows)-1]
	gateResult := gates.IndicatorGate(latest)
	if !gateResult.Passed {
		return &errs.GateFailure{Gate: "indicator_gate", Symbol: symbol, Reason: gateResult.Reason, Action: gateResult.Action}
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordGateResult("indicator_gate", true)
	}
	return nil
}

func (o *Orchestrator) runFinancialData(ctx context.Context, symbol string) error {
	income, balance, cashflow, err := o.deps.Providers.FetchFinancials(ctx, symbol)
	if err != nil {
		return err
	}
	all := make([]model.FinancialStatement, 0, len(income)+len(balance)+len(cashflow))
	all = append(all, income...)
	all = append(all, balance...)
	all = append(all, cashflow...)
	return o.deps.FinancialRepo.Upsert(ctx, all)
}

func (o *Orchestrator) runWeeklyAggregation(ctx context.Context, symbol string) error {
	daily, err := o.deps.BarRepo.Latest(ctx, symbol, model.FreqDaily, 5000)
	if err != nil {
		return err
	}
	reverseBars(daily)

	weekly := aggregate.Weekly(daily)
	monthly := aggregate.Monthly(daily)

	if _, err := o.deps.BarRepo.Save(ctx, symbol, weekly, model.FreqWeekly, "aggregate", true); err != nil {
		return err
	}
	_, err = o.deps.BarRepo.Save(ctx, symbol, monthly, model.FreqMonthly, "aggregate", true)
	return err
}

func (o *Orchestrator) runGrowthCalculations(ctx context.Context, symbol string) error {
	statements, err := o.deps.FinancialRepo.ListBySymbol(ctx, symbol)
	if err != nil {
		return err
	}
	for _, f := range growth.Compute(symbol, statements) {
		if err := o.deps.FundamentalsRepo.Upsert(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runSignalReadiness(ctx context.Context, workflowID, symbol string) error {
	rows, err := o.deps.IndicatorRepo.Latest(ctx, symbol, 1)
	if err != nil {
		return err
	}
	var row *model.IndicatorRow
	if len(rows) > 0 {
		row = &rows[0]
	}

	allBars, err := o.deps.BarRepo.Latest(ctx, symbol, model.FreqDaily, 5000)
	if err != nil {
		return err
	}

	report, err := o.deps.ReportRepo.Latest(ctx, symbol, "price_history")
	if err != nil {
		return err
	}
	qualityScore := qualityScoreFor(report)

	for signalType, cfg := range o.deps.SignalConfigs {
		result := gates.SignalReadinessGate(cfg, row, len(allBars), qualityScore)
		ready := result.Verdict == gates.Ready
		gateName := "signal_readiness:" + signalType
		if err := o.deps.GateAudit.Record(ctx, workflowID, StageSignalReadiness, symbol,
			gateName, ready, readinessReason(result), string(result.Action)); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Str("signal_type", signalType).Msg("failed to record signal readiness audit")
		}
		if o.deps.Metrics != nil {
			o.deps.Metrics.RecordGateResult(gateName, ready)
		}
	}
	return nil
}

func qualityScoreFor(report *model.ValidationReport) float64 {
	if report == nil {
		return 0
	}
	switch report.OverallStatus {
	case model.StatusPass:
		return 1.0
	case model.StatusWarning:
		return 0.7
	default:
		return 0.0
	}
}

func readinessReason(r gates.SignalReadinessResult) string {
	if len(r.MissingIndicators) == 0 {
		return ""
	}
	reason := "missing: "
	for i, name := range r.MissingIndicators {
		if i > 0 {
			reason += ", "
		}
		reason += name
	}
	return reason
}

func reverseBars(bars []model.Bar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}
