// Package gates implements the gate set (spec C8). Gates never throw
// on failure; they report a pass/fail verdict with a recommended
// remediation action, which the orchestrator consults to decide
// whether to retry, recompute, fix data quality, or skip a symbol.
package gates

import (
	"strings"
	"time"

	"github.com/marketpipe/ingestor/internal/config"
	"github.com/marketpipe/ingestor/internal/errs"
	"github.com/marketpipe/ingestor/internal/model"
)

// Result is the uniform verdict every gate returns.
type Result struct {
	Passed bool
	Reason string
	Action errs.GateAction
}

func pass() Result { return Result{Passed: true} }

func fail(reason string, action errs.GateAction) Result {
	return Result{Passed: false, Reason: reason, Action: action}
}

// IngestionGate passes iff at least one daily RawBar exists for the
// symbol/date and the most recent price-history ValidationReport for
// the symbol did not fail.
func IngestionGate(hasBar bool, report *model.ValidationReport) Result {
	if !hasBar {
		return fail("no RawBar present for symbol/date", errs.ActionRetry)
	}
	if report != nil && report.OverallStatus == model.StatusFail {
		return fail("latest validation report status is fail", errs.ActionFixDataQuality)
	}
	return pass()
}

// IndicatorGate passes iff an IndicatorRow exists for the symbol/date
// and none of EMA9, SMA200, RSI14 is null.
func IndicatorGate(row *model.IndicatorRow) Result {
	if row == nil {
		return fail("no IndicatorRow present for symbol/date", errs.ActionRecompute)
	}
	if row.EMA9 == nil || row.SMA200 == nil || row.RSI14 == nil {
		return fail("EMA9, SMA200 or RSI14 is null", errs.ActionRecompute)
	}
	return pass()
}

// ReadinessVerdict is the three-way signal-readiness outcome.
type ReadinessVerdict string

const (
	Ready    ReadinessVerdict = "ready"
	Partial  ReadinessVerdict = "partial"
	NotReady ReadinessVerdict = "not_ready"
)

// SignalReadinessResult is the SignalReadinessGate's verdict, including
// enough detail for the audit trail to explain why it landed there.
type SignalReadinessResult struct {
	Verdict         ReadinessVerdict
	MissingIndicators []string
	PeriodsAvailable int
	QualityScore    float64
	Action          errs.GateAction
}

// SignalReadinessGate checks whether row carries every indicator
// config.SignalReadinessConfig requires, that periodsAvailable meets
// MinPeriods, and that qualityScore (derived from the latest
// ValidationReport) clears MinQualityScore.
func SignalReadinessGate(cfg config.SignalReadinessConfig, row *model.IndicatorRow, periodsAvailable int, qualityScore float64) SignalReadinessResult {
	missing := missingIndicators(cfg.RequiredIndicators, row)

	switch {
	case len(missing) == 0 && periodsAvailable >= cfg.MinPeriods && qualityScore >= cfg.MinQualityScore:
		return SignalReadinessResult{Verdict: Ready, PeriodsAvailable: periodsAvailable, QualityScore: qualityScore}
	case len(missing) < len(cfg.RequiredIndicators):
		return SignalReadinessResult{
			Verdict: Partial, MissingIndicators: missing,
			PeriodsAvailable: periodsAvailable, QualityScore: qualityScore, Action: errs.ActionRecompute,
		}
	default:
		return SignalReadinessResult{
			Verdict: NotReady, MissingIndicators: missing,
			PeriodsAvailable: periodsAvailable, QualityScore: qualityScore, Action: errs.ActionSkip,
		}
	}
}

func missingIndicators(required []string, row *model.IndicatorRow) []string {
	if row == nil {
		return required
	}
	var missing []string
	for _, name := range required {
		if !indicatorPresent(name, row) {
			missing = append(missing, name)
		}
	}
	return missing
}

func indicatorPresent(name string, row *model.IndicatorRow) bool {
	switch strings.ToLower(name) {
	case "ema9":
		return row.EMA9 != nil
	case "ema20":
		return row.EMA20 != nil
	case "ema21":
		return row.EMA21 != nil
	case "sma50":
		return row.SMA50 != nil
	case "sma200":
		return row.SMA200 != nil
	case "rsi":
		return row.RSI14 != nil
	case "macd":
		return row.MACDLine != nil && row.MACDSignal != nil
	case "atr":
		return row.ATR14 != nil
	default:
		return false
	}
}

// AuditRow is one persisted workflow_gate_results row.
type AuditRow struct {
	WorkflowID string
	Stage      string
	Symbol     string
	GateName   string
	Passed     bool
	Reason     string
	Action     errs.GateAction
	RecordedAt time.Time
}

func NewAuditRow(workflowID, stage, symbol, gateName string, r Result) AuditRow {
	return AuditRow{
		WorkflowID: workflowID, Stage: stage, Symbol: symbol, GateName: gateName,
		Passed: r.Passed, Reason: r.Reason, Action: r.Action, RecordedAt: time.Now().UTC(),
	}
}
