// Package errs defines the pipeline's error taxonomy (spec §7) and the
// classification the retry policy consults before deciding whether to
// retry, dead-letter, or abort a workflow.
package errs

import (
	"errors"
	"fmt"
)

// Kind names one of the abstract error categories from spec §7.
type Kind string

const (
	KindValidationFailure   Kind = "validation_failure"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindProviderRateLimited Kind = "provider_rate_limited"
	KindProviderMalformed   Kind = "provider_malformed"
	KindStaleOrConflicting  Kind = "stale_or_conflicting"
	KindDatabaseTransient   Kind = "database_transient"
	KindDatabaseSchema      Kind = "database_schema"
	KindGateFailure         Kind = "gate_failure"
	KindOrchestratorInternal Kind = "orchestrator_internal"
	KindNoData              Kind = "no_data"
	KindAllProvidersFailed   Kind = "all_providers_failed"
)

// PipelineError is the common wrapper every stage-level error satisfies.
// It carries enough context for the orchestrator to classify and log it
// without re-inspecting the wrapped cause.
type PipelineError struct {
	Kind    Kind
	Symbol  string
	Stage   string
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s/%s]: %s: %v", e.Kind, e.Stage, e.Symbol, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s[%s/%s]: %s", e.Kind, e.Stage, e.Symbol, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// New builds a PipelineError, wrapping cause with "from" semantics so the
// causal chain survives errors.Is/errors.As inspection upstream.
func New(kind Kind, stage, symbol, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Symbol: symbol, Message: message, Cause: cause}
}

// GateAction is the recommended remediation a failed gate reports.
type GateAction string

const (
	ActionRetry            GateAction = "RETRY"
	ActionFixDataQuality   GateAction = "FIX_DATA_QUALITY"
	ActionRecompute        GateAction = "RECOMPUTE"
	ActionSkip             GateAction = "SKIP"
)

// GateFailure bubbles a rejected gate verdict from the stage up to the
// orchestrator. It is the only error type a gate may raise; gates
// otherwise report pass/fail via a return value, never a panic.
type GateFailure struct {
	Gate   string
	Symbol string
	Reason string
	Action GateAction
}

func (e *GateFailure) Error() string {
	return fmt.Sprintf("gate %q rejected %s: %s (action=%s)", e.Gate, e.Symbol, e.Reason, e.Action)
}

// Classification is the retryable/terminal verdict the retry policy (C9)
// derives from an error's Kind.
type Classification struct {
	Retryable bool
	Terminal  bool
}

// Classify inspects err (unwrapping through fmt.Errorf %w chains and
// PipelineError wrappers) and reports whether the orchestrator should
// retry the symbol or dead-letter it immediately.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}

	var pe *PipelineError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case KindProviderUnavailable, KindProviderRateLimited, KindStaleOrConflicting, KindDatabaseTransient:
			return Classification{Retryable: true}
		case KindValidationFailure, KindProviderMalformed, KindDatabaseSchema, KindNoData, KindAllProvidersFailed:
			return Classification{Terminal: true}
		case KindOrchestratorInternal:
			return Classification{Terminal: true}
		case KindGateFailure:
			return Classification{Terminal: true}
		}
	}

	var gf *GateFailure
	if errors.As(err, &gf) {
		return Classification{Terminal: true}
	}

	// Unclassified errors are treated as terminal: silently retrying an
	// error the taxonomy doesn't recognise risks masking a real bug.
	return Classification{Terminal: true}
}
