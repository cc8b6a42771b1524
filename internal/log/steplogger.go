// Package log provides CLI-visible progress reporting for long-running
// workflow runs, layered on top of zerolog's structured logging.
package log

import (
	"time"

	"github.com/rs/zerolog/log"
)

// StepLogger reports progress through an ordered sequence of stage names,
// logging start/complete events and a timing summary at the end.
type StepLogger struct {
	steps       []string
	currentStep int
	startTime   time.Time
	stepStart   time.Time
	stepTimes   []time.Duration
	workflowID  string
}

// NewStepLogger creates a step logger for the named stage sequence.
func NewStepLogger(workflowID string, steps []string) *StepLogger {
	return &StepLogger{
		steps:       steps,
		currentStep: -1,
		startTime:   time.Now(),
		stepTimes:   make([]time.Duration, len(steps)),
		workflowID:  workflowID,
	}
}

// StartStep begins a named stage; it must be one of the steps passed to
// NewStepLogger.
func (sl *StepLogger) StartStep(stepName string) {
	idx := -1
	for i, s := range sl.steps {
		if s == stepName {
			idx = i
			break
		}
	}
	if idx == -1 {
		log.Warn().Str("workflow_id", sl.workflowID).Str("stage", stepName).Msg("unknown stage")
		return
	}
	sl.currentStep = idx
	sl.stepStart = time.Now()

	log.Info().
		Str("workflow_id", sl.workflowID).
		Str("stage", stepName).
		Int("stage_number", idx+1).
		Int("total_stages", len(sl.steps)).
		Msg("stage starting")
}

// CompleteStep marks the current stage as finished.
func (sl *StepLogger) CompleteStep() {
	if sl.currentStep < 0 {
		return
	}
	d := time.Since(sl.stepStart)
	sl.stepTimes[sl.currentStep] = d
	log.Info().
		Str("workflow_id", sl.workflowID).
		Str("stage", sl.steps[sl.currentStep]).
		Dur("duration", d).
		Msg("stage completed")
}

// Finish logs a timing summary across all stages.
func (sl *StepLogger) Finish() {
	total := time.Since(sl.startTime)
	evt := log.Info().Str("workflow_id", sl.workflowID).Dur("total_duration", total)
	for i, step := range sl.steps {
		evt = evt.Dur(step, sl.stepTimes[i])
	}
	evt.Msg("workflow completed")
}

// Fail logs that the workflow aborted on the current stage.
func (sl *StepLogger) Fail(reason string) {
	stage := "unknown"
	if sl.currentStep >= 0 && sl.currentStep < len(sl.steps) {
		stage = sl.steps[sl.currentStep]
	}
	log.Error().
		Str("workflow_id", sl.workflowID).
		Str("failed_stage", stage).
		Str("reason", reason).
		Msg("workflow aborted")
}
