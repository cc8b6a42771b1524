// Package metrics declares the Prometheus registry the orchestrator and
// its stages report against: stage duration, retry counts, DLQ size,
// and gate pass/fail counts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the pipeline exposes on /metrics.
type Registry struct {
	StageDuration *prometheus.HistogramVec
	StageRuns     *prometheus.CounterVec
	RetryAttempts *prometheus.CounterVec
	DLQSize       prometheus.Gauge
	DLQAdded      *prometheus.CounterVec
	GateResults   *prometheus.CounterVec
	RowsIngested  *prometheus.CounterVec
}

// NewRegistry builds and registers the pipeline's metrics.
func NewRegistry() *Registry {
	r := &Registry{
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingestor_stage_duration_seconds",
				Help:    "Duration of each orchestrator stage per symbol",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage", "result"},
		),
		StageRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_stage_runs_total",
				Help: "Total stage executions by stage and result",
			},
			[]string{"stage", "result"},
		),
		RetryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_retry_attempts_total",
				Help: "Total retry attempts by stage",
			},
			[]string{"stage"},
		),
		DLQSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingestor_dlq_size",
				Help: "Current number of unresolved dead-letter items",
			},
		),
		DLQAdded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_dlq_added_total",
				Help: "Total items added to the dead-letter queue by stage",
			},
			[]string{"stage"},
		),
		GateResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_gate_results_total",
				Help: "Total gate evaluations by gate name and verdict",
			},
			[]string{"gate", "passed"},
		),
		RowsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_rows_ingested_total",
				Help: "Total bar rows written by the idempotent writer, by outcome",
			},
			[]string{"outcome"},
		),
	}

	prometheus.MustRegister(
		r.StageDuration, r.StageRuns, r.RetryAttempts,
		r.DLQSize, r.DLQAdded, r.GateResults, r.RowsIngested,
	)
	return r
}

// StageTimer times one stage execution and records it on Stop.
type StageTimer struct {
	registry  *Registry
	stage     string
	startedAt time.Time
}

func (r *Registry) StartStageTimer(stage string) *StageTimer {
	return &StageTimer{registry: r, stage: stage, startedAt: time.Now()}
}

// Stop records the elapsed duration and increments the run counter
// under the given result label; the orchestrator passes "success",
// "failure", "gate_rejected" or "aborted".
func (st *StageTimer) Stop(result string) {
	st.registry.StageDuration.WithLabelValues(st.stage, result).Observe(time.Since(st.startedAt).Seconds())
	st.registry.StageRuns.WithLabelValues(st.stage, result).Inc()
}

func (r *Registry) RecordRetry(stage string) {
	r.RetryAttempts.WithLabelValues(stage).Inc()
}

func (r *Registry) RecordDLQAdd(stage string) {
	r.DLQAdded.WithLabelValues(stage).Inc()
}

func (r *Registry) SetDLQSize(n int) {
	r.DLQSize.Set(float64(n))
}

func (r *Registry) RecordGateResult(gate string, passed bool) {
	r.GateResults.WithLabelValues(gate, boolLabel(passed)).Inc()
}

func (r *Registry) RecordRowsIngested(outcome string, n int) {
	r.RowsIngested.WithLabelValues(outcome).Add(float64(n))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Handler returns the standard Prometheus scrape endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
