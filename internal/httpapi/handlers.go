package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketpipe/ingestor/internal/checkpoint"
	"github.com/marketpipe/ingestor/internal/dlq"
	"github.com/marketpipe/ingestor/internal/metrics"
	"github.com/marketpipe/ingestor/internal/orchestrator"
	"github.com/marketpipe/ingestor/internal/persistence"
)

// Deps wires the operator surface to the repositories and the
// orchestrator it resumes workflows through.
type Deps struct {
	Orchestrator persistence.OrchestratorRepo
	DLQ          *dlq.Queue
	Checkpoints  *checkpoint.Store
	Runner       *orchestrator.Orchestrator
	Metrics      *metrics.Registry
}

// Handlers holds the operator endpoint implementations.
type Handlers struct {
	deps Deps
}

func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestIDFrom(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found", "the requested endpoint does not exist")
}

// Health is a liveness probe; it does not touch the database.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Metrics exposes the Prometheus scrape endpoint.
func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	h.deps.Metrics.Handler().ServeHTTP(w, r)
}

// ListDLQ returns every unresolved dead-letter entry (C11:
// get_unresolved).
func (h *Handlers) ListDLQ(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.DLQ.Unresolved(r.Context())
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "dlq_query_failed", err.Error())
		return
	}

	resp := DLQListResponse{Items: make([]DLQItemResponse, len(items)), Total: len(items)}
	for i, it := range items {
		resp.Items[i] = DLQItemResponse{
			ID: it.ID, Symbol: it.Symbol, Stage: it.Stage,
			ErrorMessage: it.ErrorMessage, CreatedAt: it.CreatedAt,
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ResolveDLQ marks a dead-letter entry resolved (C11: mark_resolved).
// It never deletes the row — resolution is an audit flag, not erasure.
func (h *Handlers) ResolveDLQ(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64(pathID(r))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_id", "dlq id must be numeric")
		return
	}
	if err := h.deps.DLQ.Resolve(r.Context(), id); err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "dlq_resolve_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WorkflowStatus reports a workflow's recorded progress.
func (h *Handlers) WorkflowStatus(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	wf, err := h.deps.Orchestrator.GetWorkflow(r.Context(), id)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "workflow_query_failed", err.Error())
		return
	}
	if wf == nil {
		h.writeError(w, r, http.StatusNotFound, "workflow_not_found", "no such workflow")
		return
	}
	h.writeJSON(w, http.StatusOK, WorkflowStatusResponse{
		WorkflowID: wf.WorkflowID, Type: string(wf.Type), Status: string(wf.Status),
		CurrentStage: wf.CurrentStage, StartedAt: wf.StartedAt, CompletedAt: wf.CompletedAt,
	})
}

// resumeState mirrors the orchestrator's checkpoint blob shape:
// {"symbols": [...]}. The store treats the blob as opaque, so this
// surface must agree with the orchestrator on the wire format.
type resumeState struct {
	Symbols []string `json:"symbols"`
}

// ResumeWorkflow loads the newest checkpoint for a workflow and
// re-enters execute_workflow with the surviving symbol set, in the
// background — resuming a multi-stage pipeline is long-running and
// must not block the HTTP request.
func (h *Handlers) ResumeWorkflow(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	ctx := r.Context()

	wf, err := h.deps.Orchestrator.GetWorkflow(ctx, id)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "workflow_query_failed", err.Error())
		return
	}
	if wf == nil {
		h.writeError(w, r, http.StatusNotFound, "workflow_not_found", "no such workflow")
		return
	}

	cp, err := h.deps.Checkpoints.Load(ctx, id)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "checkpoint_load_failed", err.Error())
		return
	}
	if cp == nil {
		h.writeError(w, r, http.StatusConflict, "no_checkpoint", "workflow has no checkpoint to resume from")
		return
	}

	var state resumeState
	if err := json.Unmarshal(cp.State, &state); err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "checkpoint_decode_failed", err.Error())
		return
	}
	if len(state.Symbols) == 0 {
		h.writeError(w, r, http.StatusConflict, "workflow_already_drained", "no symbols remain to resume")
		return
	}

	go func() {
		if err := h.deps.Runner.ExecuteWorkflow(context.Background(), id, wf.Type, state.Symbols, false); err != nil {
			log.Error().Err(err).Str("workflow_id", id).Msg("resumed workflow failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, ResumeResponse{WorkflowID: id, Resumed: true, Symbols: state.Symbols})
}
