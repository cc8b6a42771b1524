package httpapi

import "time"

// ErrorResponse is the standard error envelope for every non-2xx
// response, grounded on the teacher's internal/http.ErrorResponse.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowStatusResponse reports a workflow's current progress.
type WorkflowStatusResponse struct {
	WorkflowID   string     `json:"workflow_id"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	CurrentStage string     `json:"current_stage"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// DLQListResponse lists unresolved dead-letter entries.
type DLQListResponse struct {
	Items []DLQItemResponse `json:"items"`
	Total int               `json:"total"`
}

// DLQItemResponse is one unresolved dead-letter entry.
type DLQItemResponse struct {
	ID           int64     `json:"id"`
	Symbol       string    `json:"symbol"`
	Stage        string    `json:"stage"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResumeResponse acknowledges an accepted resume request.
type ResumeResponse struct {
	WorkflowID string   `json:"workflow_id"`
	Resumed    bool     `json:"resumed"`
	Symbols    []string `json:"symbols"`
}
