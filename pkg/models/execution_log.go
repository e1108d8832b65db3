package models

import "time"

// StepStatus defines the possible states of a single step execution.
type StepStatus string

const (
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// ExecutionLog records one executed step of a workflow execution. Logs are
// append-only and owned by the execution; they carry the step-level detail
// that is not exposed on the execution itself.
type ExecutionLog struct {
	ID             string         `json:"id"           validate:"required"`
	ExecutionID    string         `json:"execution_id" validate:"required"`
	StepID         string         `json:"step_id"      validate:"required"`
	ActionType     string         `json:"action_type"`
	ConfigSnapshot map[string]any `json:"config_snapshot,omitempty"`
	Status         StepStatus     `json:"status"`
	Attempt        int            `json:"attempt"`
	DurationMs     int64          `json:"duration_ms"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Response       map[string]any `json:"response,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

// NewExecutionLog opens a running log entry for a step about to execute.
func NewExecutionLog(id, executionID, stepID, actionType string, config map[string]any, attempt int) *ExecutionLog {
	return &ExecutionLog{
		ID:             id,
		ExecutionID:    executionID,
		StepID:         stepID,
		ActionType:     actionType,
		ConfigSnapshot: config,
		Status:         StepStatusRunning,
		Attempt:        attempt,
		StartedAt:      time.Now().UTC(),
	}
}

// Finish closes the log entry with the final status and timing.
func (l *ExecutionLog) Finish(status StepStatus, response map[string]any, errorMessage string) {
	now := time.Now().UTC()
	l.Status = status
	l.Response = response
	l.ErrorMessage = errorMessage
	l.FinishedAt = &now
	l.DurationMs = now.Sub(l.StartedAt).Milliseconds()
}
