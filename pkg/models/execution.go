// Package models defines the core domain models for the workflow execution engine.
package models

import (
	"errors"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
)

// errNegativeStepIndex is returned when SetStep is called with a negative index.
var errNegativeStepIndex = errors.New("step index must not be negative")

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusQueued    ExecutionStatus = "queued"    // Enrolled, not yet picked up by a worker
	ExecutionStatusActive    ExecutionStatus = "active"    // A worker is advancing steps
	ExecutionStatusPaused    ExecutionStatus = "paused"    // Manually paused, resumable
	ExecutionStatusWaiting   ExecutionStatus = "waiting"   // Suspended at a wait step
	ExecutionStatusCompleted ExecutionStatus = "completed" // Terminal
	ExecutionStatusFailed    ExecutionStatus = "failed"    // Terminal unless retried
	ExecutionStatusCancelled ExecutionStatus = "cancelled" // Terminal
)

// executionTransitions is the only legal transition table. Any transition not
// present here fails with a StateTransitionError and mutates nothing.
var executionTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionStatusQueued:    {ExecutionStatusActive, ExecutionStatusCancelled},
	ExecutionStatusActive:    {ExecutionStatusPaused, ExecutionStatusWaiting, ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled},
	ExecutionStatusPaused:    {ExecutionStatusActive, ExecutionStatusCancelled},
	ExecutionStatusWaiting:   {ExecutionStatusActive, ExecutionStatusFailed, ExecutionStatusCancelled},
	ExecutionStatusFailed:    {ExecutionStatusQueued, ExecutionStatusCancelled},
	ExecutionStatusCompleted: {},
	ExecutionStatusCancelled: {},
}

// Terminal reports whether the status permits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return len(executionTransitions[s]) == 0
}

// CanTransitionTo reports whether the transition table allows s -> target.
func (s ExecutionStatus) CanTransitionTo(target ExecutionStatus) bool {
	for _, allowed := range executionTransitions[s] {
		if allowed == target {
			return true
		}
	}

	return false
}

// WorkflowExecution is the aggregate root for one run of a workflow for one
// contact. It is created on enrollment and mutated only through its methods;
// Status and CurrentStepIndex are the sole carriers of position across
// suspension and process restarts.
type WorkflowExecution struct {
	ID               string          `json:"id"               validate:"required"`
	WorkflowID       string          `json:"workflow_id"      validate:"required"`
	WorkflowVersion  int             `json:"workflow_version" validate:"gte=1"`
	ContactID        string          `json:"contact_id"       validate:"required"`
	AccountID        string          `json:"account_id"       validate:"required"`
	Status           ExecutionStatus `json:"status"`
	CurrentStepIndex int             `json:"current_step_index"`
	CurrentNodeID    string          `json:"current_node_id,omitempty"` // Set after a branch jump
	RetryCount       int             `json:"retry_count"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Converted        bool            `json:"converted"` // True when completed via goal match
	TriggerData      map[string]any  `json:"trigger_data,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`

	// Version guards optimistic-concurrency saves. Incremented by the
	// persistence layer on every successful save.
	Version int `json:"version"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewWorkflowExecution creates a queued execution for a contact enrollment.
func NewWorkflowExecution(id, workflowID string, workflowVersion int, contactID, accountID string, triggerData map[string]any) *WorkflowExecution {
	now := time.Now().UTC()

	return &WorkflowExecution{
		ID:              id,
		WorkflowID:      workflowID,
		WorkflowVersion: workflowVersion,
		ContactID:       contactID,
		AccountID:       accountID,
		Status:          ExecutionStatusQueued,
		TriggerData:     triggerData,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// transitionTo applies a status change, enforcing the transition table.
func (e *WorkflowExecution) transitionTo(target ExecutionStatus) error {
	if !e.Status.CanTransitionTo(target) {
		return journeyerr.NewStateTransitionError("execution", e.ID, string(e.Status), string(target))
	}

	e.Status = target
	e.UpdatedAt = time.Now().UTC()

	return nil
}

// Start moves the execution from queued to active and stamps StartedAt.
func (e *WorkflowExecution) Start() error {
	if err := e.transitionTo(ExecutionStatusActive); err != nil {
		return err
	}

	if e.StartedAt == nil {
		now := time.Now().UTC()
		e.StartedAt = &now
	}

	return nil
}

// Activate resumes an execution from paused or waiting back to active.
func (e *WorkflowExecution) Activate() error {
	return e.transitionTo(ExecutionStatusActive)
}

// Pause suspends an active execution until manually resumed.
func (e *WorkflowExecution) Pause() error {
	return e.transitionTo(ExecutionStatusPaused)
}

// Wait suspends an active execution at a wait step.
func (e *WorkflowExecution) Wait() error {
	return e.transitionTo(ExecutionStatusWaiting)
}

// AdvanceStep moves the step pointer to the next sequential step.
func (e *WorkflowExecution) AdvanceStep() {
	e.CurrentStepIndex++
	e.CurrentNodeID = ""
	e.UpdatedAt = time.Now().UTC()
}

// SetStep positions the step pointer, used after branch jumps.
func (e *WorkflowExecution) SetStep(index int) error {
	if index < 0 {
		return &journeyerr.ValidationError{Entity: "execution", Err: errNegativeStepIndex}
	}

	e.CurrentStepIndex = index
	e.UpdatedAt = time.Now().UTC()

	return nil
}

// SetNode records a branch jump target to resolve the next step by node id.
func (e *WorkflowExecution) SetNode(nodeID string) {
	e.CurrentNodeID = nodeID
	e.UpdatedAt = time.Now().UTC()
}

// Complete terminates the execution successfully and stamps CompletedAt.
func (e *WorkflowExecution) Complete() error {
	if err := e.transitionTo(ExecutionStatusCompleted); err != nil {
		return err
	}

	e.stampCompleted()

	return nil
}

// CompleteConverted terminates the execution as converted via goal match.
func (e *WorkflowExecution) CompleteConverted() error {
	if err := e.Complete(); err != nil {
		return err
	}

	e.Converted = true

	return nil
}

// Fail terminates the execution with the failure reason retained.
func (e *WorkflowExecution) Fail(reason string) error {
	if err := e.transitionTo(ExecutionStatusFailed); err != nil {
		return err
	}

	e.ErrorMessage = reason
	e.stampCompleted()

	return nil
}

// Cancel terminates the execution from any non-terminal state.
func (e *WorkflowExecution) Cancel() error {
	if err := e.transitionTo(ExecutionStatusCancelled); err != nil {
		return err
	}

	e.stampCompleted()

	return nil
}

// Retry re-queues a failed execution from the beginning: the step pointer
// resets to zero, the retry counter increments and the error clears.
func (e *WorkflowExecution) Retry(strategy RetryStrategy) error {
	if !e.CanRetry(strategy) {
		return journeyerr.NewStateTransitionError("execution", e.ID, string(e.Status), string(ExecutionStatusQueued))
	}

	if err := e.transitionTo(ExecutionStatusQueued); err != nil {
		return err
	}

	e.RetryCount++
	e.ErrorMessage = ""
	e.CurrentStepIndex = 0
	e.CurrentNodeID = ""
	e.CompletedAt = nil

	return nil
}

// CanRetry reports whether the execution is failed with retry budget left.
// RetryStrategy.MaxAttempts is the single source of truth for the ceiling.
func (e *WorkflowExecution) CanRetry(strategy RetryStrategy) bool {
	return e.Status == ExecutionStatusFailed && e.RetryCount < strategy.MaxAttempts
}

func (e *WorkflowExecution) stampCompleted() {
	now := time.Now().UTC()
	e.CompletedAt = &now
}
