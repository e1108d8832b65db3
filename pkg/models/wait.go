package models

import (
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
)

// WaitType represents the kind of suspension a wait step performs.
type WaitType string

const (
	WaitTypeFixedTime WaitType = "fixed_time" // Relative duration from now
	WaitTypeUntilDate WaitType = "until_date" // Absolute future timestamp
	WaitTypeUntilTime WaitType = "until_time" // Next HH:MM occurrence in a timezone
	WaitTypeForEvent  WaitType = "for_event"  // External event with timeout
)

// WaitStatus represents the lifecycle state of a wait step execution.
type WaitStatus string

const (
	WaitStatusWaiting   WaitStatus = "waiting"   // Event wait, listener active
	WaitStatusScheduled WaitStatus = "scheduled" // Time wait, resume job scheduled
	WaitStatusResumed   WaitStatus = "resumed"   // Terminal
	WaitStatusTimeout   WaitStatus = "timeout"   // Terminal, event wait expired
	WaitStatusCancelled WaitStatus = "cancelled" // Terminal
	WaitStatusError     WaitStatus = "error"     // Terminal
)

// waitTransitions mirrors the execution transition table for wait lifecycles.
var waitTransitions = map[WaitStatus][]WaitStatus{
	WaitStatusWaiting:   {WaitStatusScheduled, WaitStatusResumed, WaitStatusCancelled, WaitStatusError},
	WaitStatusScheduled: {WaitStatusResumed, WaitStatusTimeout, WaitStatusCancelled, WaitStatusError},
	WaitStatusResumed:   {},
	WaitStatusTimeout:   {},
	WaitStatusCancelled: {},
	WaitStatusError:     {},
}

// Terminal reports whether the wait status permits no further transitions.
func (s WaitStatus) Terminal() bool {
	return len(waitTransitions[s]) == 0
}

// CanTransitionTo reports whether the transition table allows s -> target.
func (s WaitStatus) CanTransitionTo(target WaitStatus) bool {
	for _, allowed := range waitTransitions[s] {
		if allowed == target {
			return true
		}
	}

	return false
}

// TimeoutAction dictates what happens to the owning execution when an event
// wait times out.
type TimeoutAction string

const (
	TimeoutActionContinue TimeoutAction = "continue" // Advance past the wait step
	TimeoutActionExit     TimeoutAction = "exit"     // Terminate the execution
)

// WaitStepExecution tracks one suspension of a workflow execution at a wait
// step. Time-based waits carry ScheduledAt; event waits carry EventType and
// EventTimeoutAt.
type WaitStepExecution struct {
	ID          string     `json:"id"           validate:"required"`
	ExecutionID string     `json:"execution_id" validate:"required"`
	StepID      string     `json:"step_id"      validate:"required"`
	WaitType    WaitType   `json:"wait_type"    validate:"required"`
	Status      WaitStatus `json:"status"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"` // Time-based waits

	EventType      string        `json:"event_type,omitempty"` // Event waits
	EventTimeoutAt *time.Time    `json:"event_timeout_at,omitempty"`
	TimeoutAction  TimeoutAction `json:"timeout_action,omitempty"`

	ResumedBy string `json:"resumed_by,omitempty"` // "scheduler" or "event"

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// NewWaitStepExecution creates a wait in the waiting state. The caller moves
// it to scheduled once its resume or timeout job is registered.
func NewWaitStepExecution(id, executionID, stepID string, waitType WaitType) *WaitStepExecution {
	now := time.Now().UTC()

	return &WaitStepExecution{
		ID:          id,
		ExecutionID: executionID,
		StepID:      stepID,
		WaitType:    waitType,
		Status:      WaitStatusWaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// transitionTo applies a wait status change, enforcing the transition table.
// Idempotency of resume/timeout/cancel rests entirely on this guard: a second
// invocation finds a terminal status and fails without re-applying effects.
func (w *WaitStepExecution) transitionTo(target WaitStatus) error {
	if !w.Status.CanTransitionTo(target) {
		return journeyerr.NewStateTransitionError("wait", w.ID, string(w.Status), string(target))
	}

	w.Status = target
	w.UpdatedAt = time.Now().UTC()

	if target.Terminal() {
		now := time.Now().UTC()
		w.EndedAt = &now
	}

	return nil
}

// Schedule marks the wait as having its resume or timeout job registered.
func (w *WaitStepExecution) Schedule() error {
	return w.transitionTo(WaitStatusScheduled)
}

// Resume marks the wait as resumed by the given source.
func (w *WaitStepExecution) Resume(source string) error {
	if err := w.transitionTo(WaitStatusResumed); err != nil {
		return err
	}

	w.ResumedBy = source

	return nil
}

// Timeout marks a scheduled event wait as expired.
func (w *WaitStepExecution) Timeout() error {
	return w.transitionTo(WaitStatusTimeout)
}

// Cancel terminates the wait.
func (w *WaitStepExecution) Cancel() error {
	return w.transitionTo(WaitStatusCancelled)
}

// MarkError terminates the wait with an internal error.
func (w *WaitStepExecution) MarkError() error {
	return w.transitionTo(WaitStatusError)
}
