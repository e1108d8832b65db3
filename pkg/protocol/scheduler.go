package protocol

import (
	"context"
	"time"
)

// JobKind distinguishes the delayed jobs the engine schedules.
type JobKind string

const (
	JobKindWaitResume  JobKind = "wait_resume"  // Resume a scheduled time wait
	JobKindWaitTimeout JobKind = "wait_timeout" // Expire an event wait
	JobKindStepRetry   JobKind = "step_retry"   // Re-attempt a failed step
)

// JobRef identifies one scheduled callback. Refs are stable so a job can be
// cancelled before it fires.
type JobRef struct {
	Kind        JobKind `json:"kind"`
	ExecutionID string  `json:"execution_id"`
	TargetID    string  `json:"target_id"` // Wait id or step id depending on kind
}

// JobScheduler is the external clock contract: wait resumption, event-wait
// timeouts and retry delays all go through it.
type JobScheduler interface {
	ScheduleAt(ctx context.Context, at time.Time, ref JobRef) error
	CancelScheduled(ctx context.Context, ref JobRef) error
}
