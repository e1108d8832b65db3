// Package wait suspends and resumes executions at wait steps. It owns the wait
// lifecycle: computing resume times, registering event listeners, scheduling
// resume and timeout jobs, and applying the idempotent resume transitions.
package wait

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
	"github.com/driftline/journey/pkg/protocol"
)

// Resume sources recorded on the wait.
const (
	ResumedByScheduler = "scheduler"
	ResumedByEvent     = "event"
)

// Scheduler coordinates wait step executions against the repositories and the
// job scheduler.
type Scheduler struct {
	waits     persistence.WaitRepository
	listeners persistence.ListenerRepository
	jobs      protocol.JobScheduler
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduler creates a wait scheduler.
func NewScheduler(logger *slog.Logger, waits persistence.WaitRepository, listeners persistence.ListenerRepository, jobs protocol.JobScheduler) *Scheduler {
	return &Scheduler{
		waits:     waits,
		listeners: listeners,
		jobs:      jobs,
		logger:    logger.With("module", "wait"),
		now:       time.Now,
	}
}

// WithClock overrides the clock, used by tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now

	return s
}

// Begin suspends the execution at the given wait step, dispatching on the
// step's wait type. It returns the persisted wait in the scheduled state.
func (s *Scheduler) Begin(ctx context.Context, execution *models.WorkflowExecution, step *models.Step) (*models.WaitStepExecution, error) {
	now := s.now().UTC()

	switch step.WaitType {
	case models.WaitTypeFixedTime:
		duration, err := fixedDuration(step.Config)
		if err != nil {
			return nil, err
		}

		return s.beginTimeWait(ctx, execution.ID, step.ID, models.WaitTypeFixedTime, now.Add(duration))
	case models.WaitTypeUntilDate:
		resumeAt, err := untilDate(step.Config, now)
		if err != nil {
			return nil, err
		}

		return s.beginTimeWait(ctx, execution.ID, step.ID, models.WaitTypeUntilDate, resumeAt)
	case models.WaitTypeUntilTime:
		resumeAt, err := untilTime(step.Config, now)
		if err != nil {
			return nil, err
		}

		return s.beginTimeWait(ctx, execution.ID, step.ID, models.WaitTypeUntilTime, resumeAt)
	case models.WaitTypeForEvent:
		return s.beginEventWait(ctx, execution, step, now)
	default:
		return nil, journeyerr.NewConfigurationError(component, "wait_type",
			fmt.Errorf("unknown wait type %q", step.WaitType))
	}
}

// BeginScheduled creates a fixed-time wait that resumes at the given moment.
// It serves wait_time action results, where the executor has already computed
// the resume time.
func (s *Scheduler) BeginScheduled(ctx context.Context, executionID, stepID string, resumeAt time.Time) (*models.WaitStepExecution, error) {
	return s.beginTimeWait(ctx, executionID, stepID, models.WaitTypeFixedTime, resumeAt)
}

func (s *Scheduler) beginTimeWait(ctx context.Context, executionID, stepID string, waitType models.WaitType, resumeAt time.Time) (*models.WaitStepExecution, error) {
	wait := models.NewWaitStepExecution(uuid.New().String(), executionID, stepID, waitType)
	resumeAt = resumeAt.UTC()
	wait.ScheduledAt = &resumeAt

	if err := s.jobs.ScheduleAt(ctx, resumeAt, protocol.JobRef{
		Kind:        protocol.JobKindWaitResume,
		ExecutionID: executionID,
		TargetID:    wait.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule wait resume: %w", err)
	}

	if err := wait.Schedule(); err != nil {
		return nil, err
	}

	if err := s.waits.Save(ctx, wait); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Wait scheduled",
		"wait_id", wait.ID, "execution_id", executionID, "resume_at", resumeAt)

	return wait, nil
}

// beginEventWait registers a listener for the awaited event and schedules the
// timeout job.
func (s *Scheduler) beginEventWait(ctx context.Context, execution *models.WorkflowExecution, step *models.Step, now time.Time) (*models.WaitStepExecution, error) {
	parsed, err := parseEventWait(step.Config)
	if err != nil {
		return nil, err
	}

	wait := models.NewWaitStepExecution(uuid.New().String(), execution.ID, step.ID, models.WaitTypeForEvent)
	timeoutAt := now.Add(parsed.timeout)
	wait.EventType = parsed.eventType
	wait.EventTimeoutAt = &timeoutAt
	wait.TimeoutAction = parsed.timeoutAction

	listener := models.NewEventListener(uuid.New().String(), models.ListenerKindWait,
		execution.ID, wait.ID, parsed.eventType, execution.ContactID, &timeoutAt)
	listener.Filters = parsed.filters

	if err := s.jobs.ScheduleAt(ctx, timeoutAt, protocol.JobRef{
		Kind:        protocol.JobKindWaitTimeout,
		ExecutionID: execution.ID,
		TargetID:    wait.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule wait timeout: %w", err)
	}

	if err := wait.Schedule(); err != nil {
		return nil, err
	}

	if err := s.waits.Save(ctx, wait); err != nil {
		return nil, err
	}

	if err := s.listeners.Save(ctx, listener); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Event wait registered",
		"wait_id", wait.ID, "execution_id", execution.ID,
		"event_type", parsed.eventType, "timeout_at", timeoutAt)

	return wait, nil
}

// Resume finishes the wait as resumed by the given source. The transition
// guard makes it idempotent: resuming an already-terminal wait returns the
// transition error and applies nothing.
func (s *Scheduler) Resume(ctx context.Context, waitID, source string) (*models.WaitStepExecution, error) {
	wait, err := s.waits.GetByID(ctx, waitID)
	if err != nil {
		return nil, err
	}

	if err := wait.Resume(source); err != nil {
		return nil, err
	}

	if err := s.waits.Save(ctx, wait); err != nil {
		return nil, err
	}

	s.cleanupJobs(ctx, wait)

	if source == ResumedByScheduler {
		s.cancelListeners(ctx, wait)
	}

	s.logger.InfoContext(ctx, "Wait resumed",
		"wait_id", wait.ID, "execution_id", wait.ExecutionID, "source", source)

	return wait, nil
}

// Timeout finishes an event wait as timed out and returns it so the engine can
// apply the configured timeout action.
func (s *Scheduler) Timeout(ctx context.Context, waitID string) (*models.WaitStepExecution, error) {
	wait, err := s.waits.GetByID(ctx, waitID)
	if err != nil {
		return nil, err
	}

	if err := wait.Timeout(); err != nil {
		return nil, err
	}

	if err := s.waits.Save(ctx, wait); err != nil {
		return nil, err
	}

	s.expireListeners(ctx, wait)

	s.logger.InfoContext(ctx, "Event wait timed out",
		"wait_id", wait.ID, "execution_id", wait.ExecutionID,
		"timeout_action", wait.TimeoutAction)

	return wait, nil
}

// CancelForExecution cancels every open wait and active listener of the
// execution, used when the execution is cancelled or fails terminally.
func (s *Scheduler) CancelForExecution(ctx context.Context, executionID string) error {
	waits, err := s.waits.ListByExecution(ctx, executionID)
	if err != nil {
		return err
	}

	for _, wait := range waits {
		if wait.Status.Terminal() {
			continue
		}

		if err := wait.Cancel(); err != nil {
			continue
		}

		if err := s.waits.Save(ctx, wait); err != nil {
			return err
		}

		s.cleanupJobs(ctx, wait)
	}

	listeners, err := s.listeners.ListByExecution(ctx, executionID)
	if err != nil {
		return err
	}

	for _, listener := range listeners {
		if listener.Status != models.ListenerStatusActive {
			continue
		}

		listener.MarkCancelled()

		if err := s.listeners.Save(ctx, listener); err != nil {
			return err
		}
	}

	return nil
}

// cleanupJobs cancels whichever jobs are still outstanding for the wait.
// Cancelling an already-fired job is a no-op.
func (s *Scheduler) cleanupJobs(ctx context.Context, wait *models.WaitStepExecution) {
	kinds := []protocol.JobKind{protocol.JobKindWaitResume}
	if wait.WaitType == models.WaitTypeForEvent {
		kinds = []protocol.JobKind{protocol.JobKindWaitTimeout}
	}

	for _, kind := range kinds {
		err := s.jobs.CancelScheduled(ctx, protocol.JobRef{
			Kind:        kind,
			ExecutionID: wait.ExecutionID,
			TargetID:    wait.ID,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to cancel scheduled job",
				"wait_id", wait.ID, "kind", kind, "error", err)
		}
	}
}

func (s *Scheduler) cancelListeners(ctx context.Context, wait *models.WaitStepExecution) {
	s.finishListeners(ctx, wait, func(l *models.EventListener) { l.MarkCancelled() })
}

func (s *Scheduler) expireListeners(ctx context.Context, wait *models.WaitStepExecution) {
	s.finishListeners(ctx, wait, func(l *models.EventListener) { l.MarkExpired() })
}

func (s *Scheduler) finishListeners(ctx context.Context, wait *models.WaitStepExecution, mark func(*models.EventListener)) {
	listeners, err := s.listeners.ListByExecution(ctx, wait.ExecutionID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to list listeners", "wait_id", wait.ID, "error", err)

		return
	}

	for _, listener := range listeners {
		if listener.WaitID != wait.ID || listener.Status != models.ListenerStatusActive {
			continue
		}

		mark(listener)

		if err := s.listeners.Save(ctx, listener); err != nil {
			s.logger.WarnContext(ctx, "Failed to save listener",
				"listener_id", listener.ID, "error", err)
		}
	}
}
