// Package execution implements the per-contact workflow state machine: it
// walks a workflow's steps for one execution, dispatching actions, selecting
// condition branches, suspending at waits and applying the retry policy.
//
// The engine is stateless between calls; all position lives on the persisted
// execution, guarded by optimistic concurrency so two workers never advance
// the same execution.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/driftline/journey/pkg/conditions"
	"github.com/driftline/journey/pkg/eventbus"
	"github.com/driftline/journey/pkg/events"
	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/otelhelper"
	"github.com/driftline/journey/pkg/persistence"
	"github.com/driftline/journey/pkg/protocol"
	"github.com/driftline/journey/pkg/registry"
	"github.com/driftline/journey/pkg/wait"
)

// Resume reasons the engine accepts, matching the scheduler's job kinds plus
// the event-driven resume published on a listener match.
const (
	ResumeReasonWaitResume  = string(protocol.JobKindWaitResume)
	ResumeReasonWaitTimeout = string(protocol.JobKindWaitTimeout)
	ResumeReasonStepRetry   = string(protocol.JobKindStepRetry)
	ResumeReasonEvent       = "event"
)

var errUnknownResumeReason = errors.New("unknown resume reason")

// Config wires the engine's collaborators.
type Config struct {
	WorkerID    string
	Logger      *slog.Logger
	Persistence persistence.Persistence
	Registry    *registry.Registry
	Conditions  *conditions.Engine
	Waits       *wait.Scheduler
	Jobs        protocol.JobScheduler
	EventBus    eventbus.EventBus
	Tracer      trace.Tracer
}

// Engine advances workflow executions through their steps.
type Engine struct {
	workerID   string
	logger     *slog.Logger
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	contacts   persistence.ContactRepository
	logs       persistence.ExecutionLogRepository
	registry   *registry.Registry
	conditions *conditions.Engine
	waits      *wait.Scheduler
	jobs       protocol.JobScheduler
	eventBus   eventbus.EventBus
	tracer     trace.Tracer
}

// NewEngine creates an execution engine.
func NewEngine(cfg Config) *Engine {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("journey")
	}

	return &Engine{
		workerID:   cfg.WorkerID,
		logger:     cfg.Logger.With("module", "execution", "worker_id", cfg.WorkerID),
		workflows:  cfg.Persistence.WorkflowRepository(),
		executions: cfg.Persistence.ExecutionRepository(),
		contacts:   cfg.Persistence.ContactRepository(),
		logs:       cfg.Persistence.ExecutionLogRepository(),
		registry:   cfg.Registry,
		conditions: cfg.Conditions,
		waits:      cfg.Waits,
		jobs:       cfg.Jobs,
		eventBus:   cfg.EventBus,
		tracer:     tracer,
	}
}

// Run picks up a queued execution and advances it until it completes, fails,
// or suspends at a wait step. Running an execution that is already terminal or
// held is a no-op, which makes redelivered enrollment events safe.
func (e *Engine) Run(ctx context.Context, executionID string) error {
	execution, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	switch execution.Status {
	case models.ExecutionStatusQueued:
	case models.ExecutionStatusActive:
		// A worker died mid-run; the optimistic version guard below decides
		// whether this worker may take over.
		e.logger.WarnContext(ctx, "Resuming execution left active",
			"execution_id", executionID)
	default:
		e.logger.InfoContext(ctx, "Execution not runnable, skipping",
			"execution_id", executionID, "status", execution.Status)

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution.run",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
		attribute.String(otelhelper.ContactIDKey, execution.ContactID),
		attribute.String(otelhelper.WorkerIDKey, e.workerID),
	)
	defer span.End()

	workflow, contact, runnable, err := e.prepare(ctx, execution)
	if err != nil || !runnable {
		return e.swallowConflict(ctx, execution.ID, err)
	}

	if execution.Status == models.ExecutionStatusQueued {
		if err := execution.Start(); err != nil {
			return err
		}

		if err := e.save(ctx, execution); err != nil {
			return e.swallowConflict(ctx, execution.ID, err)
		}

		e.publish(ctx, execution.ContactID, events.ExecutionStarted{
			BaseEvent:   e.baseEvent(events.ExecutionStartedType, execution.AccountID),
			ExecutionID: execution.ID,
			WorkflowID:  execution.WorkflowID,
			ContactID:   execution.ContactID,
		})
	}

	return e.swallowConflict(ctx, execution.ID, e.runSteps(ctx, execution, workflow, contact))
}

// prepare loads the pinned workflow version and the contact, and enforces the
// preconditions: paused workflows hold the execution in place; a non-active
// workflow or an opted-out contact surfaces the sentinel error with the
// execution left untouched. Only a workflow version or contact that no longer
// exists cancels the execution, since it can never become runnable again.
func (e *Engine) prepare(ctx context.Context, execution *models.WorkflowExecution) (*models.Workflow, *models.Contact, bool, error) {
	workflow, err := e.workflows.GetVersion(ctx, execution.WorkflowID, execution.WorkflowVersion)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, nil, false, e.cancelWith(ctx, execution, "workflow version no longer exists")
		}

		return nil, nil, false, err
	}

	switch workflow.Status {
	case models.WorkflowStatusActive:
	case models.WorkflowStatusPaused:
		e.logger.InfoContext(ctx, "Workflow paused, holding execution",
			"execution_id", execution.ID, "workflow_id", workflow.ID)

		return nil, nil, false, e.hold(ctx, execution)
	default:
		return nil, nil, false, fmt.Errorf("%w: workflow %s is %s",
			journeyerr.ErrWorkflowNotActive, workflow.ID, workflow.Status)
	}

	contact, err := e.contacts.GetByID(ctx, execution.ContactID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, nil, false, e.cancelWith(ctx, execution, "contact no longer exists")
		}

		return nil, nil, false, err
	}

	if contact.OptedOut {
		return nil, nil, false, fmt.Errorf("%w: contact %s",
			journeyerr.ErrContactOptedOut, execution.ContactID)
	}

	return workflow, contact, true, nil
}

// hold keeps the execution where it is while its workflow is paused. Queued
// executions stay queued; an execution resuming from a wait has already been
// activated and moves to paused until the workflow resumes.
func (e *Engine) hold(ctx context.Context, execution *models.WorkflowExecution) error {
	if execution.Status != models.ExecutionStatusActive {
		return nil
	}

	if err := execution.Pause(); err != nil {
		return err
	}

	return e.save(ctx, execution)
}

// HandleResume reacts to a resume request: a fired wait job, a matched event
// listener, an event-wait timeout, or a retry delay elapsing. Stale requests
// hit the wait's terminal status and are dropped.
func (e *Engine) HandleResume(ctx context.Context, executionID, waitID, reason string) error {
	switch reason {
	case ResumeReasonStepRetry:
		return e.Run(ctx, executionID)
	case ResumeReasonWaitResume:
		return e.resumeFromWait(ctx, executionID, waitID, wait.ResumedByScheduler)
	case ResumeReasonEvent:
		return e.resumeFromWait(ctx, executionID, waitID, wait.ResumedByEvent)
	case ResumeReasonWaitTimeout:
		return e.timeoutWait(ctx, executionID, waitID)
	default:
		return fmt.Errorf("%w: %q", errUnknownResumeReason, reason)
	}
}

func (e *Engine) resumeFromWait(ctx context.Context, executionID, waitID, source string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution.resume",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.WaitIDKey, waitID),
	)
	defer span.End()

	if _, err := e.waits.Resume(ctx, waitID, source); err != nil {
		if journeyerr.IsInvalidTransition(err) {
			e.logger.DebugContext(ctx, "Wait already finished, ignoring resume",
				"wait_id", waitID, "source", source)

			return nil
		}

		return err
	}

	return e.reactivate(ctx, executionID, true)
}

func (e *Engine) timeoutWait(ctx context.Context, executionID, waitID string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution.wait_timeout",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.WaitIDKey, waitID),
	)
	defer span.End()

	timedOut, err := e.waits.Timeout(ctx, waitID)
	if err != nil {
		if journeyerr.IsInvalidTransition(err) {
			e.logger.DebugContext(ctx, "Wait already finished, ignoring timeout",
				"wait_id", waitID)

			return nil
		}

		return err
	}

	if timedOut.TimeoutAction == models.TimeoutActionExit {
		return e.completeAfterTimeout(ctx, executionID)
	}

	return e.reactivate(ctx, executionID, true)
}

// reactivate moves a waiting execution back to active, advances past the wait
// step when asked, and continues the step loop.
func (e *Engine) reactivate(ctx context.Context, executionID string, advance bool) error {
	execution, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if err := execution.Activate(); err != nil {
		if journeyerr.IsInvalidTransition(err) {
			e.logger.InfoContext(ctx, "Execution not waiting, ignoring resume",
				"execution_id", executionID, "status", execution.Status)

			return nil
		}

		return err
	}

	if advance {
		execution.AdvanceStep()
	}

	if err := e.save(ctx, execution); err != nil {
		return e.swallowConflict(ctx, execution.ID, err)
	}

	workflow, contact, runnable, err := e.prepare(ctx, execution)
	if err != nil || !runnable {
		return e.swallowConflict(ctx, execution.ID, err)
	}

	return e.swallowConflict(ctx, execution.ID, e.runSteps(ctx, execution, workflow, contact))
}

func (e *Engine) completeAfterTimeout(ctx context.Context, executionID string) error {
	execution, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if err := execution.Activate(); err != nil {
		if journeyerr.IsInvalidTransition(err) {
			return nil
		}

		return err
	}

	return e.swallowConflict(ctx, execution.ID, e.complete(ctx, execution))
}

// ConvertGoal ends the execution as converted, regardless of its position.
// Waiting and queued executions are activated first so the transition table
// stays the single authority on status changes.
func (e *Engine) ConvertGoal(ctx context.Context, executionID, domainType string) error {
	execution, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status.Terminal() {
		return nil
	}

	switch execution.Status {
	case models.ExecutionStatusQueued:
		err = execution.Start()
	case models.ExecutionStatusWaiting, models.ExecutionStatusPaused:
		err = execution.Activate()
	default:
	}

	if err != nil {
		return err
	}

	if err := execution.CompleteConverted(); err != nil {
		return err
	}

	if err := e.save(ctx, execution); err != nil {
		return e.swallowConflict(ctx, execution.ID, err)
	}

	if err := e.waits.CancelForExecution(ctx, execution.ID); err != nil {
		e.logger.WarnContext(ctx, "Failed to cancel waits after goal conversion",
			"execution_id", execution.ID, "error", err)
	}

	e.publish(ctx, execution.ContactID, events.GoalConverted{
		BaseEvent:   e.baseEvent(events.GoalConvertedType, execution.AccountID),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		ContactID:   execution.ContactID,
		DomainType:  domainType,
	})
	e.publishCompleted(ctx, execution)

	e.logger.InfoContext(ctx, "Execution completed via goal conversion",
		"execution_id", execution.ID, "domain_type", domainType)

	return nil
}

// Cancel terminates a non-terminal execution and cleans up its waits.
func (e *Engine) Cancel(ctx context.Context, executionID, reason string) error {
	execution, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status.Terminal() {
		return nil
	}

	return e.swallowConflict(ctx, execution.ID, e.cancelWith(ctx, execution, reason))
}

// Pause suspends an active execution until Unpause.
func (e *Engine) Pause(ctx context.Context, executionID string) error {
	execution, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if err := execution.Pause(); err != nil {
		return err
	}

	return e.save(ctx, execution)
}

// Unpause reactivates a paused execution and continues its step loop.
func (e *Engine) Unpause(ctx context.Context, executionID string) error {
	return e.reactivate(ctx, executionID, false)
}

func (e *Engine) cancelWith(ctx context.Context, execution *models.WorkflowExecution, reason string) error {
	if err := execution.Cancel(); err != nil {
		return err
	}

	if err := e.save(ctx, execution); err != nil {
		return err
	}

	if err := e.waits.CancelForExecution(ctx, execution.ID); err != nil {
		e.logger.WarnContext(ctx, "Failed to cancel waits",
			"execution_id", execution.ID, "error", err)
	}

	e.publish(ctx, execution.ContactID, events.ExecutionCancelled{
		BaseEvent:   e.baseEvent(events.ExecutionCancelledType, execution.AccountID),
		ExecutionID: execution.ID,
		Reason:      reason,
	})

	e.logger.InfoContext(ctx, "Execution cancelled",
		"execution_id", execution.ID, "reason", reason)

	return nil
}

func (e *Engine) complete(ctx context.Context, execution *models.WorkflowExecution) error {
	if err := execution.Complete(); err != nil {
		return err
	}

	if err := e.save(ctx, execution); err != nil {
		return err
	}

	e.publishCompleted(ctx, execution)

	e.logger.InfoContext(ctx, "Execution completed",
		"execution_id", execution.ID, "converted", execution.Converted)

	return nil
}

func (e *Engine) publishCompleted(ctx context.Context, execution *models.WorkflowExecution) {
	var durationMs int64
	if execution.StartedAt != nil && execution.CompletedAt != nil {
		durationMs = execution.CompletedAt.Sub(*execution.StartedAt).Milliseconds()
	}

	e.publish(ctx, execution.ContactID, events.ExecutionCompleted{
		BaseEvent:   e.baseEvent(events.ExecutionCompletedType, execution.AccountID),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		ContactID:   execution.ContactID,
		Converted:   execution.Converted,
		DurationMs:  durationMs,
	})
}

// save persists the execution under its optimistic version.
func (e *Engine) save(ctx context.Context, execution *models.WorkflowExecution) error {
	return e.executions.Save(ctx, execution, execution.Version)
}

// swallowConflict turns a version conflict into a clean stop: another worker
// holds the execution and whatever it does supersedes this run.
func (e *Engine) swallowConflict(ctx context.Context, executionID string, err error) error {
	if journeyerr.IsVersionConflict(err) {
		e.logger.WarnContext(ctx, "Lost execution to a concurrent worker",
			"execution_id", executionID)

		return nil
	}

	return err
}

func (e *Engine) baseEvent(eventType events.EventType, accountID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, accountID)
	base.WorkerID = e.workerID

	return base
}

// publish emits a lifecycle event keyed by contact. The state change is
// already persisted, so a publish failure is logged and not propagated.
func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) newLogID() string {
	return uuid.New().String()
}
