package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/driftline/journey/pkg/eventbus"
	"github.com/driftline/journey/pkg/events"
	"github.com/driftline/journey/pkg/execution"
)

// WorkerManager subscribes the engine to the events that carry work:
// enrollments, resume requests and goal matches.
type WorkerManager struct {
	id       string
	logger   *slog.Logger
	eventBus eventbus.EventBus
	engine   *execution.Engine
}

func NewWorkerManager(id string, logger *slog.Logger, eventBus eventbus.EventBus, engine *execution.Engine) *WorkerManager {
	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "worker_manager"),
		eventBus: eventBus,
		engine:   engine,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	handlers := map[events.EventType]eventbus.EventHandler{
		events.ContactEnrolledType:          w.handleContactEnrolled,
		events.ExecutionResumeRequestedType: w.handleResumeRequested,
		events.GoalMatchedType:              w.handleGoalMatched,
	}

	for eventType, handler := range handlers {
		if err := w.eventBus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handleContactEnrolled(ctx context.Context, event any) error {
	enrolled, ok := event.(*events.ContactEnrolled)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ContactEnrolled")

		return nil
	}

	logger := w.logger.With(
		"execution_id", enrolled.ExecutionID,
		"workflow_id", enrolled.WorkflowID,
		"contact_id", enrolled.ContactID,
	)
	logger.InfoContext(ctx, "Processing enrollment")

	if err := w.engine.Run(ctx, enrolled.ExecutionID); err != nil {
		logger.ErrorContext(ctx, "Failed to run execution", "error", err)

		return err
	}

	return nil
}

func (w *WorkerManager) handleResumeRequested(ctx context.Context, event any) error {
	resume, ok := event.(*events.ExecutionResumeRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionResumeRequested")

		return nil
	}

	logger := w.logger.With(
		"execution_id", resume.ExecutionID,
		"reason", resume.Reason,
		"wait_id", resume.WaitID,
	)
	logger.InfoContext(ctx, "Processing resume request")

	if err := w.engine.HandleResume(ctx, resume.ExecutionID, resume.WaitID, resume.Reason); err != nil {
		logger.ErrorContext(ctx, "Failed to resume execution", "error", err)

		return err
	}

	return nil
}

func (w *WorkerManager) handleGoalMatched(ctx context.Context, event any) error {
	matched, ok := event.(*events.GoalMatched)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for GoalMatched")

		return nil
	}

	logger := w.logger.With(
		"execution_id", matched.ExecutionID,
		"domain_type", matched.DomainType,
	)
	logger.InfoContext(ctx, "Processing goal match")

	if err := w.engine.ConvertGoal(ctx, matched.ExecutionID, matched.DomainType); err != nil {
		logger.ErrorContext(ctx, "Failed to convert goal", "error", err)

		return err
	}

	return nil
}
