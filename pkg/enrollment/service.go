// Package enrollment turns inbound domain events into work: it enrolls
// contacts into workflows whose triggers match, and routes events to the
// active listeners waiting on them.
package enrollment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/driftline/journey/pkg/eventbus"
	"github.com/driftline/journey/pkg/events"
	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
	"github.com/driftline/journey/pkg/triggerfilter"
)

// Service consumes DomainEventReceived and fans it out to enrollments and
// listener matches.
type Service struct {
	logger     *slog.Logger
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	listeners  persistence.ListenerRepository
	contacts   persistence.ContactRepository
	filters    *triggerfilter.Engine
	eventBus   eventbus.EventBus
	now        func() time.Time
}

// NewService creates an enrollment service.
func NewService(logger *slog.Logger, store persistence.Persistence, filters *triggerfilter.Engine, eventBus eventbus.EventBus) *Service {
	return &Service{
		logger:     logger.With("module", "enrollment"),
		workflows:  store.WorkflowRepository(),
		executions: store.ExecutionRepository(),
		listeners:  store.ListenerRepository(),
		contacts:   store.ContactRepository(),
		filters:    filters,
		eventBus:   eventBus,
		now:        time.Now,
	}
}

// WithClock overrides the clock, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now

	return s
}

// HandleDomainEvent is the event bus handler for DomainEventReceived.
// Listeners are notified before new enrollments so an event that both resumes
// a wait and triggers a workflow does not race its own enrollment.
func (s *Service) HandleDomainEvent(ctx context.Context, event any) error {
	domainEvent, ok := event.(*events.DomainEventReceived)
	if !ok {
		s.logger.ErrorContext(ctx, "Invalid event type for DomainEventReceived")

		return nil
	}

	logger := s.logger.With(
		"domain_type", domainEvent.DomainType,
		"contact_id", domainEvent.ContactID,
	)
	logger.DebugContext(ctx, "Processing domain event")

	if err := s.NotifyListeners(ctx, domainEvent); err != nil {
		return err
	}

	return s.Enroll(ctx, domainEvent)
}

// Enroll creates a queued execution for every active workflow with a trigger
// matching the event. At most one open execution exists per workflow and
// contact; re-enrollment while one is open is skipped.
func (s *Service) Enroll(ctx context.Context, domainEvent *events.DomainEventReceived) error {
	candidates, err := s.workflows.ListActiveByTriggerEvent(ctx, domainEvent.DomainType)
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		return nil
	}

	contact, err := s.contacts.GetByID(ctx, domainEvent.ContactID)
	if err != nil {
		if persistence.IsNotFound(err) {
			s.logger.WarnContext(ctx, "Domain event for unknown contact, skipping enrollment",
				"contact_id", domainEvent.ContactID, "domain_type", domainEvent.DomainType)

			return nil
		}

		return err
	}

	if contact.OptedOut {
		s.logger.DebugContext(ctx, "Contact opted out, skipping enrollment",
			"contact_id", contact.ID)

		return nil
	}

	var errs []error

	for _, workflow := range candidates {
		trigger := s.matchTrigger(workflow, domainEvent)
		if trigger == nil {
			continue
		}

		if err := s.enrollOne(ctx, workflow, trigger, contact, domainEvent); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// matchTrigger returns the first trigger of the workflow that matches the
// event, or nil.
func (s *Service) matchTrigger(workflow *models.Workflow, domainEvent *events.DomainEventReceived) *models.WorkflowTrigger {
	for _, trigger := range workflow.Triggers {
		if trigger.EventType != domainEvent.DomainType {
			continue
		}

		if !s.filters.Matches(trigger.Filters, domainEvent.Payload) {
			continue
		}

		return trigger
	}

	return nil
}

func (s *Service) enrollOne(ctx context.Context, workflow *models.Workflow, trigger *models.WorkflowTrigger, contact *models.Contact, domainEvent *events.DomainEventReceived) error {
	open, err := s.executions.FindOpenByWorkflowAndContact(ctx, workflow.ID, contact.ID)
	if err != nil {
		return err
	}

	if open != nil {
		s.logger.DebugContext(ctx, "Contact already enrolled, skipping",
			"workflow_id", workflow.ID, "contact_id", contact.ID,
			"execution_id", open.ID)

		return nil
	}

	execution := models.NewWorkflowExecution(uuid.New().String(),
		workflow.ID, workflow.Version, contact.ID, workflow.AccountID, domainEvent.Payload)

	if err := s.executions.Create(ctx, execution); err != nil {
		if errors.Is(err, persistence.ErrExecutionAlreadyExists) {
			return nil
		}

		return err
	}

	if workflow.Goal != nil {
		if err := s.registerGoalListener(ctx, workflow, execution); err != nil {
			s.logger.ErrorContext(ctx, "Failed to register goal listener",
				"execution_id", execution.ID, "error", err)
		}
	}

	enrolled := events.ContactEnrolled{
		BaseEvent:   events.NewBaseEvent(events.ContactEnrolledType, workflow.AccountID),
		ExecutionID: execution.ID,
		WorkflowID:  workflow.ID,
		ContactID:   contact.ID,
		TriggerID:   trigger.ID,
		TriggerData: domainEvent.Payload,
	}

	if err := s.eventBus.Publish(ctx, contact.ID, enrolled); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Contact enrolled",
		"workflow_id", workflow.ID, "workflow_version", workflow.Version,
		"contact_id", contact.ID, "execution_id", execution.ID,
		"trigger_id", trigger.ID)

	return nil
}

// registerGoalListener arms the workflow's goal for this execution. The
// listener has no expiry; it dies with the execution.
func (s *Service) registerGoalListener(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution) error {
	listener := models.NewEventListener(uuid.New().String(), models.ListenerKindGoal,
		execution.ID, "", workflow.Goal.EventType, execution.ContactID, nil)
	listener.Filters = workflow.Goal.Filters

	return s.listeners.Save(ctx, listener)
}

// NotifyListeners matches the event against active listeners for this event
// type and contact. Wait listeners publish a resume request; goal listeners
// publish a goal match. Each listener fires at most once.
func (s *Service) NotifyListeners(ctx context.Context, domainEvent *events.DomainEventReceived) error {
	active, err := s.listeners.ListActiveByEvent(ctx, domainEvent.DomainType, domainEvent.ContactID)
	if err != nil {
		return err
	}

	now := s.now().UTC()

	var errs []error

	for _, listener := range active {
		if !listener.Matches(domainEvent.DomainType, domainEvent.ContactID, now) {
			continue
		}

		if listener.Filters != nil && !s.filters.Matches(*listener.Filters, domainEvent.Payload) {
			continue
		}

		if err := s.fireListener(ctx, listener, domainEvent); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Service) fireListener(ctx context.Context, listener *models.EventListener, domainEvent *events.DomainEventReceived) error {
	listener.MarkMatched()

	if err := s.listeners.Save(ctx, listener); err != nil {
		return err
	}

	var event eventbus.Event

	switch listener.Kind {
	case models.ListenerKindWait:
		event = events.ExecutionResumeRequested{
			BaseEvent:   events.NewBaseEvent(events.ExecutionResumeRequestedType, domainEvent.AccountID),
			ExecutionID: listener.ExecutionID,
			Reason:      "event",
			WaitID:      listener.WaitID,
		}
	case models.ListenerKindGoal:
		event = events.GoalMatched{
			BaseEvent:   events.NewBaseEvent(events.GoalMatchedType, domainEvent.AccountID),
			ExecutionID: listener.ExecutionID,
			ListenerID:  listener.ID,
			DomainType:  domainEvent.DomainType,
		}
	default:
		s.logger.WarnContext(ctx, "Unknown listener kind", "listener_id", listener.ID,
			"kind", listener.Kind)

		return nil
	}

	if err := s.eventBus.Publish(ctx, listener.CorrelationID, event); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Listener matched",
		"listener_id", listener.ID, "kind", listener.Kind,
		"execution_id", listener.ExecutionID, "domain_type", domainEvent.DomainType)

	return nil
}
