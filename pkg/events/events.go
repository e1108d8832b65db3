// Package events defines the event types flowing between the enroller, the
// workers and the scheduler.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "journey.events"              // Engine lifecycle events
const DomainTopic = "journey.domain.events" // Inbound marketing domain events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Inbound domain events, published by upstream product surfaces.
	DomainEventReceivedType EventType = "domain.event.received"

	// Enrollment and dispatch events.
	ContactEnrolledType          EventType = "execution.enrolled"
	ExecutionResumeRequestedType EventType = "execution.resume_requested"

	// Execution lifecycle notifications.
	ExecutionStartedType   EventType = "execution.started"
	ExecutionWaitingType   EventType = "execution.waiting"
	ExecutionCompletedType EventType = "execution.completed"
	ExecutionFailedType    EventType = "execution.failed"
	ExecutionCancelledType EventType = "execution.cancelled"
	GoalMatchedType        EventType = "execution.goal.matched"
	GoalConvertedType      EventType = "execution.goal.converted"

	// Step-level notifications.
	StepCompletedType EventType = "step.completed"
	StepFailedType    EventType = "step.failed"
)

// Well-known domain event types carried inside DomainEventReceived. Upstream
// surfaces may publish others; these are the ones trigger filters know
// required fields for.
const (
	DomainFormSubmitted = "form_submitted"
	DomainTagAdded      = "tag_added"
	DomainLinkClicked   = "link_clicked"
	DomainStageChanged  = "stage_changed"
	DomainEmailOpened   = "email_opened"
	DomainPageVisited   = "page_visited"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	AccountID string         `json:"account_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, accountID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		AccountID: accountID,
		Metadata:  make(map[string]any),
	}
}

// DomainEventReceived is the envelope for one inbound marketing event. The
// enroller consumes it to enroll contacts and to match active listeners.
type DomainEventReceived struct {
	BaseEvent

	DomainType string         `json:"domain_type"` // e.g. "form_submitted"
	ContactID  string         `json:"contact_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (e DomainEventReceived) GetType() EventType {
	return DomainEventReceivedType
}

// ContactEnrolled tells the workers a queued execution is ready to run.
type ContactEnrolled struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	ContactID   string         `json:"contact_id"`
	TriggerID   string         `json:"trigger_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e ContactEnrolled) GetType() EventType {
	return ContactEnrolledType
}

// ExecutionResumeRequested tells the workers to pick a suspended execution
// back up, after a wait resume, an event-wait timeout or a retry delay.
type ExecutionResumeRequested struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason"` // "wait_resume", "wait_timeout", "step_retry" or "event"
	WaitID      string `json:"wait_id,omitempty"`
}

func (e ExecutionResumeRequested) GetType() EventType {
	return ExecutionResumeRequestedType
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	ContactID   string `json:"contact_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedType
}

type ExecutionWaiting struct {
	BaseEvent

	ExecutionID string     `json:"execution_id"`
	WaitID      string     `json:"wait_id"`
	WaitType    string     `json:"wait_type"`
	ResumeAt    *time.Time `json:"resume_at,omitempty"`
}

func (e ExecutionWaiting) GetType() EventType {
	return ExecutionWaitingType
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	ContactID   string `json:"contact_id"`
	Converted   bool   `json:"converted"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedType
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	ContactID   string `json:"contact_id"`
	Error       string `json:"error"`
	RetryCount  int    `json:"retry_count"`
	WillRetry   bool   `json:"will_retry"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedType
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledType
}

// GoalMatched tells the workers a goal listener matched an inbound event and
// the execution should be completed as converted.
type GoalMatched struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ListenerID  string `json:"listener_id"`
	DomainType  string `json:"domain_type"`
}

func (e GoalMatched) GetType() EventType {
	return GoalMatchedType
}

// GoalConverted reports an execution completed early because its workflow
// goal matched an inbound event.
type GoalConverted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	ContactID   string `json:"contact_id"`
	DomainType  string `json:"domain_type"`
}

func (e GoalConverted) GetType() EventType {
	return GoalConvertedType
}

type StepCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	StepID      string         `json:"step_id"`
	ActionType  string         `json:"action_type,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedType
}

type StepFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	ActionType  string `json:"action_type,omitempty"`
	Error       string `json:"error"`
	Attempt     int    `json:"attempt"`
	WillRetry   bool   `json:"will_retry"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedType
}
