package models

import "time"

// ListenerStatus represents the lifecycle state of an event listener.
type ListenerStatus string

const (
	ListenerStatusActive    ListenerStatus = "active"
	ListenerStatusMatched   ListenerStatus = "matched"
	ListenerStatusExpired   ListenerStatus = "expired"
	ListenerStatusCancelled ListenerStatus = "cancelled"
)

// ListenerKind distinguishes event-wait listeners from goal listeners.
type ListenerKind string

const (
	ListenerKindWait ListenerKind = "wait" // Resumes a waiting execution
	ListenerKindGoal ListenerKind = "goal" // Completes the execution as converted
)

// EventListener is registered when an event-based wait (or a workflow goal)
// needs to match future domain events. Events match on EventType plus the
// correlation id, which for per-contact workflows is the contact id.
type EventListener struct {
	ID            string         `json:"id"             validate:"required"`
	Kind          ListenerKind   `json:"kind"           validate:"required"`
	ExecutionID   string         `json:"execution_id"   validate:"required"`
	WaitID        string         `json:"wait_id,omitempty"` // Empty for goal listeners
	EventType     string         `json:"event_type"     validate:"required"`
	CorrelationID string         `json:"correlation_id" validate:"required"`
	Filters       *TriggerFilters `json:"filters,omitempty"` // Optional payload filters
	Status        ListenerStatus `json:"status"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewEventListener creates an active listener.
func NewEventListener(id string, kind ListenerKind, executionID, waitID, eventType, correlationID string, expiresAt *time.Time) *EventListener {
	now := time.Now().UTC()

	return &EventListener{
		ID:            id,
		Kind:          kind,
		ExecutionID:   executionID,
		WaitID:        waitID,
		EventType:     eventType,
		CorrelationID: correlationID,
		Status:        ListenerStatusActive,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Matches reports whether a domain event belongs to this listener. Payload
// filter evaluation is the caller's concern; this checks routing only.
func (l *EventListener) Matches(eventType, correlationID string, now time.Time) bool {
	if l.Status != ListenerStatusActive {
		return false
	}

	if l.EventType != eventType || l.CorrelationID != correlationID {
		return false
	}

	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return false
	}

	return true
}

// MarkMatched transitions the listener to matched.
func (l *EventListener) MarkMatched() {
	l.Status = ListenerStatusMatched
	l.UpdatedAt = time.Now().UTC()
}

// MarkExpired transitions the listener to expired.
func (l *EventListener) MarkExpired() {
	l.Status = ListenerStatusExpired
	l.UpdatedAt = time.Now().UTC()
}

// MarkCancelled transitions the listener to cancelled.
func (l *EventListener) MarkCancelled() {
	l.Status = ListenerStatusCancelled
	l.UpdatedAt = time.Now().UTC()
}
