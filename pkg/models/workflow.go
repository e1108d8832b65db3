package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/driftline/journey/pkg/journeyerr"
)

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Enrolling and executing
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Not enrolling, executions held
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// StepKind distinguishes the three node kinds the engine walks.
type StepKind string

const (
	StepKindAction    StepKind = "action"
	StepKindCondition StepKind = "condition"
	StepKindWait      StepKind = "wait"
)

// Step is an ordered node in a workflow's sequence. Nodes are addressed by
// stable id and doubly linked through PreviousID/NextID so branches can insert
// into the middle of a sequence; Position is the derived walk order.
type Step struct {
	ID         string   `json:"id"   validate:"required"`
	Kind       StepKind `json:"kind" validate:"required"`
	Name       string   `json:"name"`
	Position   int      `json:"position"`
	PreviousID *string  `json:"previous_id,omitempty"`
	NextID     *string  `json:"next_id,omitempty"`
	BranchID   *string  `json:"branch_id,omitempty"` // Set when attached to a condition branch
	Enabled    bool     `json:"enabled"`

	// Action steps: type tag plus config validated at save time against the
	// registered schema, then re-validated into a typed struct by the
	// executor factory.
	ActionType string         `json:"action_type,omitempty"`
	Config     map[string]any `json:"config,omitempty"`

	// Condition steps.
	Condition *Condition `json:"condition,omitempty"`

	// Wait steps.
	WaitType WaitType `json:"wait_type,omitempty"`
}

// WorkflowTrigger is the event-matching rule that enrolls a contact.
type WorkflowTrigger struct {
	ID        string         `json:"id"         validate:"required"`
	EventType string         `json:"event_type" validate:"required"`
	Filters   TriggerFilters `json:"filters"`
}

// Goal ends an execution as converted when a matching event arrives,
// regardless of remaining steps.
type Goal struct {
	EventType string          `json:"event_type" validate:"required"`
	Filters   *TriggerFilters `json:"filters,omitempty"`
}

// Workflow is a versioned multi-step automation definition. The engine reads
// workflows; definition CRUD and version migration live outside this module.
type Workflow struct {
	ID          string         `json:"id"          validate:"required"`
	AccountID   string         `json:"account_id"  validate:"required"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Status      WorkflowStatus `json:"status"      validate:"required"`
	Version     int            `json:"version"     validate:"gte=1"`

	Triggers []*WorkflowTrigger `json:"triggers"`
	Goal     *Goal              `json:"goal,omitempty"`
	Steps    []*Step            `json:"steps"`
	Retry    RetryStrategy      `json:"retry"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsExecutable reports whether executions may run against this workflow.
func (w *Workflow) IsExecutable() bool {
	return w.Status == WorkflowStatusActive
}

// StepAt returns the step at a walk position, or nil past the end.
func (w *Workflow) StepAt(index int) *Step {
	if index < 0 || index >= len(w.Steps) {
		return nil
	}

	return w.Steps[index]
}

// StepByID returns the step with the given node id.
func (w *Workflow) StepByID(id string) (*Step, bool) {
	for _, step := range w.Steps {
		if step.ID == id {
			return step, true
		}
	}

	return nil, false
}

// IndexOf returns the walk position of a node id, or -1.
func (w *Workflow) IndexOf(id string) int {
	for i, step := range w.Steps {
		if step.ID == id {
			return i
		}
	}

	return -1
}

var validate = validator.New()

// Validate checks struct tags, trigger filter rules and condition invariants.
func (w *Workflow) Validate() error {
	if err := validate.Struct(w); err != nil {
		return &journeyerr.ValidationError{Entity: "workflow", Err: err}
	}

	for _, trigger := range w.Triggers {
		if err := trigger.Filters.Validate(trigger.EventType); err != nil {
			return err
		}
	}

	for _, step := range w.Steps {
		if step.Kind == StepKindCondition && step.Condition != nil {
			if err := step.Condition.Validate(); err != nil {
				return err
			}
		}
	}

	return nil
}
