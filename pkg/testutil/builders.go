// Package testutil provides test data builders shared across package tests.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/driftline/journey/pkg/events"
	"github.com/driftline/journey/pkg/models"
)

// CreateTestWorkflow creates an active single-trigger workflow with default
// values that can be overridden.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:        uuid.New().String(),
		AccountID: "acct-1",
		Name:      "Test Workflow",
		Status:    models.WorkflowStatusActive,
		Version:   1,
		Triggers: []*models.WorkflowTrigger{
			{
				ID:        uuid.New().String(),
				EventType: events.DomainFormSubmitted,
			},
		},
		Retry:     models.DefaultRetryStrategy(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithSteps sets the workflow's steps.
func WithSteps(steps ...*models.Step) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Steps = steps
	}
}

// WithStatus sets the workflow status.
func WithStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Status = status
	}
}

// WithGoal sets the workflow goal.
func WithGoal(eventType string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Goal = &models.Goal{EventType: eventType}
	}
}

// WithRetry sets the retry strategy.
func WithRetry(strategy models.RetryStrategy) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Retry = strategy
	}
}

// CreateActionStep creates an enabled action step at the given position.
func CreateActionStep(position int, actionType string, config map[string]any) *models.Step {
	return &models.Step{
		ID:         uuid.New().String(),
		Kind:       models.StepKindAction,
		Name:       actionType,
		Position:   position,
		Enabled:    true,
		ActionType: actionType,
		Config:     config,
	}
}

// CreateWaitStep creates an enabled wait step at the given position.
func CreateWaitStep(position int, waitType models.WaitType, config map[string]any) *models.Step {
	return &models.Step{
		ID:       uuid.New().String(),
		Kind:     models.StepKindWait,
		Name:     string(waitType),
		Position: position,
		Enabled:  true,
		WaitType: waitType,
		Config:   config,
	}
}

// CreateConditionStep creates an enabled condition step at the given position.
func CreateConditionStep(position int, condition *models.Condition) *models.Step {
	return &models.Step{
		ID:        uuid.New().String(),
		Kind:      models.StepKindCondition,
		Name:      string(condition.BranchType),
		Position:  position,
		Enabled:   true,
		Condition: condition,
	}
}

// CreateTestContact creates a contact with default values that can be
// overridden.
func CreateTestContact(overrides ...func(*models.Contact)) *models.Contact {
	now := time.Now().UTC()

	contact := &models.Contact{
		ID:        uuid.New().String(),
		AccountID: "acct-1",
		Email:     "jordan@example.com",
		Data:      map[string]any{"first_name": "Jordan"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(contact)
	}

	return contact
}

// WithTags sets the contact's tags.
func WithTags(tags ...string) func(*models.Contact) {
	return func(c *models.Contact) {
		c.Tags = tags
	}
}

// WithOptedOut marks the contact as opted out.
func WithOptedOut() func(*models.Contact) {
	return func(c *models.Contact) {
		c.OptedOut = true
	}
}

// CreateTestExecution creates a queued execution for the workflow and contact.
func CreateTestExecution(workflow *models.Workflow, contact *models.Contact, overrides ...func(*models.WorkflowExecution)) *models.WorkflowExecution {
	execution := models.NewWorkflowExecution(uuid.New().String(),
		workflow.ID, workflow.Version, contact.ID, workflow.AccountID, nil)

	for _, override := range overrides {
		override(execution)
	}

	return execution
}
