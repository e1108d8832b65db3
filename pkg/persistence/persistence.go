// Package persistence provides the data storage abstraction layer for
// workflows, executions, waits, listeners and contacts.
package persistence

import (
	"context"
	"time"

	"github.com/driftline/journey/pkg/models"
)

// Persistence aggregates the repositories an engine process needs. Both the
// file and PostgreSQL implementations satisfy it.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	WaitRepository() WaitRepository
	ListenerRepository() ListenerRepository
	ContactRepository() ContactRepository
	ExecutionLogRepository() ExecutionLogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores versioned workflow definitions. Executions pin the
// version they enrolled against, so historical versions stay readable.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	GetVersion(ctx context.Context, id string, version int) (*models.Workflow, error)
	ListActiveByTriggerEvent(ctx context.Context, eventType string) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores workflow executions. Save enforces optimistic
// concurrency: it fails with journeyerr.ErrVersionConflict when the stored
// version differs from expectedVersion, and increments execution.Version on
// success.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.WorkflowExecution) error
	Save(ctx context.Context, execution *models.WorkflowExecution, expectedVersion int) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error)
	FindOpenByWorkflowAndContact(ctx context.Context, workflowID, contactID string) (*models.WorkflowExecution, error)
}

// WaitRepository stores wait step executions. The scheduler polls the two
// listing methods to resume due time waits and expire event waits.
type WaitRepository interface {
	Save(ctx context.Context, wait *models.WaitStepExecution) error
	GetByID(ctx context.Context, id string) (*models.WaitStepExecution, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.WaitStepExecution, error)
	ListTimedOut(ctx context.Context, now time.Time) ([]*models.WaitStepExecution, error)
	ListByExecution(ctx context.Context, executionID string) ([]*models.WaitStepExecution, error)
}

// ListenerRepository stores event listeners for event waits and goals.
type ListenerRepository interface {
	Save(ctx context.Context, listener *models.EventListener) error
	GetByID(ctx context.Context, id string) (*models.EventListener, error)
	ListActiveByEvent(ctx context.Context, eventType, correlationID string) ([]*models.EventListener, error)
	ListByExecution(ctx context.Context, executionID string) ([]*models.EventListener, error)
}

// ContactRepository reads the contact snapshots conditions evaluate against.
type ContactRepository interface {
	Save(ctx context.Context, contact *models.Contact) error
	GetByID(ctx context.Context, id string) (*models.Contact, error)
}

// ExecutionLogRepository stores the append-only step log of an execution.
type ExecutionLogRepository interface {
	Append(ctx context.Context, log *models.ExecutionLog) error
	ListByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLog, error)
}
