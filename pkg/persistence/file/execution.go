package file

import (
	"context"
	"sync"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

// ExecutionRepository stores workflow executions one file per execution. A
// process-wide mutex makes the version check and write atomic, which is the
// strongest guarantee a file backend can give.
type ExecutionRepository struct {
	store *store[models.WorkflowExecution]
	mu    sync.Mutex
}

// NewExecutionRepository creates a file-backed execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{store: newStore[models.WorkflowExecution](root, "executions")}
}

// Create writes a new execution; it fails when the ID already exists.
func (er *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	if _, err := er.store.read(execution.ID); err == nil {
		return persistence.NewRepositoryError("Create", "execution", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	execution.Version = 1

	if err := er.store.write(execution.ID, execution); err != nil {
		return persistence.NewRepositoryError("Create", "execution", execution.ID, err)
	}

	return nil
}

// Save writes the execution only if the stored version still equals
// expectedVersion, then increments the version.
func (er *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution, expectedVersion int) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	stored, err := er.store.read(execution.ID)
	if err != nil {
		if isNotExist(err) {
			return persistence.NewRepositoryError("Save", "execution", execution.ID, persistence.ErrExecutionNotFound)
		}

		return persistence.NewRepositoryError("Save", "execution", execution.ID, err)
	}

	if stored.Version != expectedVersion {
		return persistence.NewRepositoryError("Save", "execution", execution.ID, journeyerr.ErrVersionConflict)
	}

	execution.Version = expectedVersion + 1
	execution.UpdatedAt = time.Now().UTC()

	if err := er.store.write(execution.ID, execution); err != nil {
		return persistence.NewRepositoryError("Save", "execution", execution.ID, err)
	}

	return nil
}

// GetByID retrieves an execution by its ID.
func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	execution, err := er.store.read(id)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.NewRepositoryError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewRepositoryError("GetByID", "execution", id, err)
	}

	return execution, nil
}

// ListByStatus retrieves all executions with the given status.
func (er *ExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error) {
	executions, err := er.store.list()
	if err != nil {
		return nil, persistence.NewRepositoryError("ListByStatus", "execution", string(status), err)
	}

	var matched []*models.WorkflowExecution

	for _, execution := range executions {
		if execution.Status == status {
			matched = append(matched, execution)
		}
	}

	return matched, nil
}

// FindOpenByWorkflowAndContact returns a non-terminal execution of the
// workflow for the contact, or nil when none exists. Enrollment uses this for
// re-enrollment dedup.
func (er *ExecutionRepository) FindOpenByWorkflowAndContact(ctx context.Context, workflowID, contactID string) (*models.WorkflowExecution, error) {
	executions, err := er.store.list()
	if err != nil {
		return nil, persistence.NewRepositoryError("FindOpenByWorkflowAndContact", "execution", workflowID, err)
	}

	for _, execution := range executions {
		if execution.WorkflowID == workflowID && execution.ContactID == contactID && !execution.Status.Terminal() {
			return execution, nil
		}
	}

	return nil, nil
}
