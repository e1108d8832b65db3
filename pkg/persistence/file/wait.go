package file

import (
	"context"
	"time"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

// WaitRepository stores wait step executions one file per wait.
type WaitRepository struct {
	store *store[models.WaitStepExecution]
}

// NewWaitRepository creates a file-backed wait repository.
func NewWaitRepository(root string) *WaitRepository {
	return &WaitRepository{store: newStore[models.WaitStepExecution](root, "waits")}
}

// Save writes the wait step execution.
func (wr *WaitRepository) Save(ctx context.Context, wait *models.WaitStepExecution) error {
	if err := wr.store.write(wait.ID, wait); err != nil {
		return persistence.NewRepositoryError("Save", "wait", wait.ID, err)
	}

	return nil
}

// GetByID retrieves a wait step execution by its ID.
func (wr *WaitRepository) GetByID(ctx context.Context, id string) (*models.WaitStepExecution, error) {
	wait, err := wr.store.read(id)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.NewRepositoryError("GetByID", "wait", id, persistence.ErrWaitNotFound)
		}

		return nil, persistence.NewRepositoryError("GetByID", "wait", id, err)
	}

	return wait, nil
}

// ListDue returns scheduled time waits whose resume time has passed.
func (wr *WaitRepository) ListDue(ctx context.Context, now time.Time) ([]*models.WaitStepExecution, error) {
	waits, err := wr.store.list()
	if err != nil {
		return nil, persistence.NewRepositoryError("ListDue", "wait", "", err)
	}

	var due []*models.WaitStepExecution

	for _, wait := range waits {
		if wait.Status != models.WaitStatusScheduled || wait.ScheduledAt == nil {
			continue
		}

		if !wait.ScheduledAt.After(now) {
			due = append(due, wait)
		}
	}

	return due, nil
}

// ListTimedOut returns scheduled event waits whose timeout has passed.
func (wr *WaitRepository) ListTimedOut(ctx context.Context, now time.Time) ([]*models.WaitStepExecution, error) {
	waits, err := wr.store.list()
	if err != nil {
		return nil, persistence.NewRepositoryError("ListTimedOut", "wait", "", err)
	}

	var expired []*models.WaitStepExecution

	for _, wait := range waits {
		if wait.Status != models.WaitStatusScheduled || wait.EventTimeoutAt == nil {
			continue
		}

		if !wait.EventTimeoutAt.After(now) {
			expired = append(expired, wait)
		}
	}

	return expired, nil
}

// ListByExecution retrieves all wait step executions of one execution.
func (wr *WaitRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.WaitStepExecution, error) {
	waits, err := wr.store.list()
	if err != nil {
		return nil, persistence.NewRepositoryError("ListByExecution", "wait", executionID, err)
	}

	var matched []*models.WaitStepExecution

	for _, wait := range waits {
		if wait.ExecutionID == executionID {
			matched = append(matched, wait)
		}
	}

	return matched, nil
}
