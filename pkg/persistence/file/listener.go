package file

import (
	"context"
	"time"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

// ListenerRepository stores event listeners one file per listener.
type ListenerRepository struct {
	store *store[models.EventListener]
}

// NewListenerRepository creates a file-backed listener repository.
func NewListenerRepository(root string) *ListenerRepository {
	return &ListenerRepository{store: newStore[models.EventListener](root, "listeners")}
}

// Save writes the event listener.
func (lr *ListenerRepository) Save(ctx context.Context, listener *models.EventListener) error {
	if err := lr.store.write(listener.ID, listener); err != nil {
		return persistence.NewRepositoryError("Save", "listener", listener.ID, err)
	}

	return nil
}

// GetByID retrieves an event listener by its ID.
func (lr *ListenerRepository) GetByID(ctx context.Context, id string) (*models.EventListener, error) {
	listener, err := lr.store.read(id)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.NewRepositoryError("GetByID", "listener", id, persistence.ErrListenerNotFound)
		}

		return nil, persistence.NewRepositoryError("GetByID", "listener", id, err)
	}

	return listener, nil
}

// ListActiveByEvent returns active, unexpired listeners matching the event
// type and correlation ID.
func (lr *ListenerRepository) ListActiveByEvent(ctx context.Context, eventType, correlationID string) ([]*models.EventListener, error) {
	listeners, err := lr.store.list()
	if err != nil {
		return nil, persistence.NewRepositoryError("ListActiveByEvent", "listener", eventType, err)
	}

	now := time.Now().UTC()

	var matched []*models.EventListener

	for _, listener := range listeners {
		if listener.Matches(eventType, correlationID, now) {
			matched = append(matched, listener)
		}
	}

	return matched, nil
}

// ListByExecution retrieves all listeners of one execution.
func (lr *ListenerRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.EventListener, error) {
	listeners, err := lr.store.list()
	if err != nil {
		return nil, persistence.NewRepositoryError("ListByExecution", "listener", executionID, err)
	}

	var matched []*models.EventListener

	for _, listener := range listeners {
		if listener.ExecutionID == executionID {
			matched = append(matched, listener)
		}
	}

	return matched, nil
}
