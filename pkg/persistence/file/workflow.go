package file

import (
	"context"
	"fmt"
	"time"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

// WorkflowRepository stores one file per workflow version, keyed
// "<id>_v<version>", so executions pinned to old versions stay readable.
type WorkflowRepository struct {
	store *store[models.Workflow]
}

// NewWorkflowRepository creates a file-backed workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{store: newStore[models.Workflow](root, "workflows")}
}

func workflowKey(id string, version int) string {
	return fmt.Sprintf("%s_v%d", id, version)
}

// Save writes the workflow under its id and version.
func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	if err := wr.store.write(workflowKey(workflow.ID, workflow.Version), workflow); err != nil {
		return persistence.NewRepositoryError("Save", "workflow", workflow.ID, err)
	}

	return nil
}

// GetByID returns the highest non-deleted version of the workflow.
func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflows, err := wr.store.list()
	if err != nil {
		return nil, persistence.NewRepositoryError("GetByID", "workflow", id, err)
	}

	var latest *models.Workflow

	for _, workflow := range workflows {
		if workflow.ID != id || workflow.DeletedAt != nil {
			continue
		}

		if latest == nil || workflow.Version > latest.Version {
			latest = workflow
		}
	}

	if latest == nil {
		return nil, persistence.NewRepositoryError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return latest, nil
}

// GetVersion returns one specific workflow version, deleted or not.
func (wr *WorkflowRepository) GetVersion(ctx context.Context, id string, version int) (*models.Workflow, error) {
	workflow, err := wr.store.read(workflowKey(id, version))
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.NewRepositoryError("GetVersion", "workflow", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewRepositoryError("GetVersion", "workflow", id, err)
	}

	return workflow, nil
}

// ListActiveByTriggerEvent returns the latest active version of every workflow
// with a trigger on the given event type.
func (wr *WorkflowRepository) ListActiveByTriggerEvent(ctx context.Context, eventType string) ([]*models.Workflow, error) {
	workflows, err := wr.store.list()
	if err != nil {
		return nil, persistence.NewRepositoryError("ListActiveByTriggerEvent", "workflow", eventType, err)
	}

	latest := make(map[string]*models.Workflow)

	for _, workflow := range workflows {
		if workflow.DeletedAt != nil || workflow.Status != models.WorkflowStatusActive {
			continue
		}

		if current, ok := latest[workflow.ID]; ok && current.Version >= workflow.Version {
			continue
		}

		latest[workflow.ID] = workflow
	}

	var matched []*models.Workflow

	for _, workflow := range latest {
		for _, trigger := range workflow.Triggers {
			if trigger.EventType == eventType {
				matched = append(matched, workflow)

				break
			}
		}
	}

	return matched, nil
}

// Delete soft deletes every version of the workflow.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	workflows, err := wr.store.list()
	if err != nil {
		return persistence.NewRepositoryError("Delete", "workflow", id, err)
	}

	now := time.Now().UTC()
	found := false

	for _, workflow := range workflows {
		if workflow.ID != id {
			continue
		}

		found = true
		workflow.DeletedAt = &now

		if err := wr.store.write(workflowKey(workflow.ID, workflow.Version), workflow); err != nil {
			return persistence.NewRepositoryError("Delete", "workflow", id, err)
		}
	}

	if !found {
		return persistence.NewRepositoryError("Delete", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}
