package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations. Workflows
// are stored per (id, version).
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id, version, account_id, name, description, status,
	triggers, goal, steps, retry, created_at, updated_at, deleted_at
`

// Save upserts the workflow under its id and version.
func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	triggersJSON, err := json.Marshal(workflow.Triggers)
	if err != nil {
		return persistence.NewRepositoryError("Save", "workflow", workflow.ID, fmt.Errorf("failed to marshal triggers: %w", err))
	}

	stepsJSON, err := json.Marshal(workflow.Steps)
	if err != nil {
		return persistence.NewRepositoryError("Save", "workflow", workflow.ID, fmt.Errorf("failed to marshal steps: %w", err))
	}

	retryJSON, err := json.Marshal(workflow.Retry)
	if err != nil {
		return persistence.NewRepositoryError("Save", "workflow", workflow.ID, fmt.Errorf("failed to marshal retry: %w", err))
	}

	var goalJSON []byte

	if workflow.Goal != nil {
		goalJSON, err = json.Marshal(workflow.Goal)
		if err != nil {
			return persistence.NewRepositoryError("Save", "workflow", workflow.ID, fmt.Errorf("failed to marshal goal: %w", err))
		}
	}

	query := `
		INSERT INTO workflows (
			id, version, account_id, name, description, status,
			triggers, goal, steps, retry, created_at, updated_at, deleted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id, version) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			triggers = EXCLUDED.triggers,
			goal = EXCLUDED.goal,
			steps = EXCLUDED.steps,
			retry = EXCLUDED.retry,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = wr.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Version,
		workflow.AccountID,
		workflow.Name,
		workflow.Description,
		workflow.Status,
		triggersJSON,
		goalJSON,
		stepsJSON,
		retryJSON,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.DeletedAt,
	)
	if err != nil {
		return persistence.NewRepositoryError("Save", "workflow", workflow.ID, err)
	}

	return nil
}

// GetByID returns the highest non-deleted version of the workflow.
func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
		ORDER BY version DESC
		LIMIT 1
	`

	workflow, err := wr.scanWorkflow(wr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewRepositoryError("GetByID", "workflow", id, err)
	}

	return workflow, nil
}

// GetVersion returns one specific workflow version, deleted or not.
func (wr *WorkflowRepository) GetVersion(ctx context.Context, id string, version int) (*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND version = $2
	`

	workflow, err := wr.scanWorkflow(wr.db.QueryRowContext(ctx, query, id, version))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetVersion", "workflow", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewRepositoryError("GetVersion", "workflow", id, err)
	}

	return workflow, nil
}

// ListActiveByTriggerEvent returns the latest active version of every workflow
// with a trigger on the given event type.
func (wr *WorkflowRepository) ListActiveByTriggerEvent(ctx context.Context, eventType string) ([]*models.Workflow, error) {
	query := `
		SELECT DISTINCT ON (id) ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
		  AND status = 'active'
		  AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(triggers) AS wt
			WHERE wt->>'event_type' = $1
		  )
		ORDER BY id, version DESC
	`

	rows, err := wr.db.QueryContext(ctx, query, eventType)
	if err != nil {
		return nil, persistence.NewRepositoryError("ListActiveByTriggerEvent", "workflow", eventType, err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			wr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := wr.scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewRepositoryError("ListActiveByTriggerEvent", "workflow", eventType, err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewRepositoryError("ListActiveByTriggerEvent", "workflow", eventType, err)
	}

	return workflows, nil
}

// Delete soft deletes every version of the workflow.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := wr.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return persistence.NewRepositoryError("Delete", "workflow", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRepositoryError("Delete", "workflow", id, err)
	}

	if affected == 0 {
		return persistence.NewRepositoryError("Delete", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// scanWorkflow scans a workflow from a database row.
func (wr *WorkflowRepository) scanWorkflow(scanner interface {
	Scan(dest ...any) error
}) (*models.Workflow, error) {
	var (
		workflow                                    models.Workflow
		triggersJSON, goalJSON, stepsJSON, retryJSON []byte
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Version,
		&workflow.AccountID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Status,
		&triggersJSON,
		&goalJSON,
		&stepsJSON,
		&retryJSON,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(triggersJSON, &workflow.Triggers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal triggers: %w", err)
	}

	if err := json.Unmarshal(stepsJSON, &workflow.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	if err := json.Unmarshal(retryJSON, &workflow.Retry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal retry: %w", err)
	}

	if len(goalJSON) > 0 {
		if err := json.Unmarshal(goalJSON, &workflow.Goal); err != nil {
			return nil, fmt.Errorf("failed to unmarshal goal: %w", err)
		}
	}

	return &workflow, nil
}
