package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

const uniqueViolationCode = "23505"

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id, workflow_id, workflow_version, contact_id, account_id, status,
	current_step_index, current_node_id, retry_count, error_message, converted,
	trigger_data, metadata, version, created_at, updated_at, started_at, completed_at
`

// Create inserts a new execution; it fails when the ID already exists.
func (er *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	triggerDataJSON, metadataJSON, err := marshalExecutionJSON(execution)
	if err != nil {
		return persistence.NewRepositoryError("Create", "execution", execution.ID, err)
	}

	execution.Version = 1

	query := `
		INSERT INTO executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err = er.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.WorkflowVersion,
		execution.ContactID,
		execution.AccountID,
		execution.Status,
		execution.CurrentStepIndex,
		execution.CurrentNodeID,
		execution.RetryCount,
		execution.ErrorMessage,
		execution.Converted,
		triggerDataJSON,
		metadataJSON,
		execution.Version,
		execution.CreatedAt,
		execution.UpdatedAt,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return persistence.NewRepositoryError("Create", "execution", execution.ID, persistence.ErrExecutionAlreadyExists)
		}

		return persistence.NewRepositoryError("Create", "execution", execution.ID, err)
	}

	return nil
}

// Save updates the execution only if the stored version still equals
// expectedVersion, then increments the version. A stale version fails with
// journeyerr.ErrVersionConflict and changes nothing.
func (er *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution, expectedVersion int) error {
	triggerDataJSON, metadataJSON, err := marshalExecutionJSON(execution)
	if err != nil {
		return persistence.NewRepositoryError("Save", "execution", execution.ID, err)
	}

	query := `
		UPDATE executions SET
			status = $2,
			current_step_index = $3,
			current_node_id = $4,
			retry_count = $5,
			error_message = $6,
			converted = $7,
			trigger_data = $8,
			metadata = $9,
			version = $10,
			updated_at = $11,
			started_at = $12,
			completed_at = $13
		WHERE id = $1 AND version = $14
	`

	now := time.Now().UTC()

	result, err := er.db.ExecContext(ctx, query,
		execution.ID,
		execution.Status,
		execution.CurrentStepIndex,
		execution.CurrentNodeID,
		execution.RetryCount,
		execution.ErrorMessage,
		execution.Converted,
		triggerDataJSON,
		metadataJSON,
		expectedVersion+1,
		now,
		execution.StartedAt,
		execution.CompletedAt,
		expectedVersion,
	)
	if err != nil {
		return persistence.NewRepositoryError("Save", "execution", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRepositoryError("Save", "execution", execution.ID, err)
	}

	if affected == 0 {
		// Zero rows means stale version or missing row; tell them apart.
		var exists bool

		err := er.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM executions WHERE id = $1)", execution.ID).Scan(&exists)
		if err != nil {
			return persistence.NewRepositoryError("Save", "execution", execution.ID, err)
		}

		if !exists {
			return persistence.NewRepositoryError("Save", "execution", execution.ID, persistence.ErrExecutionNotFound)
		}

		return persistence.NewRepositoryError("Save", "execution", execution.ID, journeyerr.ErrVersionConflict)
	}

	execution.Version = expectedVersion + 1
	execution.UpdatedAt = now

	return nil
}

// GetByID retrieves an execution by its ID.
func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewRepositoryError("GetByID", "execution", id, err)
	}

	return execution, nil
}

// ListByStatus retrieves all executions with the given status.
func (er *ExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE status = $1
		ORDER BY created_at
	`

	rows, err := er.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, persistence.NewRepositoryError("ListByStatus", "execution", string(status), err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			er.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var executions []*models.WorkflowExecution

	for rows.Next() {
		execution, err := er.scanExecution(rows)
		if err != nil {
			return nil, persistence.NewRepositoryError("ListByStatus", "execution", string(status), err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewRepositoryError("ListByStatus", "execution", string(status), err)
	}

	return executions, nil
}

// FindOpenByWorkflowAndContact returns a non-terminal execution of the
// workflow for the contact, or nil when none exists.
func (er *ExecutionRepository) FindOpenByWorkflowAndContact(ctx context.Context, workflowID, contactID string) (*models.WorkflowExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE workflow_id = $1 AND contact_id = $2
		  AND status NOT IN ('completed', 'failed', 'cancelled')
		ORDER BY created_at DESC
		LIMIT 1
	`

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, workflowID, contactID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewRepositoryError("FindOpenByWorkflowAndContact", "execution", workflowID, err)
	}

	return execution, nil
}

// scanExecution scans an execution from a database row.
func (er *ExecutionRepository) scanExecution(scanner interface {
	Scan(dest ...any) error
}) (*models.WorkflowExecution, error) {
	var (
		execution                     models.WorkflowExecution
		triggerDataJSON, metadataJSON []byte
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.WorkflowVersion,
		&execution.ContactID,
		&execution.AccountID,
		&execution.Status,
		&execution.CurrentStepIndex,
		&execution.CurrentNodeID,
		&execution.RetryCount,
		&execution.ErrorMessage,
		&execution.Converted,
		&triggerDataJSON,
		&metadataJSON,
		&execution.Version,
		&execution.CreatedAt,
		&execution.UpdatedAt,
		&execution.StartedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(triggerDataJSON) > 0 {
		if err := json.Unmarshal(triggerDataJSON, &execution.TriggerData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
		}
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &execution.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &execution, nil
}

func marshalExecutionJSON(execution *models.WorkflowExecution) ([]byte, []byte, error) {
	triggerDataJSON, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	metadataJSON, err := json.Marshal(execution.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return triggerDataJSON, metadataJSON, nil
}
