package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

// ExecutionLogRepository handles step log database operations.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(db *sql.DB, logger *slog.Logger) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, logger: logger}
}

const executionLogColumns = `
	id, execution_id, step_id, action_type, config_snapshot, status,
	attempt, duration_ms, error_message, response, started_at, finished_at
`

// Append upserts the log entry. Finishing an open entry updates the same row;
// entries are never otherwise modified.
func (lr *ExecutionLogRepository) Append(ctx context.Context, log *models.ExecutionLog) error {
	configJSON, err := json.Marshal(log.ConfigSnapshot)
	if err != nil {
		return persistence.NewRepositoryError("Append", "execution_log", log.ID, fmt.Errorf("failed to marshal config snapshot: %w", err))
	}

	responseJSON, err := json.Marshal(log.Response)
	if err != nil {
		return persistence.NewRepositoryError("Append", "execution_log", log.ID, fmt.Errorf("failed to marshal response: %w", err))
	}

	query := `
		INSERT INTO execution_logs (` + executionLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			duration_ms = EXCLUDED.duration_ms,
			error_message = EXCLUDED.error_message,
			response = EXCLUDED.response,
			finished_at = EXCLUDED.finished_at
	`

	_, err = lr.db.ExecContext(ctx, query,
		log.ID,
		log.ExecutionID,
		log.StepID,
		log.ActionType,
		configJSON,
		log.Status,
		log.Attempt,
		log.DurationMs,
		log.ErrorMessage,
		responseJSON,
		log.StartedAt,
		log.FinishedAt,
	)
	if err != nil {
		return persistence.NewRepositoryError("Append", "execution_log", log.ID, err)
	}

	return nil
}

// ListByExecution retrieves the step logs of one execution in start order.
func (lr *ExecutionLogRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	query := `
		SELECT ` + executionLogColumns + `
		FROM execution_logs
		WHERE execution_id = $1
		ORDER BY started_at
	`

	rows, err := lr.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, persistence.NewRepositoryError("ListByExecution", "execution_log", executionID, err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			lr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var logs []*models.ExecutionLog

	for rows.Next() {
		var (
			log                      models.ExecutionLog
			configJSON, responseJSON []byte
		)

		err := rows.Scan(
			&log.ID,
			&log.ExecutionID,
			&log.StepID,
			&log.ActionType,
			&configJSON,
			&log.Status,
			&log.Attempt,
			&log.DurationMs,
			&log.ErrorMessage,
			&responseJSON,
			&log.StartedAt,
			&log.FinishedAt,
		)
		if err != nil {
			return nil, persistence.NewRepositoryError("ListByExecution", "execution_log", executionID, err)
		}

		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &log.ConfigSnapshot); err != nil {
				return nil, persistence.NewRepositoryError("ListByExecution", "execution_log", executionID,
					fmt.Errorf("failed to unmarshal config snapshot: %w", err))
			}
		}

		if len(responseJSON) > 0 {
			if err := json.Unmarshal(responseJSON, &log.Response); err != nil {
				return nil, persistence.NewRepositoryError("ListByExecution", "execution_log", executionID,
					fmt.Errorf("failed to unmarshal response: %w", err))
			}
		}

		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewRepositoryError("ListByExecution", "execution_log", executionID, err)
	}

	return logs, nil
}
