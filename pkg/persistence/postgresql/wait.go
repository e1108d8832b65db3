package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

// WaitRepository handles wait step execution database operations.
type WaitRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWaitRepository creates a new wait repository.
func NewWaitRepository(db *sql.DB, logger *slog.Logger) *WaitRepository {
	return &WaitRepository{db: db, logger: logger}
}

const waitColumns = `
	id, execution_id, step_id, wait_type, status, scheduled_at,
	event_type, event_timeout_at, timeout_action, resumed_by,
	created_at, updated_at, ended_at
`

// Save upserts the wait step execution.
func (wr *WaitRepository) Save(ctx context.Context, wait *models.WaitStepExecution) error {
	query := `
		INSERT INTO wait_steps (` + waitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			scheduled_at = EXCLUDED.scheduled_at,
			event_timeout_at = EXCLUDED.event_timeout_at,
			timeout_action = EXCLUDED.timeout_action,
			resumed_by = EXCLUDED.resumed_by,
			updated_at = EXCLUDED.updated_at,
			ended_at = EXCLUDED.ended_at
	`

	_, err := wr.db.ExecContext(ctx, query,
		wait.ID,
		wait.ExecutionID,
		wait.StepID,
		wait.WaitType,
		wait.Status,
		wait.ScheduledAt,
		wait.EventType,
		wait.EventTimeoutAt,
		wait.TimeoutAction,
		wait.ResumedBy,
		wait.CreatedAt,
		wait.UpdatedAt,
		wait.EndedAt,
	)
	if err != nil {
		return persistence.NewRepositoryError("Save", "wait", wait.ID, err)
	}

	return nil
}

// GetByID retrieves a wait step execution by its ID.
func (wr *WaitRepository) GetByID(ctx context.Context, id string) (*models.WaitStepExecution, error) {
	query := `SELECT ` + waitColumns + ` FROM wait_steps WHERE id = $1`

	wait, err := wr.scanWait(wr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetByID", "wait", id, persistence.ErrWaitNotFound)
		}

		return nil, persistence.NewRepositoryError("GetByID", "wait", id, err)
	}

	return wait, nil
}

// ListDue returns scheduled time waits whose resume time has passed.
func (wr *WaitRepository) ListDue(ctx context.Context, now time.Time) ([]*models.WaitStepExecution, error) {
	query := `
		SELECT ` + waitColumns + `
		FROM wait_steps
		WHERE status = 'scheduled' AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at
	`

	return wr.listWaits(ctx, "ListDue", query, now)
}

// ListTimedOut returns scheduled event waits whose timeout has passed.
func (wr *WaitRepository) ListTimedOut(ctx context.Context, now time.Time) ([]*models.WaitStepExecution, error) {
	query := `
		SELECT ` + waitColumns + `
		FROM wait_steps
		WHERE status = 'scheduled' AND event_timeout_at IS NOT NULL AND event_timeout_at <= $1
		ORDER BY event_timeout_at
	`

	return wr.listWaits(ctx, "ListTimedOut", query, now)
}

// ListByExecution retrieves all wait step executions of one execution.
func (wr *WaitRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.WaitStepExecution, error) {
	query := `
		SELECT ` + waitColumns + `
		FROM wait_steps
		WHERE execution_id = $1
		ORDER BY created_at
	`

	return wr.listWaits(ctx, "ListByExecution", query, executionID)
}

func (wr *WaitRepository) listWaits(ctx context.Context, op, query string, args ...any) ([]*models.WaitStepExecution, error) {
	rows, err := wr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewRepositoryError(op, "wait", "", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			wr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var waits []*models.WaitStepExecution

	for rows.Next() {
		wait, err := wr.scanWait(rows)
		if err != nil {
			return nil, persistence.NewRepositoryError(op, "wait", "", err)
		}

		waits = append(waits, wait)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewRepositoryError(op, "wait", "", err)
	}

	return waits, nil
}

// scanWait scans a wait step execution from a database row.
func (wr *WaitRepository) scanWait(scanner interface {
	Scan(dest ...any) error
}) (*models.WaitStepExecution, error) {
	var wait models.WaitStepExecution

	err := scanner.Scan(
		&wait.ID,
		&wait.ExecutionID,
		&wait.StepID,
		&wait.WaitType,
		&wait.Status,
		&wait.ScheduledAt,
		&wait.EventType,
		&wait.EventTimeoutAt,
		&wait.TimeoutAction,
		&wait.ResumedBy,
		&wait.CreatedAt,
		&wait.UpdatedAt,
		&wait.EndedAt,
	)
	if err != nil {
		return nil, err
	}

	return &wait, nil
}
