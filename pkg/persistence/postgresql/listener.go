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

// ListenerRepository handles event listener database operations.
type ListenerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewListenerRepository creates a new listener repository.
func NewListenerRepository(db *sql.DB, logger *slog.Logger) *ListenerRepository {
	return &ListenerRepository{db: db, logger: logger}
}

const listenerColumns = `
	id, kind, execution_id, wait_id, event_type, correlation_id,
	filters, status, expires_at, created_at, updated_at
`

// Save upserts the event listener.
func (lr *ListenerRepository) Save(ctx context.Context, listener *models.EventListener) error {
	var filtersJSON []byte

	if listener.Filters != nil {
		var err error

		filtersJSON, err = json.Marshal(listener.Filters)
		if err != nil {
			return persistence.NewRepositoryError("Save", "listener", listener.ID, fmt.Errorf("failed to marshal filters: %w", err))
		}
	}

	query := `
		INSERT INTO event_listeners (` + listenerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := lr.db.ExecContext(ctx, query,
		listener.ID,
		listener.Kind,
		listener.ExecutionID,
		listener.WaitID,
		listener.EventType,
		listener.CorrelationID,
		filtersJSON,
		listener.Status,
		listener.ExpiresAt,
		listener.CreatedAt,
		listener.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRepositoryError("Save", "listener", listener.ID, err)
	}

	return nil
}

// GetByID retrieves an event listener by its ID.
func (lr *ListenerRepository) GetByID(ctx context.Context, id string) (*models.EventListener, error) {
	query := `SELECT ` + listenerColumns + ` FROM event_listeners WHERE id = $1`

	listener, err := lr.scanListener(lr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetByID", "listener", id, persistence.ErrListenerNotFound)
		}

		return nil, persistence.NewRepositoryError("GetByID", "listener", id, err)
	}

	return listener, nil
}

// ListActiveByEvent returns active, unexpired listeners matching the event
// type and correlation ID.
func (lr *ListenerRepository) ListActiveByEvent(ctx context.Context, eventType, correlationID string) ([]*models.EventListener, error) {
	query := `
		SELECT ` + listenerColumns + `
		FROM event_listeners
		WHERE event_type = $1 AND correlation_id = $2 AND status = 'active'
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at
	`

	return lr.listListeners(ctx, "ListActiveByEvent", query, eventType, correlationID)
}

// ListByExecution retrieves all listeners of one execution.
func (lr *ListenerRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.EventListener, error) {
	query := `
		SELECT ` + listenerColumns + `
		FROM event_listeners
		WHERE execution_id = $1
		ORDER BY created_at
	`

	return lr.listListeners(ctx, "ListByExecution", query, executionID)
}

func (lr *ListenerRepository) listListeners(ctx context.Context, op, query string, args ...any) ([]*models.EventListener, error) {
	rows, err := lr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewRepositoryError(op, "listener", "", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			lr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var listeners []*models.EventListener

	for rows.Next() {
		listener, err := lr.scanListener(rows)
		if err != nil {
			return nil, persistence.NewRepositoryError(op, "listener", "", err)
		}

		listeners = append(listeners, listener)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewRepositoryError(op, "listener", "", err)
	}

	return listeners, nil
}

// scanListener scans an event listener from a database row.
func (lr *ListenerRepository) scanListener(scanner interface {
	Scan(dest ...any) error
}) (*models.EventListener, error) {
	var (
		listener    models.EventListener
		filtersJSON []byte
	)

	err := scanner.Scan(
		&listener.ID,
		&listener.Kind,
		&listener.ExecutionID,
		&listener.WaitID,
		&listener.EventType,
		&listener.CorrelationID,
		&filtersJSON,
		&listener.Status,
		&listener.ExpiresAt,
		&listener.CreatedAt,
		&listener.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(filtersJSON) > 0 {
		if err := json.Unmarshal(filtersJSON, &listener.Filters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal filters: %w", err)
		}
	}

	return &listener, nil
}
