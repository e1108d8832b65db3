package file

import (
	"context"
	"sort"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

// ExecutionLogRepository stores step logs one file per log entry.
type ExecutionLogRepository struct {
	store *store[models.ExecutionLog]
}

// NewExecutionLogRepository creates a file-backed execution log repository.
func NewExecutionLogRepository(root string) *ExecutionLogRepository {
	return &ExecutionLogRepository{store: newStore[models.ExecutionLog](root, "execution_logs")}
}

// Append writes the log entry. Entries are never updated except to finish an
// open entry, which overwrites the same file.
func (lr *ExecutionLogRepository) Append(ctx context.Context, log *models.ExecutionLog) error {
	if err := lr.store.write(log.ID, log); err != nil {
		return persistence.NewRepositoryError("Append", "execution_log", log.ID, err)
	}

	return nil
}

// ListByExecution retrieves the step logs of one execution in start order.
func (lr *ExecutionLogRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	logs, err := lr.store.list()
	if err != nil {
		return nil, persistence.NewRepositoryError("ListByExecution", "execution_log", executionID, err)
	}

	var matched []*models.ExecutionLog

	for _, log := range logs {
		if log.ExecutionID == executionID {
			matched = append(matched, log)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.Before(matched[j].StartedAt)
	})

	return matched, nil
}
