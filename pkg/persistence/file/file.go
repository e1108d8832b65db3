// Package file provides file-based persistence for workflows, executions,
// waits, listeners and contacts. It suits development and single-process
// deployments; production runs on the postgresql package.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/driftline/journey/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	waitRepo      *WaitRepository
	listenerRepo  *ListenerRepository
	contactRepo   *ContactRepository
	logRepo       *ExecutionLogRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is stripped so database-URL style config works.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
		waitRepo:      NewWaitRepository(cleanRoot),
		listenerRepo:  NewListenerRepository(cleanRoot),
		contactRepo:   NewContactRepository(cleanRoot),
		logRepo:       NewExecutionLogRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file persistence there is none.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) WaitRepository() persistence.WaitRepository {
	return fp.waitRepo
}

func (fp *Persistence) ListenerRepository() persistence.ListenerRepository {
	return fp.listenerRepo
}

func (fp *Persistence) ContactRepository() persistence.ContactRepository {
	return fp.contactRepo
}

func (fp *Persistence) ExecutionLogRepository() persistence.ExecutionLogRepository {
	return fp.logRepo
}
