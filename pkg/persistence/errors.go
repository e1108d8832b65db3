// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionAlreadyExists indicates an execution with the same identifier already exists.
	ErrExecutionAlreadyExists = errors.New("execution already exists")

	// ErrWaitNotFound indicates a wait step execution was not found.
	ErrWaitNotFound = errors.New("wait step execution not found")

	// ErrListenerNotFound indicates an event listener was not found.
	ErrListenerNotFound = errors.New("event listener not found")

	// ErrContactNotFound indicates a contact snapshot was not found.
	ErrContactNotFound = errors.New("contact not found")
)

// RepositoryError wraps repository failures with the operation and target.
type RepositoryError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save")
	Entity string // Entity kind (e.g., "execution", "wait")
	ID     string // Entity ID if applicable
	Err    error  // Underlying error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for repository errors.
func (e *RepositoryError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRepositoryError creates a repository error with context.
func NewRepositoryError(op, entity, id string, err error) *RepositoryError {
	return &RepositoryError{
		Op:     op,
		Entity: entity,
		ID:     id,
		Err:    err,
	}
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrWaitNotFound) ||
		errors.Is(err, ErrListenerNotFound) ||
		errors.Is(err, ErrContactNotFound)
}
