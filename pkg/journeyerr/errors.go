// Package journeyerr provides standardized error types for workflow execution.
package journeyerr

import (
	"errors"
	"fmt"
)

// Standard engine error types that all components should use.
var (
	// ErrWorkflowNotActive indicates an execution was requested for a workflow
	// that is not in an executable state (draft, paused, archived).
	ErrWorkflowNotActive = errors.New("workflow is not active")

	// ErrContactOptedOut indicates the enrolled contact has opted out and must
	// not be processed further.
	ErrContactOptedOut = errors.New("contact has opted out")

	// ErrExecutorNotRegistered indicates an action type has no registered executor.
	ErrExecutorNotRegistered = errors.New("action executor not registered")

	// ErrEvaluatorNotRegistered indicates a condition type has no registered evaluator.
	ErrEvaluatorNotRegistered = errors.New("condition evaluator not registered")

	// ErrVersionConflict indicates an optimistic-concurrency save targeted a stale
	// version. The caller must reload and retry the whole operation.
	ErrVersionConflict = errors.New("execution version conflict")

	// ErrInvalidTransition indicates an illegal status change was requested.
	// This is always a caller bug and is never retried.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ConfigurationError indicates missing or structurally invalid action/condition
// configuration. Fatal: never retried, surfaced immediately.
type ConfigurationError struct {
	Component string // Component that rejected the config (e.g. "webhook", "field_condition")
	Field     string // Offending config field if known
	Err       error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s (field %q): %v", e.Component, e.Field, e.Err)
	}

	return fmt.Sprintf("invalid configuration for %s: %v", e.Component, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a configuration error for a component field.
func NewConfigurationError(component, field string, err error) *ConfigurationError {
	return &ConfigurationError{Component: component, Field: field, Err: err}
}

// ValidationError indicates an invariant violation on entity construction,
// rejected before persistence.
type ValidationError struct {
	Entity string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %v", e.Entity, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StateTransitionError wraps ErrInvalidTransition with the offending transition.
type StateTransitionError struct {
	Entity string // "execution" or "wait"
	ID     string
	From   string
	To     string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for %s %s: %s -> %s", e.Entity, e.ID, e.From, e.To)
}

func (e *StateTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NewStateTransitionError creates a transition error for an entity.
func NewStateTransitionError(entity, id, from, to string) *StateTransitionError {
	return &StateTransitionError{Entity: entity, ID: id, From: from, To: to}
}

// ErrorCategory classifies an execution failure for retry decisions.
type ErrorCategory string

const (
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryRateLimit      ErrorCategory = "rate_limit"
	CategoryServerError    ErrorCategory = "server_error"
	CategoryNetwork        ErrorCategory = "network"
	CategoryValidation     ErrorCategory = "validation"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryAuthorization  ErrorCategory = "authorization"
)

// Retryable reports whether failures in this category are worth retrying.
func (c ErrorCategory) Retryable() bool {
	switch c {
	case CategoryTimeout, CategoryRateLimit, CategoryServerError, CategoryNetwork:
		return true
	case CategoryValidation, CategoryAuthentication, CategoryAuthorization:
		return false
	default:
		return false
	}
}

// ExecutionError is a categorized step-execution failure. Transient categories
// are retried per the retry policy; permanent categories fail the execution
// immediately.
type ExecutionError struct {
	Category ErrorCategory
	Message  string
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure should go through the retry policy.
func (e *ExecutionError) Transient() bool {
	return e.Category.Retryable()
}

// NewTransientError creates a retryable execution error.
func NewTransientError(category ErrorCategory, message string, err error) *ExecutionError {
	return &ExecutionError{Category: category, Message: message, Err: err}
}

// NewPermanentError creates a non-retryable execution error.
func NewPermanentError(category ErrorCategory, message string, err error) *ExecutionError {
	return &ExecutionError{Category: category, Message: message, Err: err}
}

// IsVersionConflict checks if an error indicates an optimistic-concurrency conflict.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsInvalidTransition checks if an error indicates an illegal status change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
