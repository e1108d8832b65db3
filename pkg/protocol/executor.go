// Package protocol defines the contracts between the execution engine and its
// pluggable collaborators: action executors, condition evaluators, downstream
// business services and the external job scheduler.
package protocol

import (
	"context"
	"time"
)

// ActionContext carries everything an executor needs to perform one action.
type ActionContext struct {
	ExecutionID string         `json:"execution_id"`
	ContactID   string         `json:"contact_id"`
	AccountID   string         `json:"account_id"`
	ActionID    string         `json:"action_id"`
	Config      map[string]any `json:"config"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ExecutionResult reports the structured outcome of one action. Expected
// failures flow through Success/Error, never through a returned error;
// returned errors are reserved for programming and configuration mistakes.
type ExecutionResult struct {
	Success           bool           `json:"success"`
	Data              map[string]any `json:"data,omitempty"`
	Error             string         `json:"error,omitempty"`
	DurationMs        int64          `json:"duration_ms"`
	ShouldRetry       bool           `json:"should_retry"`
	RetryDelaySeconds int            `json:"retry_delay_seconds,omitempty"`
}

// SuccessResult builds a successful result with response data.
func SuccessResult(data map[string]any, duration time.Duration) ExecutionResult {
	return ExecutionResult{
		Success:    true,
		Data:       data,
		DurationMs: duration.Milliseconds(),
	}
}

// FailureResult builds an expected-failure result.
func FailureResult(errMsg string, shouldRetry bool, duration time.Duration) ExecutionResult {
	return ExecutionResult{
		Success:     false,
		Error:       errMsg,
		DurationMs:  duration.Milliseconds(),
		ShouldRetry: shouldRetry,
	}
}

// ActionExecutor is the strategy contract for one action type. Execute honors
// ctx cancellation and timeouts itself; the engine does not preempt in-flight
// calls.
type ActionExecutor interface {
	Execute(ctx context.Context, actionCtx ActionContext) (ExecutionResult, error)
}

// ActionExecutorFactory validates raw step config into a typed executor.
type ActionExecutorFactory interface {
	// ID is the action type tag this factory serves (e.g. "send_email").
	ID() string
	// Create validates config and returns an executor bound to it. Invalid
	// config returns a ConfigurationError.
	Create(config map[string]any) (ActionExecutor, error)
	// Schema returns the JSON schema the config must satisfy at save time.
	Schema() map[string]any
}
