// Package retry classifies action failures and computes backoff decisions for
// the execution state machine.
package retry

import (
	"strings"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/models"
)

// Policy applies a RetryStrategy: exponential backoff capped at MaxDelay, and
// category-based retryability.
type Policy struct {
	strategy models.RetryStrategy
}

// NewPolicy creates a policy for the given strategy.
func NewPolicy(strategy models.RetryStrategy) *Policy {
	return &Policy{strategy: strategy}
}

// NewDefaultPolicy creates a policy with the platform default strategy.
func NewDefaultPolicy() *Policy {
	return NewPolicy(models.DefaultRetryStrategy())
}

// Strategy returns the strategy the policy applies.
func (p *Policy) Strategy() models.RetryStrategy {
	return p.strategy
}

// CalculateDelay returns min(base * 2^(attempt-1), max). Attempts are
// 1-based; out-of-range attempts clamp to the base delay.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.strategy.BaseDelay

	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.strategy.MaxDelay {
			return p.strategy.MaxDelay
		}
	}

	if delay > p.strategy.MaxDelay {
		return p.strategy.MaxDelay
	}

	return delay
}

// ShouldRetry reports whether another attempt is warranted: false once the
// attempt budget is spent, otherwise decided by the error category.
func (p *Policy) ShouldRetry(attempt int, category journeyerr.ErrorCategory) bool {
	if attempt >= p.strategy.MaxAttempts {
		return false
	}

	return category.Retryable()
}

// CategorizeError maps free-text error signals onto a category. Unrecognized
// text defaults to the network category so transient failures are not
// silently dropped.
func CategorizeError(message string) journeyerr.ErrorCategory {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "validation"):
		return journeyerr.CategoryValidation
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "forbidden"):
		return journeyerr.CategoryAuthorization
	case strings.Contains(lower, "auth"):
		return journeyerr.CategoryAuthentication
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many requests"):
		return journeyerr.CategoryRateLimit
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return journeyerr.CategoryTimeout
	case strings.Contains(lower, "5xx"), strings.Contains(lower, "server error"),
		strings.Contains(lower, "internal error"), strings.Contains(lower, "bad gateway"),
		strings.Contains(lower, "service unavailable"):
		return journeyerr.CategoryServerError
	default:
		return journeyerr.CategoryNetwork
	}
}
