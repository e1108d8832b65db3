package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/models"
)

func TestCalculateDelayExponentialBackoff(t *testing.T) {
	policy := NewPolicy(models.RetryStrategy{
		MaxAttempts: 5,
		BaseDelay:   time.Minute,
		MaxDelay:    time.Hour,
	})

	assert.Equal(t, time.Minute, policy.CalculateDelay(1))
	assert.Equal(t, 2*time.Minute, policy.CalculateDelay(2))
	assert.Equal(t, 4*time.Minute, policy.CalculateDelay(3))
	assert.Equal(t, 8*time.Minute, policy.CalculateDelay(4))
}

func TestCalculateDelayCapsAtMax(t *testing.T) {
	policy := NewPolicy(models.RetryStrategy{
		MaxAttempts: 10,
		BaseDelay:   time.Minute,
		MaxDelay:    5 * time.Minute,
	})

	assert.Equal(t, 5*time.Minute, policy.CalculateDelay(4))
	assert.Equal(t, 5*time.Minute, policy.CalculateDelay(20))
}

func TestCalculateDelayClampsAttempt(t *testing.T) {
	policy := NewDefaultPolicy()

	assert.Equal(t, policy.CalculateDelay(1), policy.CalculateDelay(0))
	assert.Equal(t, policy.CalculateDelay(1), policy.CalculateDelay(-3))
}

func TestShouldRetry(t *testing.T) {
	policy := NewPolicy(models.RetryStrategy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute})

	assert.True(t, policy.ShouldRetry(1, journeyerr.CategoryNetwork))
	assert.True(t, policy.ShouldRetry(2, journeyerr.CategoryTimeout))
	assert.False(t, policy.ShouldRetry(3, journeyerr.CategoryNetwork), "budget spent")
	assert.False(t, policy.ShouldRetry(1, journeyerr.CategoryValidation), "validation never retries")
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		message  string
		expected journeyerr.ErrorCategory
	}{
		{"validation failed on field x", journeyerr.CategoryValidation},
		{"401 Unauthorized", journeyerr.CategoryAuthorization},
		{"auth token expired", journeyerr.CategoryAuthentication},
		{"rate limit exceeded", journeyerr.CategoryRateLimit},
		{"request timed out", journeyerr.CategoryTimeout},
		{"upstream 5xx: bad gateway", journeyerr.CategoryServerError},
		{"connection refused", journeyerr.CategoryNetwork},
		{"something odd", journeyerr.CategoryNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.message))
		})
	}
}
