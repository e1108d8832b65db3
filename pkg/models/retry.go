package models

import "time"

// RetryStrategy is a pure description of the retry behavior for failed
// actions: attempt number -> delay, and an attempt ceiling. MaxAttempts is
// the single source of truth for both step retries and execution retries.
type RetryStrategy struct {
	MaxAttempts int           `json:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `json:"base_delay"   validate:"gt=0"`
	MaxDelay    time.Duration `json:"max_delay"    validate:"gt=0"`
}

// DefaultRetryStrategy matches the platform defaults: three attempts with
// exponential backoff from one minute, capped at one hour.
func DefaultRetryStrategy() RetryStrategy {
	return RetryStrategy{
		MaxAttempts: 3,
		BaseDelay:   time.Minute,
		MaxDelay:    time.Hour,
	}
}
