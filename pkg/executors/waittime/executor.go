// Package waittime provides the wait_time action executor. It computes the
// resume time and succeeds immediately; the state machine converts the result
// into a scheduled wait.
package waittime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
)

// ActionType is the registered type tag. The engine matches on it to convert
// the executor's resume_at result into a scheduled wait.
const ActionType = "wait_time"

// ResumeAtKey is the result data key carrying the computed resume time.
const ResumeAtKey = "resume_at"

// unitRange bounds the accepted duration per unit.
type unitRange struct {
	min, max int
	d        time.Duration
}

var unitRanges = map[string]unitRange{
	"minutes": {1, 59, time.Minute},
	"hours":   {1, 23, time.Hour},
	"days":    {1, 30, 24 * time.Hour},
	"weeks":   {1, 12, 7 * 24 * time.Hour},
}

// Executor computes resume_at = now + duration for a fixed-time wait.
type Executor struct {
	duration int
	unit     string
	now      func() time.Time
}

// NewExecutor validates config into a wait-time executor. Out-of-range
// durations are configuration errors.
func NewExecutor(config map[string]any) (*Executor, error) {
	rawDuration, ok := config["duration"].(float64)
	if !ok {
		return nil, journeyerr.NewConfigurationError(ActionType, "duration",
			errors.New("missing required field 'duration'"))
	}

	unit, ok := config["unit"].(string)
	if !ok {
		return nil, journeyerr.NewConfigurationError(ActionType, "unit",
			errors.New("missing required field 'unit'"))
	}

	bounds, ok := unitRanges[unit]
	if !ok {
		return nil, journeyerr.NewConfigurationError(ActionType, "unit",
			fmt.Errorf("unknown unit %q", unit))
	}

	duration := int(rawDuration)
	if duration < bounds.min || duration > bounds.max {
		return nil, journeyerr.NewConfigurationError(ActionType, "duration",
			fmt.Errorf("duration for unit %q must be between %d and %d", unit, bounds.min, bounds.max))
	}

	return &Executor{duration: duration, unit: unit, now: time.Now}, nil
}

// WithClock overrides the clock, used by tests.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now

	return e
}

// Execute computes the resume time and reports success immediately.
func (e *Executor) Execute(_ context.Context, _ protocol.ActionContext) (protocol.ExecutionResult, error) {
	started := e.now()
	resumeAt := started.UTC().Add(time.Duration(e.duration) * unitRanges[e.unit].d)

	return protocol.SuccessResult(map[string]any{
		ResumeAtKey: resumeAt.Format(time.RFC3339),
		"duration":  e.duration,
		"unit":      e.unit,
	}, time.Since(started)), nil
}

// Factory creates wait-time executors for the registry.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return ActionType
}

func (f *Factory) Create(config map[string]any) (protocol.ActionExecutor, error) {
	return NewExecutor(config)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration": map[string]any{"type": "number", "minimum": 1},
			"unit":     map[string]any{"type": "string", "enum": []any{"minutes", "hours", "days", "weeks"}},
		},
		"required": []any{"duration", "unit"},
	}
}
