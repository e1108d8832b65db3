// Package timebased provides the time-based condition evaluator: day-of-week
// match and "days since a contact date field" comparisons.
package timebased

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
)

const evaluatorType = "time_based"

// Evaluation modes.
const (
	ModeDayOfWeek = "day_of_week"
	ModeDaysSince = "days_since"
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

var (
	errMissingDays      = errors.New("missing required field 'days'")
	errMissingDateField = errors.New("missing required field 'date_field'")
	errMissingThreshold = errors.New("missing required field 'threshold_days'")
)

// Evaluator matches against the clock: either the current day of week, or the
// number of days elapsed since a date field on the contact crossed a
// threshold. A missing or unparseable date field evaluates to no match.
type Evaluator struct {
	mode string

	days map[time.Weekday]bool // day_of_week

	dateField     string // days_since
	thresholdDays int

	now func() time.Time
}

// NewEvaluator validates config into a time-based evaluator.
func NewEvaluator(config map[string]any) (*Evaluator, error) {
	mode, _ := config["mode"].(string)

	evaluator := &Evaluator{mode: mode, now: time.Now}

	switch mode {
	case ModeDayOfWeek:
		rawDays, ok := config["days"].([]any)
		if !ok || len(rawDays) == 0 {
			return nil, journeyerr.NewConfigurationError(evaluatorType, "days", errMissingDays)
		}

		evaluator.days = make(map[time.Weekday]bool, len(rawDays))

		for _, raw := range rawDays {
			name, _ := raw.(string)

			day, okDay := weekdays[strings.ToLower(name)]
			if !okDay {
				return nil, journeyerr.NewConfigurationError(evaluatorType, "days",
					fmt.Errorf("unknown weekday %q", name))
			}

			evaluator.days[day] = true
		}
	case ModeDaysSince:
		dateField, ok := config["date_field"].(string)
		if !ok || dateField == "" {
			return nil, journeyerr.NewConfigurationError(evaluatorType, "date_field", errMissingDateField)
		}

		threshold, ok := config["threshold_days"].(float64)
		if !ok {
			return nil, journeyerr.NewConfigurationError(evaluatorType, "threshold_days", errMissingThreshold)
		}

		evaluator.dateField = dateField
		evaluator.thresholdDays = int(threshold)
	default:
		return nil, journeyerr.NewConfigurationError(evaluatorType, "mode",
			fmt.Errorf("mode must be day_of_week or days_since, got %q", mode))
	}

	return evaluator, nil
}

// WithClock overrides the clock, used by tests.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now

	return e
}

// Evaluate applies the time comparison.
func (e *Evaluator) Evaluate(_ context.Context, _ map[string]any, evalCtx protocol.EvaluationContext) (protocol.EvaluationResult, error) {
	switch e.mode {
	case ModeDayOfWeek:
		today := e.now().UTC().Weekday()

		return protocol.EvaluationResult{
			Match:   e.days[today],
			Details: map[string]any{"mode": e.mode, "today": today.String()},
		}, nil
	case ModeDaysSince:
		raw, present := evalCtx.ContactData[e.dateField]
		if !present {
			raw, present = evalCtx.CustomFields[e.dateField]
		}

		if !present {
			return protocol.EvaluationResult{
				Match:   false,
				Details: map[string]any{"mode": e.mode, "date_field": e.dateField, "present": false},
			}, nil
		}

		parsed, ok := toTime(raw)
		if !ok {
			return protocol.EvaluationResult{
				Match:   false,
				Details: map[string]any{"mode": e.mode, "date_field": e.dateField, "parseable": false},
			}, nil
		}

		elapsed := int(e.now().UTC().Sub(parsed).Hours() / 24)

		return protocol.EvaluationResult{
			Match: elapsed >= e.thresholdDays,
			Details: map[string]any{
				"mode":           e.mode,
				"date_field":     e.dateField,
				"elapsed_days":   elapsed,
				"threshold_days": e.thresholdDays,
			},
		}, nil
	}

	return protocol.EvaluationResult{Match: false}, nil
}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return parsed, true
		}

		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			return parsed, true
		}

		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// Factory creates time-based evaluators for the registry.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return evaluatorType
}

func (f *Factory) Create(config map[string]any) (protocol.ConditionEvaluator, error) {
	return NewEvaluator(config)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode":           map[string]any{"type": "string", "enum": []any{"day_of_week", "days_since"}},
			"days":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"date_field":     map[string]any{"type": "string"},
			"threshold_days": map[string]any{"type": "number"},
		},
		"required": []any{"mode"},
	}
}
