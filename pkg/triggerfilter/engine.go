// Package triggerfilter decides whether an incoming domain event enrolls a
// contact, by evaluating a trigger's filter conditions against the event
// payload.
package triggerfilter

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/driftline/journey/pkg/models"
)

// Engine evaluates TriggerFilters against event payloads.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a trigger filter engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger.With("module", "trigger_filter")}
}

// Matches evaluates the filter set. Zero conditions always match. AND
// requires all conditions true; OR requires at least one.
func (e *Engine) Matches(filters models.TriggerFilters, payload map[string]any) bool {
	if len(filters.Conditions) == 0 {
		return true
	}

	logic := filters.Logic
	if logic == "" {
		logic = models.FilterLogicAnd
	}

	for _, condition := range filters.Conditions {
		matched := e.evaluateCondition(condition, payload)

		if logic == models.FilterLogicAnd && !matched {
			return false
		}

		if logic == models.FilterLogicOr && matched {
			return true
		}
	}

	return logic == models.FilterLogicAnd
}

func (e *Engine) evaluateCondition(condition models.FilterCondition, payload map[string]any) bool {
	value := LookupPath(payload, condition.Field)

	matched, err := applyOperator(condition.Operator, value, condition.Value)
	if err != nil {
		e.logger.Warn("Filter condition failed to evaluate",
			"field", condition.Field,
			"operator", condition.Operator,
			"error", err)

		return false
	}

	return matched
}

// LookupPath resolves a dot-path into a nested payload. A missing segment
// resolves to nil rather than an error.
func LookupPath(payload map[string]any, path string) any {
	if path == "" {
		return nil
	}

	var current any = payload

	for _, segment := range strings.Split(path, ".") {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current, ok = asMap[segment]
		if !ok {
			return nil
		}
	}

	return current
}

func applyOperator(operator models.FilterOperator, actual, expected any) (bool, error) {
	switch operator {
	case models.OpEquals:
		return stringify(actual) == stringify(expected), nil
	case models.OpNotEquals:
		return stringify(actual) != stringify(expected), nil
	case models.OpContains:
		return strings.Contains(stringify(actual), stringify(expected)), nil
	case models.OpNotContains:
		return !strings.Contains(stringify(actual), stringify(expected)), nil
	case models.OpStartsWith:
		return strings.HasPrefix(stringify(actual), stringify(expected)), nil
	case models.OpEndsWith:
		return strings.HasSuffix(stringify(actual), stringify(expected)), nil
	case models.OpGreaterThan, models.OpLessThan, models.OpGreaterOrEqual, models.OpLessOrEqual:
		return compareNumeric(operator, actual, expected)
	case models.OpIn:
		return containsValue(expected, actual), nil
	case models.OpNotIn:
		return !containsValue(expected, actual), nil
	case models.OpIsEmpty:
		return isEmpty(actual), nil
	case models.OpIsNotEmpty:
		return !isEmpty(actual), nil
	default:
		return false, fmt.Errorf("unknown filter operator %q", operator)
	}
}

func compareNumeric(operator models.FilterOperator, actual, expected any) (bool, error) {
	left, okLeft := toFloat(actual)
	right, okRight := toFloat(expected)

	if !okLeft || !okRight {
		// Non-coercible values never match rather than erroring out.
		return false, nil
	}

	switch operator {
	case models.OpGreaterThan:
		return left > right, nil
	case models.OpLessThan:
		return left < right, nil
	case models.OpGreaterOrEqual:
		return left >= right, nil
	case models.OpLessOrEqual:
		return left <= right, nil
	default:
		return false, fmt.Errorf("operator %q is not numeric", operator)
	}
}

func containsValue(list any, value any) bool {
	items, ok := list.([]any)
	if !ok {
		if strs, okStr := list.([]string); okStr {
			for _, item := range strs {
				if item == stringify(value) {
					return true
				}
			}
		}

		return false
	}

	for _, item := range items {
		if stringify(item) == stringify(value) {
			return true
		}
	}

	return false
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}

func stringify(value any) string {
	if value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}
