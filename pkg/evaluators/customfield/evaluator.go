// Package customfield provides the typed custom-field condition evaluator.
package customfield

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
)

const evaluatorType = "custom_field"

// Field types, each with its own coercion rule.
const (
	TypeText     = "text"
	TypeNumber   = "number"
	TypeDate     = "date"
	TypeCheckbox = "checkbox"
)

var validFieldTypes = map[string]bool{
	TypeText: true, TypeNumber: true, TypeDate: true, TypeCheckbox: true,
}

// Comparison operators; applicability depends on the field type.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpBefore      = "before"
	OpAfter       = "after"
	OpIsSet       = "is_set"
	OpIsNotSet    = "is_not_set"
)

var errMissingFieldID = errors.New("missing required field 'field_id'")

// Evaluator compares one typed custom field of the contact. Coercion failures
// evaluate to no match, never to an error.
type Evaluator struct {
	fieldID   string
	fieldType string
	operator  string
	value     any
}

// NewEvaluator validates config into a custom-field evaluator.
func NewEvaluator(config map[string]any) (*Evaluator, error) {
	fieldID, ok := config["field_id"].(string)
	if !ok || fieldID == "" {
		return nil, journeyerr.NewConfigurationError(evaluatorType, "field_id", errMissingFieldID)
	}

	fieldType, ok := config["field_type"].(string)
	if !ok || !validFieldTypes[fieldType] {
		return nil, journeyerr.NewConfigurationError(evaluatorType, "field_type",
			fmt.Errorf("unknown field type %q", config["field_type"]))
	}

	operator, ok := config["operator"].(string)
	if !ok || operator == "" {
		return nil, journeyerr.NewConfigurationError(evaluatorType, "operator",
			errors.New("missing required field 'operator'"))
	}

	return &Evaluator{
		fieldID:   fieldID,
		fieldType: fieldType,
		operator:  operator,
		value:     config["value"],
	}, nil
}

// Evaluate applies the typed comparison.
func (e *Evaluator) Evaluate(_ context.Context, _ map[string]any, evalCtx protocol.EvaluationContext) (protocol.EvaluationResult, error) {
	actual, present := evalCtx.CustomFields[e.fieldID]

	if e.operator == OpIsSet || e.operator == OpIsNotSet {
		isSet := present && actual != nil && fmt.Sprintf("%v", actual) != ""
		match := isSet == (e.operator == OpIsSet)

		return e.result(match, actual), nil
	}

	if !present {
		return e.result(false, nil), nil
	}

	var match bool

	switch e.fieldType {
	case TypeText:
		match = e.compareText(actual)
	case TypeNumber:
		match = e.compareNumber(actual)
	case TypeDate:
		match = e.compareDate(actual)
	case TypeCheckbox:
		match = e.compareCheckbox(actual)
	}

	return e.result(match, actual), nil
}

func (e *Evaluator) result(match bool, actual any) protocol.EvaluationResult {
	return protocol.EvaluationResult{
		Match: match,
		Details: map[string]any{
			"field_id":   e.fieldID,
			"field_type": e.fieldType,
			"operator":   e.operator,
			"actual":     actual,
		},
	}
}

func (e *Evaluator) compareText(actual any) bool {
	left := strings.ToLower(fmt.Sprintf("%v", actual))
	right := strings.ToLower(fmt.Sprintf("%v", e.value))

	switch e.operator {
	case OpEquals:
		return left == right
	case OpNotEquals:
		return left != right
	default:
		return false
	}
}

func (e *Evaluator) compareNumber(actual any) bool {
	left, okLeft := toFloat(actual)
	right, okRight := toFloat(e.value)

	if !okLeft || !okRight {
		return false
	}

	switch e.operator {
	case OpEquals:
		return left == right
	case OpNotEquals:
		return left != right
	case OpGreaterThan:
		return left > right
	case OpLessThan:
		return left < right
	default:
		return false
	}
}

func (e *Evaluator) compareDate(actual any) bool {
	left, okLeft := toTime(actual)
	right, okRight := toTime(e.value)

	if !okLeft || !okRight {
		return false
	}

	switch e.operator {
	case OpEquals:
		return left.Equal(right)
	case OpBefore:
		return left.Before(right)
	case OpAfter:
		return left.After(right)
	default:
		return false
	}
}

func (e *Evaluator) compareCheckbox(actual any) bool {
	left, okLeft := toBool(actual)
	right, okRight := toBool(e.value)

	if !okLeft || !okRight {
		return false
	}

	switch e.operator {
	case OpEquals:
		return left == right
	case OpNotEquals:
		return left != right
	default:
		return false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
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

// toTime accepts RFC3339 timestamps and date-only values.
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

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}

		return parsed, true
	default:
		return false, false
	}
}

// Factory creates custom-field evaluators for the registry.
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
			"field_id":   map[string]any{"type": "string", "minLength": 1},
			"field_type": map[string]any{"type": "string"},
			"operator":   map[string]any{"type": "string"},
			"value":      map[string]any{},
		},
		"required": []any{"field_id", "field_type", "operator"},
	}
}
