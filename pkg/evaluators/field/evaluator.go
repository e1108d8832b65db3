// Package field provides the field-comparison condition evaluator.
package field

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
)

const evaluatorType = "field"

// Supported comparison operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpInList      = "in_list"
	OpNotInList   = "not_in_list"
	OpIsEmpty     = "is_empty"
	OpIsNotEmpty  = "is_not_empty"
)

var validOperators = map[string]bool{
	OpEquals: true, OpNotEquals: true, OpContains: true, OpNotContains: true,
	OpStartsWith: true, OpEndsWith: true, OpGreaterThan: true, OpLessThan: true,
	OpInList: true, OpNotInList: true, OpIsEmpty: true, OpIsNotEmpty: true,
}

// Evaluator compares a contact data field against a configured value. String
// comparisons are case-insensitive; numeric operators coerce via float parse
// and non-coercible values evaluate to no match rather than erroring.
type Evaluator struct {
	field    string
	operator string
	value    any
}

// NewEvaluator validates config into a field evaluator.
func NewEvaluator(config map[string]any) (*Evaluator, error) {
	fieldName, ok := config["field"].(string)
	if !ok || fieldName == "" {
		return nil, journeyerr.NewConfigurationError(evaluatorType, "field", errMissingField)
	}

	operator, ok := config["operator"].(string)
	if !ok || !validOperators[operator] {
		return nil, journeyerr.NewConfigurationError(evaluatorType, "operator",
			fmt.Errorf("unknown operator %q", config["operator"]))
	}

	return &Evaluator{
		field:    fieldName,
		operator: operator,
		value:    config["value"],
	}, nil
}

var errMissingField = errors.New("missing required field 'field'")

// Evaluate applies the comparison to the contact snapshot.
func (e *Evaluator) Evaluate(_ context.Context, _ map[string]any, evalCtx protocol.EvaluationContext) (protocol.EvaluationResult, error) {
	actual := lookupField(evalCtx, e.field)

	match := e.compare(actual)

	return protocol.EvaluationResult{
		Match: match,
		Details: map[string]any{
			"field":    e.field,
			"operator": e.operator,
			"actual":   actual,
			"expected": e.value,
		},
	}, nil
}

// lookupField resolves a dot-path field against contact data.
func lookupField(evalCtx protocol.EvaluationContext, path string) any {
	var current any = evalCtx.ContactData

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

func (e *Evaluator) compare(actual any) bool {
	switch e.operator {
	case OpEquals:
		return equalsFold(actual, e.value)
	case OpNotEquals:
		return !equalsFold(actual, e.value)
	case OpContains:
		return containsFold(actual, e.value)
	case OpNotContains:
		return !containsFold(actual, e.value)
	case OpStartsWith:
		return strings.HasPrefix(lower(actual), lower(e.value))
	case OpEndsWith:
		return strings.HasSuffix(lower(actual), lower(e.value))
	case OpGreaterThan:
		left, okLeft := toFloat(actual)
		right, okRight := toFloat(e.value)

		return okLeft && okRight && left > right
	case OpLessThan:
		left, okLeft := toFloat(actual)
		right, okRight := toFloat(e.value)

		return okLeft && okRight && left < right
	case OpInList:
		return inList(actual, e.value)
	case OpNotInList:
		return !inList(actual, e.value)
	case OpIsEmpty:
		return isEmpty(actual)
	case OpIsNotEmpty:
		return !isEmpty(actual)
	default:
		return false
	}
}

func equalsFold(actual, expected any) bool {
	return strings.EqualFold(stringify(actual), stringify(expected))
}

// containsFold matches list membership for slice values and substring match
// for scalars, both case-insensitively.
func containsFold(actual, expected any) bool {
	want := lower(expected)

	switch v := actual.(type) {
	case []any:
		for _, item := range v {
			if lower(item) == want {
				return true
			}
		}

		return false
	case []string:
		for _, item := range v {
			if strings.EqualFold(item, stringify(expected)) {
				return true
			}
		}

		return false
	default:
		return strings.Contains(lower(actual), want)
	}
}

func inList(actual, expected any) bool {
	items, ok := expected.([]any)
	if !ok {
		return false
	}

	want := lower(actual)

	for _, item := range items {
		if lower(item) == want {
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

func lower(value any) string {
	return strings.ToLower(stringify(value))
}

// Factory creates field evaluators for the registry.
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
			"field":    map[string]any{"type": "string", "minLength": 1},
			"operator": map[string]any{"type": "string"},
			"value":    map[string]any{},
		},
		"required": []any{"field", "operator"},
	}
}
