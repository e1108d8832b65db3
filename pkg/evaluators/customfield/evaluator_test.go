package customfield

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/protocol"
)

func fieldsContext(fields map[string]any) protocol.EvaluationContext {
	return protocol.EvaluationContext{ContactID: "contact-1", CustomFields: fields}
}

func TestEvaluateTypedComparisons(t *testing.T) {
	fields := map[string]any{
		"plan":        "Pro",
		"seats":       12.0,
		"seats_str":   "12",
		"renewal":     "2025-09-01",
		"newsletter":  true,
		"newsletter2": "true",
		"blank":       "",
	}

	tests := []struct {
		name     string
		config   map[string]any
		expected bool
	}{
		{"text equals case-insensitive",
			map[string]any{"field_id": "plan", "field_type": TypeText, "operator": OpEquals, "value": "pro"}, true},
		{"text not_equals",
			map[string]any{"field_id": "plan", "field_type": TypeText, "operator": OpNotEquals, "value": "free"}, true},
		{"number greater_than",
			map[string]any{"field_id": "seats", "field_type": TypeNumber, "operator": OpGreaterThan, "value": 10.0}, true},
		{"number from string value",
			map[string]any{"field_id": "seats_str", "field_type": TypeNumber, "operator": OpEquals, "value": 12.0}, true},
		{"number against non-numeric is no match",
			map[string]any{"field_id": "plan", "field_type": TypeNumber, "operator": OpGreaterThan, "value": 1.0}, false},
		{"date before",
			map[string]any{"field_id": "renewal", "field_type": TypeDate, "operator": OpBefore, "value": "2025-12-01"}, true},
		{"date after",
			map[string]any{"field_id": "renewal", "field_type": TypeDate, "operator": OpAfter, "value": "2025-12-01"}, false},
		{"checkbox equals",
			map[string]any{"field_id": "newsletter", "field_type": TypeCheckbox, "operator": OpEquals, "value": true}, true},
		{"checkbox from string value",
			map[string]any{"field_id": "newsletter2", "field_type": TypeCheckbox, "operator": OpEquals, "value": true}, true},
		{"is_set on populated field",
			map[string]any{"field_id": "plan", "field_type": TypeText, "operator": OpIsSet}, true},
		{"is_set on blank field",
			map[string]any{"field_id": "blank", "field_type": TypeText, "operator": OpIsSet}, false},
		{"is_not_set on missing field",
			map[string]any{"field_id": "missing", "field_type": TypeText, "operator": OpIsNotSet}, true},
		{"missing field fails comparison",
			map[string]any{"field_id": "missing", "field_type": TypeText, "operator": OpEquals, "value": "x"}, false},
		{"operator not applicable to type",
			map[string]any{"field_id": "plan", "field_type": TypeText, "operator": OpGreaterThan, "value": "a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator, err := NewEvaluator(tt.config)
			require.NoError(t, err)

			result, err := evaluator.Evaluate(context.Background(), nil, fieldsContext(fields))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Match)
		})
	}
}

func TestEvaluateReportsDetails(t *testing.T) {
	evaluator, err := NewEvaluator(map[string]any{
		"field_id": "plan", "field_type": TypeText, "operator": OpEquals, "value": "pro",
	})
	require.NoError(t, err)

	result, err := evaluator.Evaluate(context.Background(), nil,
		fieldsContext(map[string]any{"plan": "free"}))
	require.NoError(t, err)

	assert.False(t, result.Match)
	assert.Equal(t, "plan", result.Details["field_id"])
	assert.Equal(t, "free", result.Details["actual"])
}

func TestNewEvaluatorValidatesConfig(t *testing.T) {
	_, err := NewEvaluator(map[string]any{"field_type": TypeText, "operator": OpEquals})
	assert.Error(t, err, "field_id is required")

	_, err = NewEvaluator(map[string]any{"field_id": "f", "field_type": "multiselect", "operator": OpEquals})
	assert.Error(t, err)

	_, err = NewEvaluator(map[string]any{"field_id": "f", "field_type": TypeText})
	assert.Error(t, err, "operator is required")
}
