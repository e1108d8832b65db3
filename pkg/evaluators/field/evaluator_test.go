package field

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/protocol"
)

func evalContext(data map[string]any) protocol.EvaluationContext {
	return protocol.EvaluationContext{ContactID: "contact-1", ContactData: data}
}

func TestEvaluateOperators(t *testing.T) {
	data := map[string]any{
		"plan":    "Pro",
		"score":   42.0,
		"email":   "jordan@example.com",
		"company": map[string]any{"industry": "saas"},
		"empty":   "",
	}

	tests := []struct {
		name     string
		config   map[string]any
		expected bool
	}{
		{"equals case-insensitive", map[string]any{"field": "plan", "operator": OpEquals, "value": "pro"}, true},
		{"not_equals", map[string]any{"field": "plan", "operator": OpNotEquals, "value": "free"}, true},
		{"contains substring", map[string]any{"field": "email", "operator": OpContains, "value": "@example"}, true},
		{"not_contains", map[string]any{"field": "email", "operator": OpNotContains, "value": "@other"}, true},
		{"starts_with", map[string]any{"field": "email", "operator": OpStartsWith, "value": "Jordan"}, true},
		{"ends_with", map[string]any{"field": "email", "operator": OpEndsWith, "value": ".com"}, true},
		{"greater_than", map[string]any{"field": "score", "operator": OpGreaterThan, "value": 40.0}, true},
		{"greater_than non-numeric is no match", map[string]any{"field": "plan", "operator": OpGreaterThan, "value": 1.0}, false},
		{"less_than", map[string]any{"field": "score", "operator": OpLessThan, "value": "50"}, true},
		{"in_list", map[string]any{"field": "plan", "operator": OpInList, "value": []any{"pro", "enterprise"}}, true},
		{"not_in_list", map[string]any{"field": "plan", "operator": OpNotInList, "value": []any{"free"}}, true},
		{"is_empty", map[string]any{"field": "empty", "operator": OpIsEmpty}, true},
		{"is_empty on missing field", map[string]any{"field": "missing", "operator": OpIsEmpty}, true},
		{"is_not_empty", map[string]any{"field": "plan", "operator": OpIsNotEmpty}, true},
		{"nested dot path", map[string]any{"field": "company.industry", "operator": OpEquals, "value": "saas"}, true},
		{"dot path through scalar", map[string]any{"field": "plan.nested", "operator": OpIsEmpty}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator, err := NewEvaluator(tt.config)
			require.NoError(t, err)

			result, err := evaluator.Evaluate(context.Background(), nil, evalContext(data))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Match)
		})
	}
}

func TestEvaluateReportsDetails(t *testing.T) {
	evaluator, err := NewEvaluator(map[string]any{
		"field": "plan", "operator": OpEquals, "value": "pro",
	})
	require.NoError(t, err)

	result, err := evaluator.Evaluate(context.Background(), nil,
		evalContext(map[string]any{"plan": "free"}))
	require.NoError(t, err)

	assert.False(t, result.Match)
	assert.Equal(t, "plan", result.Details["field"])
	assert.Equal(t, "free", result.Details["actual"])
	assert.Equal(t, "pro", result.Details["expected"])
}

func TestNewEvaluatorValidatesConfig(t *testing.T) {
	_, err := NewEvaluator(map[string]any{"operator": OpEquals})
	assert.Error(t, err, "field is required")

	_, err = NewEvaluator(map[string]any{"field": "plan", "operator": "resembles"})
	assert.Error(t, err)
}
