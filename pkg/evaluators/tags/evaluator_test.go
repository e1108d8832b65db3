package tags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/protocol"
)

func tagSet(tags ...string) protocol.EvaluationContext {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		set[tag] = true
	}

	return protocol.EvaluationContext{ContactID: "contact-1", Tags: set}
}

func TestEvaluateModes(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		tags     []any
		contact  protocol.EvaluationContext
		expected bool
	}{
		{"has_any hit", ModeHasAny, []any{"vip", "beta"}, tagSet("beta"), true},
		{"has_any miss", ModeHasAny, []any{"vip"}, tagSet("trial"), false},
		{"has_all hit", ModeHasAll, []any{"vip", "beta"}, tagSet("vip", "beta", "extra"), true},
		{"has_all partial miss", ModeHasAll, []any{"vip", "beta"}, tagSet("vip"), false},
		{"has_none hit", ModeHasNone, []any{"churned"}, tagSet("vip"), true},
		{"has_none miss", ModeHasNone, []any{"vip"}, tagSet("vip"), false},
		{"has_only exact", ModeHasOnly, []any{"vip", "beta"}, tagSet("vip", "beta"), true},
		{"has_only superset miss", ModeHasOnly, []any{"vip"}, tagSet("vip", "beta"), false},
		{"untagged contact fails has_any", ModeHasAny, []any{"vip"}, tagSet(), false},
		{"untagged contact passes has_none", ModeHasNone, []any{"vip"}, tagSet(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator, err := NewEvaluator(map[string]any{"mode": tt.mode, "tags": tt.tags})
			require.NoError(t, err)

			result, err := evaluator.Evaluate(context.Background(), nil, tt.contact)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Match)
		})
	}
}

func TestEvaluateNilTagSet(t *testing.T) {
	evaluator, err := NewEvaluator(map[string]any{"mode": ModeHasNone, "tags": []any{"vip"}})
	require.NoError(t, err)

	result, err := evaluator.Evaluate(context.Background(), nil,
		protocol.EvaluationContext{ContactID: "contact-1"})
	require.NoError(t, err)
	assert.True(t, result.Match)
}

func TestNewEvaluatorValidatesConfig(t *testing.T) {
	_, err := NewEvaluator(map[string]any{"mode": "overlaps", "tags": []any{"vip"}})
	assert.Error(t, err)

	_, err = NewEvaluator(map[string]any{"mode": ModeHasAny})
	assert.Error(t, err, "tags are required")

	_, err = NewEvaluator(map[string]any{"mode": ModeHasAny, "tags": []any{}})
	assert.Error(t, err)

	_, err = NewEvaluator(map[string]any{"mode": ModeHasAny, "tags": []any{1, 2}})
	assert.Error(t, err)
}
