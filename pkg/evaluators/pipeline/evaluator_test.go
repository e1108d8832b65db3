package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/protocol"
)

func inStage(pipelineID, stageID string) protocol.EvaluationContext {
	return protocol.EvaluationContext{
		ContactID:      "contact-1",
		PipelineStages: map[string]string{pipelineID: stageID},
	}
}

func TestEvaluateStageMembership(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]any
		evalCtx  protocol.EvaluationContext
		expected bool
	}{
		{"in configured stage",
			map[string]any{"pipeline_id": "sales", "stage_ids": []any{"demo", "negotiation"}},
			inStage("sales", "demo"), true},
		{"in other stage",
			map[string]any{"pipeline_id": "sales", "stage_ids": []any{"demo"}},
			inStage("sales", "won"), false},
		{"not in pipeline",
			map[string]any{"pipeline_id": "sales", "stage_ids": []any{"demo"}},
			inStage("onboarding", "kickoff"), false},
		{"not_in inverts",
			map[string]any{"pipeline_id": "sales", "stage_ids": []any{"demo"}, "not_in": true},
			inStage("sales", "won"), true},
		{"not_in with membership",
			map[string]any{"pipeline_id": "sales", "stage_ids": []any{"demo"}, "not_in": true},
			inStage("sales", "demo"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator, err := NewEvaluator(tt.config)
			require.NoError(t, err)

			result, err := evaluator.Evaluate(context.Background(), nil, tt.evalCtx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Match)
		})
	}
}

func TestNewEvaluatorValidatesConfig(t *testing.T) {
	_, err := NewEvaluator(map[string]any{"stage_ids": []any{"demo"}})
	assert.Error(t, err, "pipeline_id is required")

	_, err = NewEvaluator(map[string]any{"pipeline_id": "sales"})
	assert.Error(t, err, "stage_ids are required")

	_, err = NewEvaluator(map[string]any{"pipeline_id": "sales", "stage_ids": []any{}})
	assert.Error(t, err)

	_, err = NewEvaluator(map[string]any{"pipeline_id": "sales", "stage_ids": []any{7}})
	assert.Error(t, err)
}
