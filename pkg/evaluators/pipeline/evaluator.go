// Package pipeline provides the pipeline-stage membership condition evaluator.
package pipeline

import (
	"context"
	"errors"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
)

const evaluatorType = "pipeline_stage"

var (
	errMissingPipeline = errors.New("missing required field 'pipeline_id'")
	errMissingStages   = errors.New("missing required field 'stage_ids'")
)

// Evaluator checks whether the contact sits in one of the configured stages
// of a pipeline. A contact not present in the pipeline evaluates to no match.
type Evaluator struct {
	pipelineID string
	stageIDs   map[string]bool
	negate     bool
}

// NewEvaluator validates config into a pipeline evaluator.
func NewEvaluator(config map[string]any) (*Evaluator, error) {
	pipelineID, ok := config["pipeline_id"].(string)
	if !ok || pipelineID == "" {
		return nil, journeyerr.NewConfigurationError(evaluatorType, "pipeline_id", errMissingPipeline)
	}

	rawStages, ok := config["stage_ids"].([]any)
	if !ok || len(rawStages) == 0 {
		return nil, journeyerr.NewConfigurationError(evaluatorType, "stage_ids", errMissingStages)
	}

	stageIDs := make(map[string]bool, len(rawStages))

	for _, raw := range rawStages {
		stage, okStage := raw.(string)
		if !okStage {
			return nil, journeyerr.NewConfigurationError(evaluatorType, "stage_ids", errMissingStages)
		}

		stageIDs[stage] = true
	}

	negate, _ := config["not_in"].(bool)

	return &Evaluator{pipelineID: pipelineID, stageIDs: stageIDs, negate: negate}, nil
}

// Evaluate checks stage membership for the configured pipeline.
func (e *Evaluator) Evaluate(_ context.Context, _ map[string]any, evalCtx protocol.EvaluationContext) (protocol.EvaluationResult, error) {
	stage, present := evalCtx.PipelineStages[e.pipelineID]

	match := present && e.stageIDs[stage]
	if e.negate {
		match = !match
	}

	return protocol.EvaluationResult{
		Match: match,
		Details: map[string]any{
			"pipeline_id":   e.pipelineID,
			"current_stage": stage,
			"in_pipeline":   present,
		},
	}, nil
}

// Factory creates pipeline evaluators for the registry.
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
			"pipeline_id": map[string]any{"type": "string", "minLength": 1},
			"stage_ids": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
			},
			"not_in": map[string]any{"type": "boolean"},
		},
		"required": []any{"pipeline_id", "stage_ids"},
	}
}
