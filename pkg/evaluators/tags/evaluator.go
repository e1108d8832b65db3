// Package tags provides the tag-set condition evaluator.
package tags

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
)

const evaluatorType = "tags"

// Set comparison modes.
const (
	ModeHasAny  = "has_any"  // Intersection non-empty
	ModeHasAll  = "has_all"  // Configured tags are a subset
	ModeHasNone = "has_none" // Intersection empty
	ModeHasOnly = "has_only" // Contact tag set equals the configured set
)

var validModes = map[string]bool{
	ModeHasAny: true, ModeHasAll: true, ModeHasNone: true, ModeHasOnly: true,
}

var errMissingTags = errors.New("missing required field 'tags'")

// Evaluator compares the contact's tag set against a configured tag list.
type Evaluator struct {
	mode string
	tags []string
}

// NewEvaluator validates config into a tags evaluator.
func NewEvaluator(config map[string]any) (*Evaluator, error) {
	mode, ok := config["mode"].(string)
	if !ok || !validModes[mode] {
		return nil, journeyerr.NewConfigurationError(evaluatorType, "mode",
			fmt.Errorf("unknown mode %q", config["mode"]))
	}

	tagList, err := parseTags(config["tags"])
	if err != nil {
		return nil, journeyerr.NewConfigurationError(evaluatorType, "tags", err)
	}

	return &Evaluator{mode: mode, tags: tagList}, nil
}

func parseTags(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		if len(v) == 0 {
			return nil, errMissingTags
		}

		return v, nil
	case []any:
		if len(v) == 0 {
			return nil, errMissingTags
		}

		tags := make([]string, 0, len(v))

		for _, item := range v {
			tag, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("tag entries must be strings, got %T", item)
			}

			tags = append(tags, tag)
		}

		return tags, nil
	default:
		return nil, errMissingTags
	}
}

// Evaluate applies the set comparison against the contact tag set. A contact
// with no tags never errors; it simply fails the positive modes.
func (e *Evaluator) Evaluate(_ context.Context, _ map[string]any, evalCtx protocol.EvaluationContext) (protocol.EvaluationResult, error) {
	contactTags := evalCtx.Tags
	if contactTags == nil {
		contactTags = map[string]bool{}
	}

	intersection := 0

	for _, tag := range e.tags {
		if contactTags[tag] {
			intersection++
		}
	}

	var match bool

	switch e.mode {
	case ModeHasAny:
		match = intersection > 0
	case ModeHasAll:
		match = intersection == len(e.tags)
	case ModeHasNone:
		match = intersection == 0
	case ModeHasOnly:
		match = intersection == len(e.tags) && len(contactTags) == len(e.tags)
	}

	return protocol.EvaluationResult{
		Match: match,
		Details: map[string]any{
			"mode":         e.mode,
			"tags":         e.tags,
			"intersection": intersection,
		},
	}, nil
}

// Factory creates tags evaluators for the registry.
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
			"mode": map[string]any{"type": "string"},
			"tags": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
			},
		},
		"required": []any{"mode", "tags"},
	}
}
