// Package engagement provides the email-engagement condition evaluator.
package engagement

import (
	"context"
	"fmt"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/protocol"
)

const evaluatorType = "email_engagement"

var validKinds = map[string]models.EngagementKind{
	"opened":  models.EngagementOpened,
	"clicked": models.EngagementClicked,
}

// Evaluator checks the contact's engagement-event lists for an opened or
// clicked record, optionally scoped to a specific email. A contact with no
// engagement history evaluates to no match.
type Evaluator struct {
	kind    models.EngagementKind
	emailID string
	negate  bool
}

// NewEvaluator validates config into an engagement evaluator.
func NewEvaluator(config map[string]any) (*Evaluator, error) {
	rawKind, _ := config["kind"].(string)

	kind, ok := validKinds[rawKind]
	if !ok {
		return nil, journeyerr.NewConfigurationError(evaluatorType, "kind",
			fmt.Errorf("kind must be opened or clicked, got %q", rawKind))
	}

	emailID, _ := config["email_id"].(string)
	negate, _ := config["has_not"].(bool)

	return &Evaluator{kind: kind, emailID: emailID, negate: negate}, nil
}

// Evaluate checks engagement membership.
func (e *Evaluator) Evaluate(_ context.Context, _ map[string]any, evalCtx protocol.EvaluationContext) (protocol.EvaluationResult, error) {
	engaged := false

	for _, event := range evalCtx.Engagement[e.kind] {
		if e.emailID == "" || event.EmailID == e.emailID {
			engaged = true

			break
		}
	}

	match := engaged != e.negate

	return protocol.EvaluationResult{
		Match: match,
		Details: map[string]any{
			"kind":     string(e.kind),
			"email_id": e.emailID,
			"engaged":  engaged,
		},
	}, nil
}

// Factory creates engagement evaluators for the registry.
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
			"kind":     map[string]any{"type": "string", "enum": []any{"opened", "clicked"}},
			"email_id": map[string]any{"type": "string"},
			"has_not":  map[string]any{"type": "boolean"},
		},
		"required": []any{"kind"},
	}
}
