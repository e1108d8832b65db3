package protocol

import (
	"context"

	"github.com/driftline/journey/pkg/models"
)

// EvaluationContext is the contact snapshot a condition is evaluated against.
type EvaluationContext struct {
	ContactID      string                                              `json:"contact_id"`
	ContactData    map[string]any                                      `json:"contact_data,omitempty"`
	Tags           map[string]bool                                     `json:"tags,omitempty"`
	PipelineStages map[string]string                                   `json:"pipeline_stages,omitempty"`
	CustomFields   map[string]any                                      `json:"custom_fields,omitempty"`
	Engagement     map[models.EngagementKind][]models.EngagementEvent  `json:"engagement,omitempty"`
}

// NewEvaluationContext builds an evaluation context from a contact snapshot.
func NewEvaluationContext(contact *models.Contact) EvaluationContext {
	return EvaluationContext{
		ContactID:      contact.ID,
		ContactData:    contact.Data,
		Tags:           contact.TagSet(),
		PipelineStages: contact.PipelineStages,
		CustomFields:   contact.CustomFields,
		Engagement:     contact.Engagement,
	}
}

// EvaluationResult reports one evaluator's verdict. Missing data evaluates to
// Match=false, never to an error.
type EvaluationResult struct {
	Match      bool           `json:"match"`
	BranchName string         `json:"branch_name,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// ConditionEvaluator is the strategy contract for one condition type.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, config map[string]any, evalCtx EvaluationContext) (EvaluationResult, error)
}

// ConditionEvaluatorFactory validates raw criteria into a typed evaluator.
type ConditionEvaluatorFactory interface {
	// ID is the condition type tag this factory serves (e.g. "field").
	ID() string
	Create(config map[string]any) (ConditionEvaluator, error)
	Schema() map[string]any
}
