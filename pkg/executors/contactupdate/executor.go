// Package contactupdate provides the update_contact CRM action executor.
package contactupdate

import (
	"context"
	"errors"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
	"github.com/driftline/journey/pkg/retry"
	"github.com/driftline/journey/pkg/template"
)

const actionType = "update_contact"

// Executor updates contact fields through the CRM service. String field
// values are rendered as templates before the update.
type Executor struct {
	fields map[string]any
	crm    protocol.CRMService
}

// NewExecutor validates config into a contact-update executor.
func NewExecutor(config map[string]any, crm protocol.CRMService) (*Executor, error) {
	fields, ok := config["fields"].(map[string]any)
	if !ok || len(fields) == 0 {
		return nil, journeyerr.NewConfigurationError(actionType, "fields",
			errors.New("missing required field 'fields'"))
	}

	return &Executor{fields: fields, crm: crm}, nil
}

// Execute renders and applies the field updates.
func (e *Executor) Execute(ctx context.Context, actionCtx protocol.ActionContext) (protocol.ExecutionResult, error) {
	started := time.Now()

	rendered := make(map[string]any, len(e.fields))

	for key, value := range e.fields {
		if str, ok := value.(string); ok {
			renderedValue, err := template.RenderWithContext(str, actionCtx)
			if err != nil {
				return protocol.ExecutionResult{}, journeyerr.NewConfigurationError(actionType, "fields", err)
			}

			rendered[key] = renderedValue

			continue
		}

		rendered[key] = value
	}

	if err := e.crm.UpdateContact(ctx, actionCtx.AccountID, actionCtx.ContactID, rendered); err != nil {
		category := retry.CategorizeError(err.Error())

		return protocol.FailureResult(err.Error(), category.Retryable(), time.Since(started)), nil
	}

	return protocol.SuccessResult(map[string]any{"updated_fields": len(rendered)}, time.Since(started)), nil
}

// Factory creates contact-update executors bound to the CRM service.
type Factory struct {
	crm protocol.CRMService
}

func NewFactory(crm protocol.CRMService) *Factory {
	return &Factory{crm: crm}
}

func (f *Factory) ID() string {
	return actionType
}

func (f *Factory) Create(config map[string]any) (protocol.ActionExecutor, error) {
	return NewExecutor(config, f.crm)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fields": map[string]any{"type": "object", "minProperties": 1},
		},
		"required": []any{"fields"},
	}
}
