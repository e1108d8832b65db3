// Package email provides the send_email action executor.
package email

import (
	"context"
	"errors"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
	"github.com/driftline/journey/pkg/retry"
	"github.com/driftline/journey/pkg/template"
)

const actionType = "send_email"

// Executor sends a templated email through the downstream EmailSender.
// Delivery failures are classified through the retry error categorizer and
// reported in the result, never raised.
type Executor struct {
	templateID string
	subject    string
	variables  map[string]any
	sender     protocol.EmailSender
}

// NewExecutor validates config into an email executor.
func NewExecutor(config map[string]any, sender protocol.EmailSender) (*Executor, error) {
	templateID, ok := config["template_id"].(string)
	if !ok || templateID == "" {
		return nil, journeyerr.NewConfigurationError(actionType, "template_id",
			errors.New("missing required field 'template_id'"))
	}

	subject, _ := config["subject"].(string)
	variables, _ := config["variables"].(map[string]any)

	return &Executor{
		templateID: templateID,
		subject:    subject,
		variables:  variables,
		sender:     sender,
	}, nil
}

// Execute renders the subject and sends the email.
func (e *Executor) Execute(ctx context.Context, actionCtx protocol.ActionContext) (protocol.ExecutionResult, error) {
	started := time.Now()

	subject := e.subject
	if subject != "" {
		rendered, err := template.RenderString(subject, actionCtx)
		if err != nil {
			return protocol.ExecutionResult{}, journeyerr.NewConfigurationError(actionType, "subject", err)
		}

		subject = rendered
	}

	messageID, err := e.sender.Send(ctx, protocol.EmailMessage{
		ContactID:  actionCtx.ContactID,
		AccountID:  actionCtx.AccountID,
		TemplateID: e.templateID,
		Subject:    subject,
		Variables:  e.variables,
	})
	if err != nil {
		category := retry.CategorizeError(err.Error())

		return protocol.FailureResult(err.Error(), category.Retryable(), time.Since(started)), nil
	}

	return protocol.SuccessResult(map[string]any{
		"message_id":  messageID,
		"template_id": e.templateID,
	}, time.Since(started)), nil
}

// Factory creates email executors bound to a sender.
type Factory struct {
	sender protocol.EmailSender
}

func NewFactory(sender protocol.EmailSender) *Factory {
	return &Factory{sender: sender}
}

func (f *Factory) ID() string {
	return actionType
}

func (f *Factory) Create(config map[string]any) (protocol.ActionExecutor, error) {
	return NewExecutor(config, f.sender)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template_id": map[string]any{"type": "string", "minLength": 1},
			"subject":     map[string]any{"type": "string"},
			"variables":   map[string]any{"type": "object"},
		},
		"required": []any{"template_id"},
	}
}
