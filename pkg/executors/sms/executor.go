// Package sms provides the send_sms action executor.
package sms

import (
	"context"
	"errors"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
	"github.com/driftline/journey/pkg/retry"
	"github.com/driftline/journey/pkg/template"
)

const actionType = "send_sms"

// Executor sends a templated SMS through the downstream SMSSender.
type Executor struct {
	body   string
	sender protocol.SMSSender
}

// NewExecutor validates config into an SMS executor.
func NewExecutor(config map[string]any, sender protocol.SMSSender) (*Executor, error) {
	body, ok := config["body"].(string)
	if !ok || body == "" {
		return nil, journeyerr.NewConfigurationError(actionType, "body",
			errors.New("missing required field 'body'"))
	}

	return &Executor{body: body, sender: sender}, nil
}

// Execute renders the body and sends the SMS.
func (e *Executor) Execute(ctx context.Context, actionCtx protocol.ActionContext) (protocol.ExecutionResult, error) {
	started := time.Now()

	body, err := template.RenderString(e.body, actionCtx)
	if err != nil {
		return protocol.ExecutionResult{}, journeyerr.NewConfigurationError(actionType, "body", err)
	}

	messageID, err := e.sender.Send(ctx, protocol.SMSMessage{
		ContactID: actionCtx.ContactID,
		AccountID: actionCtx.AccountID,
		Body:      body,
	})
	if err != nil {
		category := retry.CategorizeError(err.Error())

		return protocol.FailureResult(err.Error(), category.Retryable(), time.Since(started)), nil
	}

	return protocol.SuccessResult(map[string]any{"message_id": messageID}, time.Since(started)), nil
}

// Factory creates SMS executors bound to a sender.
type Factory struct {
	sender protocol.SMSSender
}

func NewFactory(sender protocol.SMSSender) *Factory {
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
			"body": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"body"},
	}
}
