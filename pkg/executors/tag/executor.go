// Package tag provides the add_tag and remove_tag CRM action executors.
package tag

import (
	"context"
	"errors"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
	"github.com/driftline/journey/pkg/retry"
)

const (
	ActionTypeAdd    = "add_tag"
	ActionTypeRemove = "remove_tag"
)

// Executor mutates the contact's tag set through the CRM service.
type Executor struct {
	actionType string
	tag        string
	crm        protocol.CRMService
}

// NewExecutor validates config into a tag executor for the given action type.
func NewExecutor(actionType string, config map[string]any, crm protocol.CRMService) (*Executor, error) {
	tag, ok := config["tag"].(string)
	if !ok || tag == "" {
		return nil, journeyerr.NewConfigurationError(actionType, "tag",
			errors.New("missing required field 'tag'"))
	}

	return &Executor{actionType: actionType, tag: tag, crm: crm}, nil
}

// Execute applies the tag mutation.
func (e *Executor) Execute(ctx context.Context, actionCtx protocol.ActionContext) (protocol.ExecutionResult, error) {
	started := time.Now()

	var err error

	switch e.actionType {
	case ActionTypeAdd:
		err = e.crm.AddTag(ctx, actionCtx.AccountID, actionCtx.ContactID, e.tag)
	case ActionTypeRemove:
		err = e.crm.RemoveTag(ctx, actionCtx.AccountID, actionCtx.ContactID, e.tag)
	}

	if err != nil {
		category := retry.CategorizeError(err.Error())

		return protocol.FailureResult(err.Error(), category.Retryable(), time.Since(started)), nil
	}

	return protocol.SuccessResult(map[string]any{"tag": e.tag}, time.Since(started)), nil
}

// Factory creates tag executors for one of the two tag action types.
type Factory struct {
	actionType string
	crm        protocol.CRMService
}

// NewAddFactory creates the add_tag factory.
func NewAddFactory(crm protocol.CRMService) *Factory {
	return &Factory{actionType: ActionTypeAdd, crm: crm}
}

// NewRemoveFactory creates the remove_tag factory.
func NewRemoveFactory(crm protocol.CRMService) *Factory {
	return &Factory{actionType: ActionTypeRemove, crm: crm}
}

func (f *Factory) ID() string {
	return f.actionType
}

func (f *Factory) Create(config map[string]any) (protocol.ActionExecutor, error) {
	return NewExecutor(f.actionType, config, f.crm)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tag": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"tag"},
	}
}
