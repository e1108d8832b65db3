package contactupdate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/mocks"
	"github.com/driftline/journey/pkg/protocol"
)

func TestExecuteRendersAndUpdates(t *testing.T) {
	crm := &mocks.MockCRMService{}
	crm.On("UpdateContact", mock.Anything, "acct-1", "contact-1", mock.MatchedBy(func(fields map[string]any) bool {
		return fields["lifecycle_stage"] == "customer" && fields["source_form"] == "f-1" && fields["score"] == 10.0
	})).Return(nil)

	executor, err := NewExecutor(map[string]any{
		"fields": map[string]any{
			"lifecycle_stage": "customer",
			"source_form":     "{{.trigger_data.form_id}}",
			"score":           10.0,
		},
	}, crm)
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ActionContext{
		AccountID: "acct-1",
		ContactID: "contact-1",
		Metadata: map[string]any{
			"trigger_data": map[string]any{"form_id": "f-1"},
		},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Data["updated_fields"])
	crm.AssertExpectations(t)
}

func TestExecuteClassifiesCRMFailure(t *testing.T) {
	crm := &mocks.MockCRMService{}
	crm.On("UpdateContact", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(assert.AnError)

	executor, err := NewExecutor(map[string]any{
		"fields": map[string]any{"stage": "mql"},
	}, crm)
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ActionContext{})
	require.NoError(t, err)

	assert.False(t, result.Success)
}

func TestNewExecutorRequiresFields(t *testing.T) {
	crm := &mocks.MockCRMService{}

	_, err := NewExecutor(map[string]any{}, crm)
	assert.Error(t, err)

	_, err = NewExecutor(map[string]any{"fields": map[string]any{}}, crm)
	assert.Error(t, err, "an empty update is a configuration mistake")
}
