package sms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/mocks"
	"github.com/driftline/journey/pkg/protocol"
)

func TestExecuteSendsRenderedBody(t *testing.T) {
	sender := &mocks.MockSMSSender{}
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg protocol.SMSMessage) bool {
		return msg.ContactID == "contact-1" && msg.Body == "Hi Jordan, your order shipped"
	})).Return("sms-7", nil)

	executor, err := NewExecutor(map[string]any{
		"body": "Hi {{.contact.first_name}}, your order shipped",
	}, sender)
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ActionContext{
		ContactID: "contact-1",
		AccountID: "acct-1",
		Metadata: map[string]any{
			"contact_data": map[string]any{"first_name": "Jordan"},
		},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "sms-7", result.Data["message_id"])
	sender.AssertExpectations(t)
}

func TestExecuteClassifiesDeliveryFailure(t *testing.T) {
	sender := &mocks.MockSMSSender{}
	sender.On("Send", mock.Anything, mock.Anything).Return("", assert.AnError)

	executor, err := NewExecutor(map[string]any{"body": "hello"}, sender)
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ActionContext{})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestNewExecutorRequiresBody(t *testing.T) {
	_, err := NewExecutor(map[string]any{}, &mocks.MockSMSSender{})
	assert.Error(t, err)

	_, err = NewExecutor(map[string]any{"body": ""}, &mocks.MockSMSSender{})
	assert.Error(t, err)
}
