package delivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/protocol"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error {
	args := m.Called(topic, messages)

	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	args := m.Called()

	return args.Error(0)
}

func TestEmailSendPublishesRequest(t *testing.T) {
	var captured *message.Message

	pub := &mockPublisher{}
	pub.On("Publish", EmailTopic, mock.Anything).Run(func(args mock.Arguments) {
		messages := args.Get(1).([]*message.Message)
		require.Len(t, messages, 1)
		captured = messages[0]
	}).Return(nil)

	sender := NewEmailPublisher(slog.Default(), pub)

	id, err := sender.Send(context.Background(), protocol.EmailMessage{
		ContactID:  "contact-1",
		TemplateID: "tpl-1",
		Subject:    "Welcome",
	})
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, captured.UUID, id, "the message id is the engagement correlation id")
	assert.Equal(t, "contact-1", captured.Metadata.Get("key"))

	var sent protocol.EmailMessage
	require.NoError(t, json.Unmarshal(captured.Payload, &sent))
	assert.Equal(t, "tpl-1", sent.TemplateID)
	assert.Equal(t, "Welcome", sent.Subject)
}

func TestSMSSendPublishesRequest(t *testing.T) {
	var captured *message.Message

	pub := &mockPublisher{}
	pub.On("Publish", SMSTopic, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).([]*message.Message)[0]
	}).Return(nil)

	sender := NewSMSPublisher(slog.Default(), pub)

	id, err := sender.Send(context.Background(), protocol.SMSMessage{
		ContactID: "contact-2",
		Body:      "hello",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "contact-2", captured.Metadata.Get("key"))
}

func TestSendPropagatesPublishFailure(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(assert.AnError)

	sender := NewEmailPublisher(slog.Default(), pub)

	_, err := sender.Send(context.Background(), protocol.EmailMessage{ContactID: "contact-1"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestUniqueMessageIDs(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	sender := NewSMSPublisher(slog.Default(), pub)
	ctx := context.Background()

	first, err := sender.Send(ctx, protocol.SMSMessage{ContactID: "c", Body: "a"})
	require.NoError(t, err)

	second, err := sender.Send(ctx, protocol.SMSMessage{ContactID: "c", Body: "b"})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
