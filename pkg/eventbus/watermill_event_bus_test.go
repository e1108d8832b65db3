package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/channels/gochannel"
	"github.com/driftline/journey/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func waitFor(t *testing.T, ch <-chan any) any {
	t.Helper()

	select {
	case received := <-ch:
		return received
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")

		return nil
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.ContactEnrolledType, func(ctx context.Context, event any) error {
		received <- event

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	sent := events.ContactEnrolled{
		BaseEvent:   events.NewBaseEvent(events.ContactEnrolledType, "acct-1"),
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		ContactID:   "contact-1",
		TriggerID:   "t-1",
	}
	require.NoError(t, bus.Publish(ctx, sent.ContactID, sent))

	enrolled, ok := waitFor(t, received).(*events.ContactEnrolled)
	require.True(t, ok)
	assert.Equal(t, "exec-1", enrolled.ExecutionID)
	assert.Equal(t, "contact-1", enrolled.ContactID)
	assert.Equal(t, "acct-1", enrolled.AccountID)
}

func TestDomainEventsTravelOnOwnTopic(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.DomainEventReceivedType, func(ctx context.Context, event any) error {
		received <- event

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	sent := events.DomainEventReceived{
		BaseEvent:  events.NewBaseEvent(events.DomainEventReceivedType, "acct-1"),
		DomainType: events.DomainFormSubmitted,
		ContactID:  "contact-1",
		Payload:    map[string]any{"form_id": "f-1"},
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, bus.Publish(ctx, sent.ContactID, sent))

	domainEvent, ok := waitFor(t, received).(*events.DomainEventReceived)
	require.True(t, ok)
	assert.Equal(t, events.DomainFormSubmitted, domainEvent.DomainType)
	assert.Equal(t, "f-1", domainEvent.Payload["form_id"])
}

func TestUnhandledEventsAreAcked(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.StepFailedType, func(ctx context.Context, event any) error {
		received <- event

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler for step.completed; it must be acked, not block the stream.
	unhandled := events.StepCompleted{
		BaseEvent:   events.NewBaseEvent(events.StepCompletedType, "acct-1"),
		ExecutionID: "exec-1",
	}
	require.NoError(t, bus.Publish(ctx, "contact-1", unhandled))

	handled := events.StepFailed{
		BaseEvent:   events.NewBaseEvent(events.StepFailedType, "acct-1"),
		ExecutionID: "exec-1",
		Error:       "boom",
	}
	require.NoError(t, bus.Publish(ctx, "contact-1", handled))

	failed, ok := waitFor(t, received).(*events.StepFailed)
	require.True(t, ok)
	assert.Equal(t, "boom", failed.Error)
}

func TestGenerateIDIsUnique(t *testing.T) {
	bus := newTestBus(t)

	seen := make(map[string]bool)

	for range 100 {
		id := bus.GenerateID()
		assert.NotEmpty(t, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
