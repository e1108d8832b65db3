package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/driftline/journey/pkg/events"
)

// WatermillEventBus routes engine events over any watermill publisher and
// subscriber pair. Domain events travel on their own topic so the enroller can
// consume them without seeing engine chatter.
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func topicFor(eventType events.EventType) string {
	if eventType == events.DomainEventReceivedType {
		return events.DomainTopic
	}

	return events.Topic
}

// Publish sends the event keyed by the given partition key, usually the
// contact id so one contact's events stay ordered.
func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(topicFor(event.GetType()), msg)
}

// Subscribe starts consuming both topics and dispatching to registered
// handlers. Handlers must be registered before Subscribe is called.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	for _, topic := range []string{events.Topic, events.DomainTopic} {
		messages, err := eb.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return err
		}

		go eb.dispatch(ctx, messages)
	}

	return nil
}

func (eb *WatermillEventBus) dispatch(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

		handler, exists := eb.subscriptions[eventType]
		if !exists {
			msg.Ack()

			continue
		}

		event := newEvent(eventType)
		if event == nil {
			msg.Nack()

			continue
		}

		err := json.Unmarshal(msg.Payload, event)
		if err != nil {
			msg.Nack()

			continue
		}

		err = handler(ctx, event)
		if err != nil {
			msg.Nack()

			continue
		}

		msg.Ack()
	}
}

// newEvent maps an event type to an empty instance for unmarshalling.
func newEvent(eventType events.EventType) any {
	switch eventType {
	case events.DomainEventReceivedType:
		return &events.DomainEventReceived{}
	case events.ContactEnrolledType:
		return &events.ContactEnrolled{}
	case events.ExecutionResumeRequestedType:
		return &events.ExecutionResumeRequested{}
	case events.ExecutionStartedType:
		return &events.ExecutionStarted{}
	case events.ExecutionWaitingType:
		return &events.ExecutionWaiting{}
	case events.ExecutionCompletedType:
		return &events.ExecutionCompleted{}
	case events.ExecutionFailedType:
		return &events.ExecutionFailed{}
	case events.ExecutionCancelledType:
		return &events.ExecutionCancelled{}
	case events.GoalMatchedType:
		return &events.GoalMatched{}
	case events.GoalConvertedType:
		return &events.GoalConverted{}
	case events.StepCompletedType:
		return &events.StepCompleted{}
	case events.StepFailedType:
		return &events.StepFailed{}
	default:
		return nil
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
