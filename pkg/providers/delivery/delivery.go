// Package delivery implements the email and SMS sender contracts by handing
// requests to the delivery pipeline over the message bus. Actual rendering and
// provider integration happen downstream.
package delivery

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/driftline/journey/pkg/protocol"
)

// Delivery request topics.
const (
	EmailTopic = "journey.deliveries.email"
	SMSTopic   = "journey.deliveries.sms"
)

// EmailPublisher hands email requests to the delivery pipeline. The returned
// message id doubles as the engagement correlation id downstream.
type EmailPublisher struct {
	bus *requestBus
}

// NewEmailPublisher creates a bus-backed email sender.
func NewEmailPublisher(logger *slog.Logger, pub message.Publisher) *EmailPublisher {
	return &EmailPublisher{bus: newRequestBus(logger, pub)}
}

var _ protocol.EmailSender = (*EmailPublisher)(nil)

func (p *EmailPublisher) Send(ctx context.Context, msg protocol.EmailMessage) (string, error) {
	return p.bus.request(ctx, EmailTopic, msg.ContactID, msg)
}

// SMSPublisher hands SMS requests to the delivery pipeline.
type SMSPublisher struct {
	bus *requestBus
}

// NewSMSPublisher creates a bus-backed SMS sender.
func NewSMSPublisher(logger *slog.Logger, pub message.Publisher) *SMSPublisher {
	return &SMSPublisher{bus: newRequestBus(logger, pub)}
}

var _ protocol.SMSSender = (*SMSPublisher)(nil)

func (p *SMSPublisher) Send(ctx context.Context, msg protocol.SMSMessage) (string, error) {
	return p.bus.request(ctx, SMSTopic, msg.ContactID, msg)
}

type requestBus struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func newRequestBus(logger *slog.Logger, pub message.Publisher) *requestBus {
	return &requestBus{
		publisher: pub,
		logger:    logger.With("module", "delivery"),
	}
}

func (b *requestBus) request(ctx context.Context, topic, key string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	id := watermill.NewULID()
	msg := message.NewMessage(id, data)
	msg.Metadata.Set("key", key)
	msg.SetContext(ctx)

	if err := b.publisher.Publish(topic, msg); err != nil {
		return "", err
	}

	b.logger.DebugContext(ctx, "Delivery request published",
		"topic", topic, "message_id", id)

	return id, nil
}
