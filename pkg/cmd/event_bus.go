package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/driftline/journey/pkg/channels/gochannel"
	"github.com/driftline/journey/pkg/channels/kafka"
	"github.com/driftline/journey/pkg/eventbus"
)

// NewEventBus builds the event bus for the given provider. Kafka is the
// production transport; gochannel serves local single-process runs.
func NewEventBus(provider, serviceName string, logger *slog.Logger) (eventbus.EventBus, message.Publisher, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	var (
		pub message.Publisher
		sub message.Subscriber
		err error
	)

	switch provider {
	case "kafka":
		pub, sub, err = kafka.CreateChannel(wmLogger, serviceName)
	case "gochannel":
		pub, sub, err = gochannel.CreateChannel(wmLogger)
	default:
		return nil, nil, fmt.Errorf("unsupported event bus provider %q", provider)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s channel: %w", provider, err)
	}

	return eventbus.NewWatermillEventBus(pub, sub), pub, nil
}
