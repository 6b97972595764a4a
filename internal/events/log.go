package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogPublisher writes events to the log instead of a broker.
// Used when no RabbitMQ URL is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	log.Debug().Str("event", routingKey).Interface("payload", payload).Msg("event")
	return nil
}
