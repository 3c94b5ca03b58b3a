package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet-ledger-engine/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// eventChannel is the pub/sub channel domain events are fanned out on.
const eventChannel = "wallet.events"

// EventPublisher implements ports.EventPublisher over Redis pub/sub. Delivery
// is at-most-once; the outbox table is the durable record, this is the live
// feed for subscribers.
type EventPublisher struct {
	client *goredis.Client
	log    zerolog.Logger
}

// NewEventPublisher creates a Redis pub/sub event publisher.
func NewEventPublisher(client *goredis.Client, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{client: client, log: log}
}

// eventEnvelope is the wire form of a published event.
type eventEnvelope struct {
	Name       string          `json:"name"`
	OccurredAt string          `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publish serializes and publishes each event. The first failure aborts the
// batch; callers treat publish errors as non-fatal.
func (p *EventPublisher) Publish(ctx context.Context, events ...domain.Event) error {
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", evt.EventName(), err)
		}
		env, err := json.Marshal(eventEnvelope{
			Name:       evt.EventName(),
			OccurredAt: evt.OccurredAt().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Payload:    payload,
		})
		if err != nil {
			return fmt.Errorf("marshal envelope %s: %w", evt.EventName(), err)
		}
		if err := p.client.Publish(ctx, eventChannel, env).Err(); err != nil {
			return fmt.Errorf("publish event %s: %w", evt.EventName(), err)
		}
		p.log.Debug().Str("event", evt.EventName()).Msg("domain event published")
	}
	return nil
}
