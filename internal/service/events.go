package service

import (
	"context"

	"github.com/rs/zerolog"

	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"
)

// publishEvents fans committed domain events out to subscribers. Publishing is
// best-effort: the state change is already durable, so failures are only logged.
func publishEvents(ctx context.Context, log zerolog.Logger, pub ports.EventPublisher, events []domain.Event) {
	if pub == nil || len(events) == 0 {
		return
	}
	if err := pub.Publish(ctx, events...); err != nil {
		log.Warn().Err(err).Int("count", len(events)).Msg("failed to publish domain events")
	}
}
