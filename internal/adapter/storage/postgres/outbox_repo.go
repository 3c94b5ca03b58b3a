package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type outboxRepo struct{}

// NewEventOutboxRepo creates a PostgreSQL-backed EventOutboxRepository. Events
// land in the event_outbox table in the same transaction as the state change
// that produced them, so a crash between commit and publish loses nothing.
func NewEventOutboxRepo() ports.EventOutboxRepository {
	return &outboxRepo{}
}

// Append serializes and inserts the events within the caller's transaction.
func (r *outboxRepo) Append(ctx context.Context, tx pgx.Tx, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_outbox (id, event_name, payload, occurred_at)
		VALUES ($1, $2, $3, $4)`

	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", evt.EventName(), err)
		}
		if _, err := tx.Exec(ctx, query, uuid.New(), evt.EventName(), payload, evt.OccurredAt()); err != nil {
			return fmt.Errorf("insert outbox event %s: %w", evt.EventName(), err)
		}
	}
	return nil
}
