package ports

import (
	"context"

	"wallet-ledger-engine/internal/core/domain"
)

// EventPublisher fans domain events out to subscribers after commit. Publish
// failures are logged by callers and never roll back the originating
// transaction.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event) error
}

// RateLimiter throttles money-moving endpoints per caller.
type RateLimiter interface {
	// Allow reports whether the request identified by key is within the
	// configured window limit.
	Allow(ctx context.Context, key string, limit int64, windowSeconds int) (*RateLimitDecision, error)
}

// RateLimitDecision holds the outcome of a rate limit check.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}
