package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/s8nclone/receipt-pipeline/pkg/redis"
)

// PreCheckGuard is a fast Redis-backed pre-check that short-circuits obviously-duplicate
// deliveries before they reach Postgres; the WebhookLog unique index on webhookId remains the
// authoritative dedup gate (§4.1 step 4), this only spares the DB round trip for hot retries.
// Adapted from the same SetNX-based idempotency check the platform used for its Stripe
// subscription webhook.
type PreCheckGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewPreCheckGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*PreCheckGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &PreCheckGuard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark reports whether webhookID was already seen and marks it seen either way.
func (g *PreCheckGuard) CheckAndMark(ctx context.Context, webhookID string) (bool, error) {
	if webhookID == "" {
		return false, errors.New("webhook id is required")
	}
	key := g.store.IdempotencyKey(g.scope, webhookID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}
