package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DefaultReplayTTL = 72 * time.Hour

type replayStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookReplayKey(source, deliveryID string) string
}

// ReplayGuard remembers processed deliveries per source so a redelivered
// webhook is acknowledged without being applied twice.
type ReplayGuard struct {
	store replayStore
	ttl   time.Duration
}

func NewReplayGuard(store replayStore, ttl time.Duration) (*ReplayGuard, error) {
	if store == nil {
		return nil, errors.New("replay store is required")
	}
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	return &ReplayGuard{store: store, ttl: ttl}, nil
}

// Claim marks the delivery as seen. It returns false when it was already
// claimed.
func (g *ReplayGuard) Claim(ctx context.Context, source, key string) (bool, error) {
	if key == "" {
		return false, errors.New("delivery key is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookReplayKey(source, key), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim webhook delivery: %w", err)
	}
	return set, nil
}

// Release forgets a claim so a failed delivery can be retried.
func (g *ReplayGuard) Release(ctx context.Context, source, key string) error {
	return g.store.Del(ctx, g.store.WebhookReplayKey(source, key))
}
