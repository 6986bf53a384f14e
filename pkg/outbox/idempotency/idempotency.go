// Package idempotency keeps Pub/Sub consumers from acting twice on a
// redelivered domain event.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager records which envelope event ids each consumer has handled.
// Entries expire after ttl; Pub/Sub stops redelivering long before that.
type Manager struct {
	store store
	ttl   time.Duration
}

func NewManager(st store, ttl time.Duration) (*Manager, error) {
	if st == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("idempotency ttl must be positive")
	}
	return &Manager{store: st, ttl: ttl}, nil
}

// Claim marks eventID as handled by consumer. It returns false when an
// earlier delivery already claimed it.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
}

// Release drops a claim after the consumer failed, so the next delivery is
// processed again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" || eventID == uuid.Nil {
		return "", errors.New("consumer and event id are required")
	}
	return m.store.IdempotencyKey("consumer:"+consumer, eventID.String()), nil
}
