package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

// Identity is the authenticated caller as seen by handlers.
type Identity struct {
	UserID    uuid.UUID
	Role      enums.UserRole
	SessionID string
	IP        string
}

type identityKey struct{}

// IdentityFrom returns the caller Auth attached to ctx, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != uuid.Nil
}

// WithIdentity attaches a caller without a session or address, for handler
// tests that skip token minting.
func WithIdentity(ctx context.Context, userID uuid.UUID, role enums.UserRole) context.Context {
	return withIdentity(ctx, Identity{UserID: userID, Role: role})
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// callerScope partitions per-caller state such as idempotency keys.
func callerScope(ctx context.Context) string {
	if id, ok := IdentityFrom(ctx); ok {
		return id.UserID.String()
	}
	return "anonymous"
}
