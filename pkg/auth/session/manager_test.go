package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/pkg/config"
	redisclient "github.com/printz/fulfillment-backend/pkg/redis"
)

var testJWT = config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60}

func newTestManager(t *testing.T) (*Manager, *redisclient.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	client := redisclient.NewWithCmdable(raw)
	manager, err := NewManager(client, testJWT)
	require.NoError(t, err)
	return manager, client, srv
}

func TestGenerateStoresHashOnly(t *testing.T) {
	manager, client, srv := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	token, err := manager.Generate(ctx, userID, "jti-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	stored, err := srv.Get(client.AccessSessionKey("jti-1"))
	require.NoError(t, err)
	require.NotContains(t, stored, token)
	require.Contains(t, stored, userID.String())
	require.Equal(t, testJWT.RefreshTokenTTL(), srv.TTL(client.AccessSessionKey("jti-1")))

	ok, err := manager.HasSession(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRotateReplacesSession(t *testing.T) {
	manager, client, srv := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	token, err := manager.Generate(ctx, userID, "jti-1")
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, "jti-1", "wrong")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	newID, newToken, err := manager.Rotate(ctx, "jti-1", token)
	require.NoError(t, err)
	require.NotEqual(t, token, newToken)

	require.False(t, srv.Exists(client.AccessSessionKey("jti-1")))
	members, err := srv.Members(client.UserSessionsKey(userID.String()))
	require.NoError(t, err)
	require.Equal(t, []string{newID}, members)

	_, _, err = manager.Rotate(ctx, "jti-1", token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeIsIdempotent(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Generate(ctx, uuid.New(), "jti-1")
	require.NoError(t, err)
	require.NoError(t, manager.Revoke(ctx, "jti-1"))
	require.NoError(t, manager.Revoke(ctx, "jti-1"))

	ok, err := manager.HasSession(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevokeUserEndsEverySession(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()
	staff, other := uuid.New(), uuid.New()

	for _, jti := range []string{"laptop", "phone"} {
		_, err := manager.Generate(ctx, staff, jti)
		require.NoError(t, err)
	}
	_, err := manager.Generate(ctx, other, "desk")
	require.NoError(t, err)

	n, err := manager.RevokeUser(ctx, staff)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for jti, want := range map[string]bool{"laptop": false, "phone": false, "desk": true} {
		ok, err := manager.HasSession(ctx, jti)
		require.NoError(t, err)
		require.Equal(t, want, ok, jti)
	}
}

func TestNewManagerRejectsShortRefreshTTL(t *testing.T) {
	_, err := NewManager(redisclient.NewWithCmdable(nil), config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	require.Error(t, err)

	_, err = NewManager(nil, testJWT)
	require.Error(t, err)
}
