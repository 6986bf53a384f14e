package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewWithCmdable(raw), srv
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)

	for i := 1; i <= 3; i++ {
		allowed, count, err := client.FixedWindowAllow(ctx, "signin:ip:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		require.EqualValues(t, i, count)
		require.Equal(t, i <= 2, allowed)
	}
	require.Equal(t, time.Minute, srv.TTL("printz:rate_limit:signin:ip:1.2.3.4"))

	srv.FastForward(time.Minute + time.Second)
	allowed, count, err := client.FixedWindowAllow(ctx, "signin:ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	require.EqualValues(t, 1, count)
}

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	key := client.WebhookReplayKey("ghn", "GHN123")
	first, err := client.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	require.True(t, first)

	second, err := client.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	require.False(t, second)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	require.ErrorIs(t, err, Nil)
}

func TestDeleteIfEquals(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)
	require.NoError(t, srv.Set("printz:lock:cron-worker", "owner-a"))

	deleted, err := client.DeleteIfEquals(ctx, "printz:lock:cron-worker", "owner-b")
	require.NoError(t, err)
	require.False(t, deleted)
	require.True(t, srv.Exists("printz:lock:cron-worker"))

	deleted, err = client.DeleteIfEquals(ctx, "printz:lock:cron-worker", "owner-a")
	require.NoError(t, err)
	require.True(t, deleted)
	require.False(t, srv.Exists("printz:lock:cron-worker"))
}

func TestMembersRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)
	key := client.UserSessionsKey("u-1")

	require.NoError(t, client.AddMember(ctx, key, "jti-1", time.Hour))
	require.NoError(t, client.AddMember(ctx, key, "jti-2", 2*time.Hour))
	require.Equal(t, 2*time.Hour, srv.TTL(key))

	require.NoError(t, client.RemoveMember(ctx, key, "jti-1"))
	members, err := client.Members(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []string{"jti-2"}, members)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("scope", "id"):    "printz:idempotency:scope:id",
		client.RateLimitKey("signin"):           "printz:rate_limit:signin",
		client.AccessSessionKey("jti"):          "printz:session:access:jti",
		client.UserSessionsKey("u-1"):           "printz:session:user:u-1",
		client.WebhookReplayKey("payos", "123"): "printz:webhook:payos:123",
		client.LockKey(" cron "):                "printz:lock:cron",
	}
	for got, want := range cases {
		require.Equal(t, want, got)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	require.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	require.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", PoolSize: 7})
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://:pw@cache:6380/2", PoolSize: 9})
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 9, opts.PoolSize)
}
