package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/pkg/redis"
)

func newLockStore(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return redis.NewWithCmdable(raw), srv
}

func TestRedisLockSingleOwner(t *testing.T) {
	store, srv := newLockStore(t)
	ctx := context.Background()
	key := store.LockKey(LockName)

	first, err := NewRedisLock(store, key, time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, key, time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Minute, srv.TTL(key))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, second.Release(ctx))
	require.True(t, srv.Exists(key), "non-owner release must keep the key")

	require.NoError(t, first.Release(ctx))
	require.False(t, srv.Exists(key))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockReleaseAfterExpiryKeepsNewOwner(t *testing.T) {
	store, srv := newLockStore(t)
	ctx := context.Background()
	key := store.LockKey(LockName)

	stale, _ := NewRedisLock(store, key, time.Minute)
	fresh, _ := NewRedisLock(store, key, time.Minute)

	ok, err := stale.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Minute)
	ok, err = fresh.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, stale.Release(ctx))
	require.True(t, srv.Exists(key))
}

func TestNewRedisLockValidation(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	require.Error(t, err)

	store, _ := newLockStore(t)
	_, err = NewRedisLock(store, "", 0)
	require.Error(t, err)

	lock, err := NewRedisLock(store, "k", 0)
	require.NoError(t, err)
	require.Equal(t, defaultLockTTL, lock.ttl)
}

func TestCycleLockTTL(t *testing.T) {
	require.Equal(t, 4*30*time.Minute+lockSlack, CycleLockTTL(30*time.Minute, 4))
	require.Equal(t, 10*time.Minute+lockSlack, CycleLockTTL(10*time.Minute, 0))
	require.Equal(t, defaultLockTTL, CycleLockTTL(0, 4))
	require.Less(t, CycleLockTTL(30*time.Minute, 4), 24*time.Hour, "a crashed holder must not cost the next nightly cycle")
}
