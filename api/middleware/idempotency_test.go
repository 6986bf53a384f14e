package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	pkgredis "github.com/printz/fulfillment-backend/pkg/redis"
)

type memoryStore struct {
	mu       sync.Mutex
	data     map[string]string
	claimTTL time.Duration
}

func newMemoryStore() *memoryStore { return &memoryStore{data: map[string]string{}} }

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.Nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimTTL = ttl
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func keyedRequest(method, path, key, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func TestGuardTTL(t *testing.T) {
	cases := []struct {
		method, path string
		want time.Duration
		ok   bool
	}{
		{http.MethodPost, "/api/swag-orders", orderKeyTTL, true},
		{http.MethodPost, "/api/swag-orders/", orderKeyTTL, true},
		{http.MethodPost, "/api/orders/7b0d/payment-link", orderKeyTTL, true},
		{http.MethodPost, "/api/admin/kitting/abc/complete", shipmentKeyTTL, true},
		{http.MethodPost, "/api/admin/shipping/abc/recipients/def", shipmentKeyTTL, true},
		{http.MethodPost, "/api/admin/shipping/abc/recipients/def/cancel", 0, false},
		{http.MethodPost, "/api/admin/shipping//bulk", 0, false},
		{http.MethodGet, "/api/swag-orders", 0, false},
		{http.MethodPost, "/api/auth/signin", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := guardTTL(tc.method, tc.path)
		require.Equal(t, tc.ok, ok, tc.path)
		require.Equal(t, tc.want, ttl, tc.path)
	}
}

func TestIdempotencyRequiresHeaderOnGuardedRoute(t *testing.T) {
	called := false
	handler := Idempotency(newMemoryStore(), 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/swag-orders", "", `{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, called)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(http.MethodGet, "/api/swag-orders", "", ""))
	require.True(t, called)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	calls := 0
	handler := Idempotency(newMemoryStore(), 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"orderNumber":"SW20260500001"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(http.MethodPost, "/api/swag-orders", "k-1", `{"name":"Tet gifts"}`))
	require.Equal(t, http.StatusCreated, first.Code)
	require.Empty(t, first.Header().Get(replayHeader))

	again := httptest.NewRecorder()
	handler.ServeHTTP(again, keyedRequest(http.MethodPost, "/api/swag-orders", "k-1", `{"name":"Tet gifts"}`))
	require.Equal(t, http.StatusCreated, again.Code)
	require.Equal(t, "true", again.Header().Get(replayHeader))
	require.Equal(t, "application/json", again.Header().Get("Content-Type"))
	require.JSONEq(t, first.Body.String(), again.Body.String())
	require.Equal(t, 1, calls)
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	handler := Idempotency(newMemoryStore(), 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/orders", "k-2", `{"qty":1}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/orders", "k-2", `{"qty":2}`))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), string(pkgerrors.CodeIdempotency))
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/admin/shipping/o-1/bulk", "k-3", `{}`))
	}
	require.Equal(t, 2, calls)
	require.Empty(t, store.data)
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newMemoryStore()
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/admin/kitting/o-1/complete", "k-4", `{}`))
	}()
	<-entered

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/admin/kitting/o-1/complete", "k-4", `{}`))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "in progress")

	close(release)
	<-done
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	store := newMemoryStore()
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	require.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/orders", "k-5", `{}`))
	})
	require.Empty(t, store.data)
}

func TestIdempotencyInFlightTTL(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) })

	store := newMemoryStore()
	Idempotency(store, 0, nil)(ok).ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/admin/shipping/o-1/bulk", "k-6", `{}`))
	require.Equal(t, DefaultInFlightTTL, store.claimTTL)

	store = newMemoryStore()
	Idempotency(store, 30*time.Minute, nil)(ok).ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/admin/shipping/o-1/bulk", "k-7", `{}`))
	require.Equal(t, 30*time.Minute, store.claimTTL)
}
