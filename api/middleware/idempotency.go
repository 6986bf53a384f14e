package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/printz/fulfillment-backend/api/responses"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	pkgredis "github.com/printz/fulfillment-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replayed"

	orderKeyTTL        = 24 * time.Hour
	shipmentKeyTTL     = 7 * 24 * time.Hour
	// DefaultInFlightTTL covers a bulk booking of a large order, where carrier
	// calls queue behind the per-carrier rate limit.
	DefaultInFlightTTL = 10 * time.Minute
	maxKeyLength       = 128
)

// IdempotencyStore is the Redis surface the middleware needs.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type guardedRoute struct {
	method   string
	segments []string
	ttl      time.Duration
}

func guard(method, template string, ttl time.Duration) guardedRoute {
	return guardedRoute{method: method, segments: splitPath(template), ttl: ttl}
}

// Requests that take payment, move stock or book carriers must carry an
// Idempotency-Key. Shipment bookings keep their key for a week since
// carriers charge per booking.
var guardedRoutes = []guardedRoute{
	guard(http.MethodPost, "/api/swag-orders", orderKeyTTL),
	guard(http.MethodPost, "/api/swag-orders/{id}/payment-link", orderKeyTTL),
	guard(http.MethodPost, "/api/orders", orderKeyTTL),
	guard(http.MethodPost, "/api/orders/{id}/payment-link", orderKeyTTL),
	guard(http.MethodPost, "/api/admin/inventory/{variantId}/purchase", orderKeyTTL),
	guard(http.MethodPost, "/api/admin/inventory/{variantId}/adjust", orderKeyTTL),
	guard(http.MethodPost, "/api/admin/kitting/{orderId}/complete", shipmentKeyTTL),
	guard(http.MethodPost, "/api/admin/shipping/{orderId}/bulk", shipmentKeyTTL),
	guard(http.MethodPost, "/api/admin/shipping/{orderId}/recipients/{recipientId}", shipmentKeyTTL),
}

// storedResponse doubles as the in-flight marker: Status 0 means the first
// request with this key has not finished yet.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the first response for a repeated Idempotency-Key on
// guarded routes. Keys are scoped per user and path. 5xx responses are not
// kept so the client can retry. inFlight bounds how long an unfinished first
// request holds its key; zero means DefaultInFlightTTL.
func Idempotency(store IdempotencyStore, inFlight time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if inFlight <= 0 {
		inFlight = DefaultInFlightTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := guardTTL(r.Method, r.URL.Path)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			switch {
			case clientKey == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			case len(clientKey) > maxKeyLength:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(callerScope(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			marker, _ := json.Marshal(storedResponse{RequestHash: hash})
			claimed, err := store.SetNX(ctx, key, string(marker), inFlight)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayOrReject(ctx, store, key, hash, w, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			completed := false
			defer func() {
				if !completed {
					// handler panicked or failed server-side; free the key for a retry
					if err := store.Del(context.WithoutCancel(ctx), key); err != nil && logg != nil {
						logg.Error(ctx, "release idempotency key", err)
					}
				}
			}()
			next.ServeHTTP(capture, r)
			status := capture.code()
			if status >= http.StatusInternalServerError {
				return
			}
			completed = true

			raw, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			})
			if err == nil {
				err = store.Set(context.WithoutCancel(ctx), key, string(raw), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(logg.WithField(ctx, "idempotency_key", clientKey), "store idempotent response", err)
			}
		})
	}
}

func replayOrReject(ctx context.Context, store IdempotencyStore, key, hash string, w http.ResponseWriter, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, pkgredis.Nil) {
		// the first request released its key between SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is being retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency key"))
		return
	}
	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotent response"))
		return
	}
	switch {
	case prior.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case prior.Status == 0:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
	default:
		if prior.ContentType != "" {
			w.Header().Set("Content-Type", prior.ContentType)
		}
		w.Header().Set(replayHeader, "true")
		w.WriteHeader(prior.Status)
		_, _ = w.Write(prior.Body)
	}
}

func guardTTL(method, path string) (time.Duration, bool) {
	segments := splitPath(path)
	for _, route := range guardedRoutes {
		if route.method == method && matchSegments(route.segments, segments) {
			return route.ttl, true
		}
	}
	return 0, false
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// matchSegments treats "{name}" template segments as wildcards for one
// non-empty path segment.
func matchSegments(template, path []string) bool {
	if len(template) != len(path) {
		return false
	}
	for i, seg := range template {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
