package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/printz/fulfillment-backend/api/responses"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

const maxRateLimitBody = 64 << 10

// WindowCounter is satisfied by the Redis client.
type WindowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitRule throttles one auth surface per client IP and per submitted
// email. A zero limit disables that dimension.
type RateLimitRule struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func (r RateLimitRule) active() bool {
	return r.Window > 0 && (r.PerIP > 0 || r.PerEmail > 0)
}

// AuthRateLimit rejects requests over the rule's limits with 429 and a
// Retry-After header. Counter failures surface as 503.
func AuthRateLimit(rule RateLimitRule, counter WindowCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	name := strings.ToLower(strings.TrimSpace(rule.Name))
	if name == "" {
		name = "auth"
	}

	return func(next http.Handler) http.Handler {
		if !rule.active() || counter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if rule.PerIP > 0 {
				if ip := ClientIP(r); ip != "" {
					if !check(w, r, counter, logg, rule, name+":ip:"+ip, rule.PerIP, map[string]any{"ip": ip}) {
						return
					}
				}
			}

			if rule.PerEmail > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if hash := emailHash(body); hash != "" {
					if !check(w, r, counter, logg, rule, name+":email:"+hash, rule.PerEmail, map[string]any{"email_hash": hash}) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func check(w http.ResponseWriter, r *http.Request, counter WindowCounter, logg *logger.Logger, rule RateLimitRule, scope string, limit int, fields map[string]any) bool {
	ctx := r.Context()
	allowed, attempts, err := counter.FixedWindowAllow(ctx, scope, int64(limit), rule.Window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
		return false
	}
	if allowed {
		return true
	}

	fields["scope"] = scope
	fields["attempts"] = attempts
	fields["limit"] = limit
	logg.Warn(logg.WithFields(ctx, fields), "auth rate limit exceeded")

	w.Header().Set("Retry-After", strconv.Itoa(int(rule.Window.Round(time.Second).Seconds())))
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
	return false
}

// emailHash keys the email counter without keeping addresses in Redis.
func emailHash(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:16])
}
