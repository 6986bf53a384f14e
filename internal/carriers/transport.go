package carriers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/printz/fulfillment-backend/pkg/config"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

const (
	defaultTimeout = 15 * time.Second
	// Upstream bodies are echoed into errors; keep them short.
	errorBodyLimit = 512
)

var errMissingTracking = errors.New("tracking number missing")

// ErrForeignTracking marks a webhook whose tracking number is booked with a
// different carrier than the one pushing it.
var ErrForeignTracking = errors.New("tracking number belongs to another carrier")

type callObserver interface {
	ObserveCall(carrier, operation string, err error, elapsed time.Duration)
}

// Option configures a carrier client.
type Option func(*transport)

func WithBaseURL(url string) Option {
	return func(t *transport) {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			t.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(t *transport) {
		if client != nil {
			t.http = client
		}
	}
}

func WithMetrics(m callObserver) Option {
	return func(t *transport) { t.metrics = m }
}

func WithLogger(logg *logger.Logger) Option {
	return func(t *transport) {
		if logg != nil {
			t.logg = logg
		}
	}
}

// transport is the HTTP plumbing shared by every carrier client: base URL,
// rate limiting, JSON encoding and upstream error mapping.
type transport struct {
	carrier string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	headers http.Header
	metrics callObserver
	logg    *logger.Logger
}

func newTransport(carrier string, cfg config.CarrierConfig, opts ...Option) *transport {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	t := &transport{
		carrier: carrier,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(limit, burst),
		headers: http.Header{},
		logg:    logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *transport) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	started := time.Now()
	defer func() {
		if t.metrics != nil {
			t.metrics.ObserveCall(t.carrier, op, err, time.Since(started))
		}
	}()

	if err := t.limiter.Wait(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, t.carrier+" rate limit wait")
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode "+t.carrier+" request")
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+t.carrier+" request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range t.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, t.carrier+" request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+t.carrier+" response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstreamError(t.carrier, op, resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+t.carrier+" response")
	}
	return nil
}

// upstreamError maps a non-2xx reply. A 4xx means the carrier refused this
// request (bad address, unknown order) and is a validation error, so it never
// counts against the carrier's breaker. Auth, throttling and 5xx stay
// dependency errors.
func upstreamError(carrier, op string, status int, raw []byte) error {
	code, msg := pkgerrors.CodeDependency, fmt.Sprintf("%s %s failed", carrier, op)
	if callerRejection(status) {
		code, msg = pkgerrors.CodeValidation, fmt.Sprintf("%s rejected %s", carrier, op)
	}
	return pkgerrors.New(code, msg).
		WithDetails(map[string]any{
			"carrier": carrier,
			"status":  status,
			"body":    truncate(string(raw), errorBodyLimit),
		})
}

func callerRejection(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return status >= 400 && status < 500
}

// rejected reports a 2xx response whose envelope says the call failed.
func rejected(carrier, op, message string) error {
	if message == "" {
		message = "rejected by carrier"
	}
	return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("%s %s: %s", carrier, op, truncate(message, errorBodyLimit))).
		WithDetails(map[string]any{"carrier": carrier})
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, sep)
}

func invalidWebhook(carrier string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+carrier+" webhook payload")
}

func parseTime(layouts []string, value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}
