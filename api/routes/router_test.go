package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/api/controllers"
	internalwebhooks "github.com/printz/fulfillment-backend/internal/webhooks"
	"github.com/printz/fulfillment-backend/pkg/auth"
	"github.com/printz/fulfillment-backend/pkg/auth/session"
	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessions struct{}

func (stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubConsumer struct {
	calls int
}

func (s *stubConsumer) HandleCarrier(ctx context.Context, carrier string, body []byte) (string, error) {
	s.calls++
	return internalwebhooks.ResultApplied, nil
}

func (s *stubConsumer) HandlePayOS(ctx context.Context, body []byte) (string, error) {
	s.calls++
	return internalwebhooks.ResultApplied, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "printz", ExpirationMinutes: 10},
	}
}

func newTestRouter(t *testing.T, consumer *stubConsumer) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "router-test", Level: logger.ParseLevel("debug"), Output: &strings.Builder{}}),
		Pingers:  map[string]controllers.Pinger{"db": stubPinger{}},
		Sessions: stubSessions{},
		Metrics:  metrics.NewHTTPMetrics(reg),
		Gatherer: reg,
		Webhooks: consumer,
		CarrierWebhookAuth: map[string]internalwebhooks.Authenticator{
			"ghn": internalwebhooks.TokenAuthenticator{Header: "Token", Token: "ghn-token"},
		},
		PayOSWebhookAuth: internalwebhooks.PayOSAuthenticator{ChecksumKey: "checksum"},
	}), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "ops@printz.vn",
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, &stubConsumer{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMetricsEndpointExposesHTTPSeries(t *testing.T) {
	router, _ := newTestRouter(t, &stubConsumer{})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestCustomerRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, &stubConsumer{})

	for _, path := range []string{"/api/me", "/api/swag-orders", "/api/orders", "/api/swag-packs", "/api/address/suggest"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	router, cfg := newTestRouter(t, &stubConsumer{})

	for _, path := range []string{"/api/admin/products", "/api/admin/kitting/queue", "/api/admin/circuit-breakers", "/api/admin/outbox/dead-letters"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", bearer(t, cfg, enums.RoleCustomer))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestAdminOnlyRoutesRejectStaff(t *testing.T) {
	router, cfg := newTestRouter(t, &stubConsumer{})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/circuit-breakers/ghn/reset", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCarrierWebhookRoute(t *testing.T) {
	consumer := &stubConsumer{}
	router, _ := newTestRouter(t, consumer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/carriers/ghn", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, consumer.calls)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/carriers/ghn", strings.NewReader(`{"OrderCode":"GHN1"}`))
	req.Header.Set("Token", "ghn-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, consumer.calls)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/carriers/unknown", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPayOSWebhookRouteRejectsUnsigned(t *testing.T) {
	consumer := &stubConsumer{}
	router, _ := newTestRouter(t, consumer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/payos", strings.NewReader(`{"data":{}}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, consumer.calls)
}
