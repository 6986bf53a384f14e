package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	internalwebhooks "github.com/printz/fulfillment-backend/internal/webhooks"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

type fakeConsumer struct {
	carrierCalls int
	payosCalls   int
	lastCarrier  string
	lastBody     []byte
	result       string
	err          error
}

func (f *fakeConsumer) HandleCarrier(_ context.Context, carrier string, body []byte) (string, error) {
	f.carrierCalls++
	f.lastCarrier = carrier
	f.lastBody = body
	return f.result, f.err
}

func (f *fakeConsumer) HandlePayOS(_ context.Context, body []byte) (string, error) {
	f.payosCalls++
	f.lastBody = body
	return f.result, f.err
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newRouter(consumer Consumer) http.Handler {
	auths := map[string]internalwebhooks.Authenticator{
		"ghtk": internalwebhooks.HMACAuthenticator{Header: "X-GHTK-Signature", Secret: "ghtk-secret"},
		"ghn":  internalwebhooks.TokenAuthenticator{Header: "Token", Token: "ghn-token"},
	}
	r := chi.NewRouter()
	r.With(Authenticate(ByParam("carrier", auths), nil)).Post("/api/webhooks/carriers/{carrier}", Carrier(consumer, nil))
	r.With(Authenticate(Static(internalwebhooks.PayOSAuthenticator{ChecksumKey: "k"}), nil)).Post("/api/webhooks/payos", PayOS(consumer, nil))
	return r
}

func TestCarrierWebhookRejectsBadSignatureBeforeParsing(t *testing.T) {
	consumer := &fakeConsumer{result: internalwebhooks.ResultApplied}
	router := newRouter(consumer)

	body := []byte(`{"label_id":"S1","status_id":5}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/carriers/ghtk", bytes.NewReader(body))
	req.Header.Set("X-GHTK-Signature", sign("wrong", body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, consumer.carrierCalls)
}

func TestCarrierWebhookMissingTokenIsUnauthorized(t *testing.T) {
	consumer := &fakeConsumer{}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/carriers/ghn", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	newRouter(consumer).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, consumer.carrierCalls)
}

func TestCarrierWebhookUnknownCarrier(t *testing.T) {
	consumer := &fakeConsumer{}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/carriers/pigeon", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	newRouter(consumer).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Zero(t, consumer.carrierCalls)
}

func TestCarrierWebhookPassesRawBody(t *testing.T) {
	consumer := &fakeConsumer{result: internalwebhooks.ResultApplied}
	body := []byte(`{"label_id":"S1","status_id":5}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/carriers/ghtk", bytes.NewReader(body))
	req.Header.Set("X-GHTK-Signature", sign("ghtk-secret", body))
	rec := httptest.NewRecorder()
	newRouter(consumer).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true,"result":"applied"}`, rec.Body.String())
	require.Equal(t, "ghtk", consumer.lastCarrier)
	require.Equal(t, body, consumer.lastBody)
}

func TestCarrierWebhookFailureAsksForRetry(t *testing.T) {
	consumer := &fakeConsumer{result: internalwebhooks.ResultFailed, err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/carriers/ghn", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Token", "ghn-token")
	rec := httptest.NewRecorder()
	newRouter(consumer).ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, 1, consumer.carrierCalls)
}

func TestPayOSWebhookRejectsUnsigned(t *testing.T) {
	consumer := &fakeConsumer{}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payos", bytes.NewReader([]byte(`{"code":"00","data":{},"signature":"bad"}`)))
	rec := httptest.NewRecorder()
	newRouter(consumer).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, consumer.payosCalls)
}

func TestPayOSHandlerAcksProcessingErrors(t *testing.T) {
	consumer := &fakeConsumer{result: internalwebhooks.ResultFailed, err: errors.New("boom")}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payos", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	PayOS(consumer, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true,"result":"failed"}`, rec.Body.String())
}
