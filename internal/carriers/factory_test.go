package carriers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/internal/circuitbreaker"
	"github.com/printz/fulfillment-backend/pkg/config"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

func TestFactoryListAndGet(t *testing.T) {
	reg := circuitbreaker.NewRegistry(config.CircuitBreakerConfig{}, nil, nil)
	f, err := NewFactory(config.CarriersConfig{GHNToken: "tok"}, testCatalog(t), reg)
	require.NoError(t, err)

	list := f.List()
	require.Len(t, list, 5)
	require.Equal(t, Info{Code: "ghn", Name: "Giao Hàng Nhanh", Enabled: true}, list[0])
	require.False(t, list[1].Enabled)

	_, err = f.Get("ghn")
	require.NoError(t, err)
	_, err = f.Get("ghtk")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.Get("pigeon")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	parser, err := f.Parser("ghtk")
	require.NoError(t, err)
	require.Equal(t, "ghtk", parser.Code())

	require.Len(t, reg.List(), 5)
}

func TestFactoryBreakerStopsCallingFailingCarrier(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reg := circuitbreaker.NewRegistry(config.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}, nil, nil)
	f, err := NewFactory(config.CarriersConfig{GHNToken: "tok", GHNBaseURL: srv.URL}, testCatalog(t), reg)
	require.NoError(t, err)
	ghn, err := f.Get("ghn")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err = ghn.TrackShipment(context.Background(), "GHN1")
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	}
	require.EqualValues(t, 2, hits.Load())
	status, err := reg.Get("ghn")
	require.NoError(t, err)
	require.Equal(t, circuitbreaker.StateOpen, status.State)
}

func TestFactoryBreakerIgnoresCarrierInputRejections(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":400,"message":"Sai địa chỉ"}`))
	}))
	defer srv.Close()

	reg := circuitbreaker.NewRegistry(config.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}, nil, nil)
	f, err := NewFactory(config.CarriersConfig{GHNToken: "tok", GHNBaseURL: srv.URL}, testCatalog(t), reg)
	require.NoError(t, err)
	ghn, err := f.Get("ghn")
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err = ghn.CreateShipment(context.Background(), sampleRequest())
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	}
	require.EqualValues(t, 6, hits.Load())
	status, err := reg.Get("ghn")
	require.NoError(t, err)
	require.Equal(t, circuitbreaker.StateClosed, status.State)
}
