package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

func testProcess(t *testing.T) (*Process, *bytes.Buffer, *int) {
	t.Helper()
	buf := &bytes.Buffer{}
	p := newProcess("worker", &config.Config{App: config.AppConfig{Env: "test"}},
		logger.New(logger.Options{ServiceName: "worker", Output: buf, Format: "json"}))
	code := -1
	p.exit = func(c int) { code = c }
	return p, buf, &code
}

func TestCloseRunsNewestFirst(t *testing.T) {
	p, buf, _ := testProcess(t)
	var order []string
	p.Defer("database", func() error { order = append(order, "database"); return nil })
	p.Defer("redis", func() error { order = append(order, "redis"); return errors.New("conn reset") })

	p.Close()
	require.Equal(t, []string{"redis", "database"}, order)
	require.Contains(t, buf.String(), "error closing redis")

	p.Close()
	require.Len(t, order, 2)
}

func TestMustClosesThenExits(t *testing.T) {
	p, _, code := testProcess(t)
	closed := false
	p.Defer("database", func() error { closed = true; return nil })

	p.Must("fine", nil)
	require.Equal(t, -1, *code)
	require.False(t, closed)

	p.Must("failed to bootstrap redis", errors.New("dial tcp: refused"))
	require.Equal(t, 1, *code)
	require.True(t, closed)
}

func TestFinish(t *testing.T) {
	p, buf, code := testProcess(t)
	p.Finish(context.Background(), context.Canceled)
	require.Equal(t, -1, *code)
	require.Contains(t, buf.String(), "worker shutting down gracefully")

	p.Finish(context.Background(), errors.New("subscription deleted"))
	require.Equal(t, 1, *code)
	require.Contains(t, buf.String(), "worker stopped unexpectedly")
}

func TestContextCarriesIdentity(t *testing.T) {
	p, buf, _ := testProcess(t)
	ctx, stop := p.Context(map[string]any{"jobs": []string{"low_stock"}})
	defer stop()

	p.Logger.Info(ctx, "hello")
	require.Contains(t, buf.String(), `"serviceKind":"worker"`)
	require.Contains(t, buf.String(), `"env":"test"`)
	require.Contains(t, buf.String(), `"jobs":["low_stock"]`)
	require.Equal(t, "worker", p.Config.Service.Kind)
}

func TestServeMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	p, _, _ := testProcess(t)
	p.Config.Service.MetricsAddr = addr
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "printz_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.ServeMetrics(ctx, reg)

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
}
