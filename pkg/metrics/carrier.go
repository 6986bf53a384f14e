package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CarrierMetrics covers outbound carrier API calls and circuit breaker state.
type CarrierMetrics struct {
	calls        *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
	webhooks     *prometheus.CounterVec
}

func NewCarrierMetrics(reg prometheus.Registerer) *CarrierMetrics {
	if reg == nil {
		return &CarrierMetrics{}
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "printz_carrier_calls_total",
		Help: "Carrier API calls by carrier, operation and outcome.",
	}, []string{"carrier", "operation", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "printz_carrier_call_duration_seconds",
		Help:    "Carrier API latency by carrier and operation.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"carrier", "operation"})
	breakerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "printz_circuit_breaker_state",
		Help: "Circuit breaker state per carrier (0 closed, 1 half-open, 2 open).",
	}, []string{"carrier"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "printz_webhooks_total",
		Help: "Inbound webhooks by source and result.",
	}, []string{"source", "result"})
	reg.MustRegister(calls, latency, breakerState, webhooks)
	return &CarrierMetrics{calls: calls, latency: latency, breakerState: breakerState, webhooks: webhooks}
}

func (m *CarrierMetrics) ObserveCall(carrier, operation string, err error, elapsed time.Duration) {
	if m == nil || m.calls == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(normalizeLabel(carrier), operation, outcome).Inc()
	m.latency.WithLabelValues(normalizeLabel(carrier), operation).Observe(elapsed.Seconds())
}

// SetBreakerState expects 0 closed, 1 half-open, 2 open.
func (m *CarrierMetrics) SetBreakerState(carrier string, state int) {
	if m == nil || m.breakerState == nil {
		return
	}
	m.breakerState.WithLabelValues(normalizeLabel(carrier)).Set(float64(state))
}

func (m *CarrierMetrics) IncWebhook(source, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(source), result).Inc()
}
