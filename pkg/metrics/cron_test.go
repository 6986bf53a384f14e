package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsSplitsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	finished := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)

	m.ObserveRun("payment-reconcile", nil, 250*time.Millisecond, finished)
	m.ObserveRun("payment-reconcile", errors.New("payos timeout"), time.Second, finished.Add(time.Hour))
	m.ObserveRun("", nil, time.Millisecond, finished)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	runs := findMetricFamily(mfs, "printz_cron_job_runs_total")
	require.NotNil(t, runs)
	require.Equal(t, 1.0, seriesValue(t, runs, map[string]string{"job": "payment-reconcile", "outcome": "success"}).GetCounter().GetValue())
	require.Equal(t, 1.0, seriesValue(t, runs, map[string]string{"job": "payment-reconcile", "outcome": "failure"}).GetCounter().GetValue())
	require.Equal(t, 1.0, seriesValue(t, runs, map[string]string{"job": "unknown", "outcome": "success"}).GetCounter().GetValue())

	last := findMetricFamily(mfs, "printz_cron_job_last_success_timestamp_seconds")
	require.NotNil(t, last)
	require.Equal(t, float64(finished.Unix()), seriesValue(t, last, map[string]string{"job": "payment-reconcile"}).GetGauge().GetValue())

	runtime := findMetricFamily(mfs, "printz_cron_job_duration_seconds")
	require.NotNil(t, runtime)
	hist := seriesValue(t, runtime, map[string]string{"job": "payment-reconcile"}).GetHistogram()
	require.Equal(t, uint64(2), hist.GetSampleCount())
	require.InDelta(t, 1.25, hist.GetSampleSum(), 0.0001)
}

func TestNilCronMetricsIsNoop(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("job", nil, time.Second, time.Now())
	NewCronJobMetrics(nil).ObserveRun("job", errors.New("x"), time.Second, time.Now())
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func seriesValue(t *testing.T, mf *dto.MetricFamily, labels map[string]string) *dto.Metric {
	t.Helper()
	for _, metric := range mf.GetMetric() {
		matched := 0
		for _, pair := range metric.GetLabel() {
			if want, ok := labels[pair.GetName()]; ok && want == pair.GetValue() {
				matched++
			}
		}
		if matched == len(labels) {
			return metric
		}
	}
	t.Fatalf("%s: no series with labels %v", mf.GetName(), labels)
	return nil
}
