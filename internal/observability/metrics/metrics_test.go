package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)

	m.ObserveSend("thaibulksms", "success")
	m.ObserveSend("thaibulksms", "success")
	m.ObserveSend("thaibulksms", "failure")
	m.ObserveCommand("accepted")
	m.JobStarted()
	m.JobStarted()
	m.JobFinished()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sendsTotal.WithLabelValues("thaibulksms", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sendsTotal.WithLabelValues("thaibulksms", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsInFlight))
}

func TestDispatchMetricsBatchHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)
	m.ObserveBatch("line", "completed", 2.5)
	m.ObserveBatch("line", "failed", 0.1)

	families, err := reg.Gather()
	require.NoError(t, err)

	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "smsgateway_dispatch_batch_duration_seconds" {
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist)
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.InDelta(t, 2.6, hist.GetSampleSum(), 0.0001)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchesTotal.WithLabelValues("line", "completed")))
}

func TestDispatchMetricsDefaultRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	prev := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	defer func() { prometheus.DefaultRegisterer = prev }()

	m := NewDispatchMetrics(nil)
	m.ObserveSend("twilio", "skipped")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sendsTotal.WithLabelValues("twilio", "skipped")))
}

func TestDispatchMetricsNilSafe(t *testing.T) {
	var m *DispatchMetrics
	m.ObserveSend("p", "success")
	m.ObserveBatch("cli", "completed", 1)
	m.ObserveCommand("usage")
	m.JobStarted()
	m.JobFinished()
}
