package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchMetrics exposes counters/histograms for batch dispatch flows.
type DispatchMetrics struct {
	sendsTotal    *prometheus.CounterVec
	batchesTotal  *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	commandsTotal *prometheus.CounterVec
	jobsInFlight  prometheus.Gauge
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	m := &DispatchMetrics{
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smsgateway",
			Subsystem: "dispatch",
			Name:      "sends_total",
			Help:      "Per-number send outcomes (success, failure, skipped)",
		}, []string{"provider", "outcome"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smsgateway",
			Subsystem: "dispatch",
			Name:      "batches_total",
			Help:      "Completed batch runs",
		}, []string{"source", "status"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smsgateway",
			Subsystem: "dispatch",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a batch run",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 900, 1800},
		}, []string{"source"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smsgateway",
			Subsystem: "inbound",
			Name:      "commands_total",
			Help:      "Inbound chat commands by parse/submit result",
		}, []string{"result"}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smsgateway",
			Subsystem: "dispatch",
			Name:      "jobs_in_flight",
			Help:      "Batch jobs currently running",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sendsTotal, m.batchesTotal, m.batchDuration, m.commandsTotal, m.jobsInFlight)
	return m
}

func (m *DispatchMetrics) ObserveSend(provider, outcome string) {
	if m == nil {
		return
	}
	m.sendsTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *DispatchMetrics) ObserveBatch(source, status string, seconds float64) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(source, status).Inc()
	m.batchDuration.WithLabelValues(source).Observe(seconds)
}

func (m *DispatchMetrics) ObserveCommand(result string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(result).Inc()
}

// JobStarted and JobFinished track the in-flight gauge.
func (m *DispatchMetrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsInFlight.Inc()
}

func (m *DispatchMetrics) JobFinished() {
	if m == nil {
		return
	}
	m.jobsInFlight.Dec()
}
