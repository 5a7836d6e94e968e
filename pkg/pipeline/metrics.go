package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors updated by a Pipeline.
type Metrics struct {
	readingsTotal   *prometheus.CounterVec
	persistFailures prometheus.Counter
	historyFailures prometheus.Counter
	notifyFailures  prometheus.Counter
	classifySeconds prometheus.Histogram
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		readingsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vitalguard_readings_total",
				Help: "Readings scored, by status and source",
			},
			[]string{"status", "source"},
		),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vitalguard_persist_failures_total",
			Help: "Readings that could not be stored",
		}),
		historyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vitalguard_history_failures_total",
			Help: "History reads that fell back to an empty history",
		}),
		notifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vitalguard_notify_failures_total",
			Help: "Anomaly events that could not be published",
		}),
		classifySeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vitalguard_classify_duration_seconds",
			Help:    "Time spent classifying a reading",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}
}
