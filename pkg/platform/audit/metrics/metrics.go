package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the audit publisher's Prometheus series.
type Metrics struct {
	QueueDepth      prometheus.Gauge
	EventsDropped   prometheus.Counter
	EventsPersisted *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

// New registers the series with reg; nil uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "basecamp_audit_queue_depth",
			Help: "Audit events waiting in the publisher buffer",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "basecamp_audit_events_dropped_total",
			Help: "Audit events dropped because the buffer was full",
		}),
		EventsPersisted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "basecamp_audit_events_persisted_total",
			Help: "Audit events written to the store, by action",
		}, []string{"action"}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "basecamp_audit_persist_failures_total",
			Help: "Audit events the store refused",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "basecamp_audit_persist_duration_seconds",
			Help:    "Time taken to write one audit event",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}
