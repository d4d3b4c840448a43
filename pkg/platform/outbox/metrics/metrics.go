package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the outbox worker's Prometheus series.
type Metrics struct {
	PendingDepth     prometheus.Gauge
	OldestPendingAge prometheus.Gauge
	PublishedTotal   prometheus.Counter
	PublishFailures  prometheus.Counter
	PublishDuration  prometheus.Histogram
	BatchSize        prometheus.Histogram
	PurgedTotal      prometheus.Counter
}

// New registers the series with reg; nil uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		PendingDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "basecamp_outbox_pending_total",
			Help: "Current number of unpublished outbox entries",
		}),
		OldestPendingAge: f.NewGauge(prometheus.GaugeOpts{
			Name: "basecamp_outbox_oldest_pending_seconds",
			Help: "Age in seconds of the oldest unpublished outbox entry",
		}),
		PublishedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "basecamp_outbox_published_total",
			Help: "Outbox entries published to Kafka",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "basecamp_outbox_publish_failures_total",
			Help: "Outbox fetch or publish failures",
		}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "basecamp_outbox_publish_duration_seconds",
			Help:    "Time taken to publish one outbox entry",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "basecamp_outbox_batch_size",
			Help:    "Entries processed per poll",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		PurgedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "basecamp_outbox_purged_total",
			Help: "Published outbox entries removed by retention",
		}),
	}
}
