package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the screening workflow.
type Metrics struct {
	Submitted         *prometheus.CounterVec
	DuplicateRejected prometheus.Counter
	Transitions       *prometheus.CounterVec
	PollAttempts      *prometheus.HistogramVec
	PollErrors        *prometheus.CounterVec
	ProviderDuration  *prometheus.HistogramVec
	WorkflowDuration  *prometheus.HistogramVec
	ActiveTasks       prometheus.Gauge
	NoticeFailures    prometheus.Counter
	Cancellations     prometheus.Counter
	Reruns            *prometheus.CounterVec
	TaskPanics        prometheus.Counter
}

// New registers the collectors on reg; nil uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Submitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "basecamp_screenings_submitted_total",
			Help: "Screening requests accepted, by provider and tier",
		}, []string{"provider", "tier"}),
		DuplicateRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "basecamp_screenings_duplicate_rejected_total",
			Help: "Submissions rejected because an active screening exists for the email",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "basecamp_screening_transitions_total",
			Help: "Status transitions written by the workflow",
		}, []string{"from", "to"}),
		PollAttempts: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "basecamp_screening_poll_attempts",
			Help:    "Polls needed before a report completed or the budget ran out",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 144},
		}, []string{"provider"}),
		PollErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "basecamp_screening_poll_errors_total",
			Help: "Provider poll calls that failed, by error category",
		}, []string{"provider", "category"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "basecamp_screening_provider_duration_ms",
			Help:    "Latency of provider calls in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"provider", "operation"}),
		WorkflowDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "basecamp_screening_workflow_duration_seconds",
			Help:    "Wall time from task start to its terminal status",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
		}, []string{"status"}),
		ActiveTasks: f.NewGauge(prometheus.GaugeOpts{
			Name: "basecamp_screening_active_tasks",
			Help: "Workflow tasks currently running in this process",
		}),
		NoticeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "basecamp_screening_notice_failures_total",
			Help: "Pre-adverse notices that could not be delivered",
		}),
		Cancellations: f.NewCounter(prometheus.CounterOpts{
			Name: "basecamp_screening_cancellations_total",
			Help: "Screenings moved to cancelled",
		}),
		Reruns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "basecamp_screening_reruns_total",
			Help: "Admin reruns by the recovery path taken",
		}, []string{"path"}),
		TaskPanics: f.NewCounter(prometheus.CounterOpts{
			Name: "basecamp_screening_task_panics_total",
			Help: "Workflow tasks that panicked and were recorded as internal failures",
		}),
	}
}

func (m *Metrics) ObserveProviderCall(provider, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderDuration.WithLabelValues(provider, operation).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}
