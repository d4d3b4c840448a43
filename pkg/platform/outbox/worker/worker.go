package worker

import (
	"context"
	"log/slog"
	"time"

	"basecamp/internal/platform/kafka/producer"
	"basecamp/pkg/platform/outbox"
	"basecamp/pkg/platform/outbox/metrics"
)

// Worker polls the outbox and publishes entries to Kafka. Delivery is
// at-least-once: an entry published but not marked is published again.
type Worker struct {
	store        outbox.Store
	publisher    producer.Publisher
	topic        string
	batchSize    int
	pollInterval time.Duration
	retention    time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) { w.topic = topic }
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithRetention sets how long published entries are kept; zero disables purging.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) { w.retention = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithNow(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

func New(store outbox.Store, publisher producer.Publisher, opts ...Option) *Worker {
	w := &Worker{
		store:        store,
		publisher:    publisher,
		topic:        "screening.events",
		batchSize:    100,
		pollInterval: 500 * time.Millisecond,
		retention:    7 * 24 * time.Hour,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled, then drains what is left under a short
// deadline. It always returns nil so it can sit in an errgroup.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	purge := time.NewTicker(time.Hour)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case <-ticker.C:
			w.PollOnce(ctx)
		case <-purge.C:
			w.purge(ctx)
		}
	}
}

// PollOnce publishes one batch and returns how many entries were marked.
func (w *Worker) PollOnce(ctx context.Context) int {
	start := w.now()

	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to fetch outbox entries", "error", err)
		w.incFailures()
		return 0
	}
	if len(entries) == 0 {
		w.updateDepth(ctx)
		return 0
	}
	if w.metrics != nil {
		w.metrics.BatchSize.Observe(float64(len(entries)))
	}

	published := 0
	for _, entry := range entries {
		if err := w.publish(ctx, entry); err != nil {
			w.logger.ErrorContext(ctx, "failed to publish outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			w.incFailures()
			continue
		}
		if err := w.store.MarkProcessed(ctx, entry.ID, w.now()); err != nil {
			w.logger.ErrorContext(ctx, "failed to mark outbox entry processed",
				"id", entry.ID,
				"error", err,
			)
			continue
		}
		published++
		if w.metrics != nil {
			w.metrics.PublishedTotal.Inc()
		}
	}

	w.logger.DebugContext(ctx, "outbox batch published",
		"published", published,
		"fetched", len(entries),
		"duration_ms", w.now().Sub(start).Milliseconds(),
	)
	w.updateDepth(ctx)
	return published
}

func (w *Worker) publish(ctx context.Context, entry *outbox.Entry) error {
	start := w.now()
	err := w.publisher.Produce(ctx, &producer.Message{
		Topic: w.topic,
		Key:   []byte(entry.AggregateID),
		Value: entry.Payload,
		Headers: map[string]string{
			"outbox_id":      entry.ID.String(),
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID,
			"event_type":     entry.EventType,
		},
	})
	if err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.PublishDuration.Observe(w.now().Sub(start).Seconds())
	}
	return nil
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	w.logger.Info("draining outbox worker")
	for ctx.Err() == nil {
		if w.PollOnce(ctx) == 0 {
			return
		}
	}
}

func (w *Worker) purge(ctx context.Context) {
	if w.retention <= 0 {
		return
	}
	n, err := w.store.DeleteProcessedBefore(ctx, w.now().Add(-w.retention))
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to purge outbox", "error", err)
		return
	}
	if w.metrics != nil {
		w.metrics.PurgedTotal.Add(float64(n))
	}
}

func (w *Worker) updateDepth(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	n, err := w.store.CountPending(ctx)
	if err != nil {
		return
	}
	w.metrics.PendingDepth.Set(float64(n))
	if n == 0 {
		w.metrics.OldestPendingAge.Set(0)
		return
	}
	if aged, ok := w.store.(interface {
		OldestPending(context.Context) (time.Time, bool, error)
	}); ok {
		if created, found, err := aged.OldestPending(ctx); err == nil && found {
			w.metrics.OldestPendingAge.Set(w.now().Sub(created).Seconds())
		}
	}
}

func (w *Worker) incFailures() {
	if w.metrics != nil {
		w.metrics.PublishFailures.Inc()
	}
}
