package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "basecamp/pkg/domain-errors"
	audit "basecamp/pkg/platform/audit"
	"basecamp/pkg/platform/audit/metrics"
)

// Publisher persists audit events, either inline or through a bounded
// buffer drained by one goroutine.
type Publisher struct {
	store   audit.Store
	events  chan audit.Event
	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics *metrics.Metrics
	async   bool

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

type Option func(*Publisher)

// WithAsyncBuffer queues up to size events for background persistence.
// Emit never blocks on a full buffer; the event is dropped instead.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan audit.Event, size)
			p.async = true
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.async {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.events {
		if p.metrics != nil {
			p.metrics.QueueDepth.Dec()
		}
		if err := p.persist(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"event", string(event.Action),
				"record_id", event.RecordID,
			)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	start := time.Now()
	err := p.store.Append(ctx, event)
	if p.metrics != nil {
		p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			p.metrics.PersistFailures.Inc()
		} else {
			p.metrics.EventsPersisted.WithLabelValues(string(event.Action)).Inc()
		}
	}
	return err
}

// Close stops accepting events and waits for the buffer to drain.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		if p.async {
			close(p.events)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if !p.async {
		return p.persist(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return dErrors.New(dErrors.CodeInternal, "audit publisher closed")
	}
	select {
	case p.events <- event:
		if p.metrics != nil {
			p.metrics.QueueDepth.Inc()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.metrics != nil {
			p.metrics.EventsDropped.Inc()
		}
		p.logger.Warn("audit buffer full, event dropped",
			"event", string(event.Action),
			"record_id", event.RecordID,
		)
		return dErrors.New(dErrors.CodeInternal, "audit buffer full")
	}
}

func (p *Publisher) ListByRecord(ctx context.Context, recordID string) ([]audit.Event, error) {
	return p.store.ListByRecord(ctx, recordID)
}
