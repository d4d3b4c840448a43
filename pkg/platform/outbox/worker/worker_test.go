package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"basecamp/internal/platform/kafka/producer"
	"basecamp/pkg/platform/outbox"
	"basecamp/pkg/platform/outbox/metrics"
)

type stubPublisher struct {
	mu       sync.Mutex
	messages []*producer.Message
	failFor  map[string]bool
}

func (p *stubPublisher) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[string(msg.Key)] {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

type WorkerSuite struct {
	suite.Suite
	store     *outbox.MemoryStore
	publisher *stubPublisher
	metrics   *metrics.Metrics
	now       time.Time
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.store = outbox.NewMemoryStore()
	s.publisher = &stubPublisher{failFor: map[string]bool{}}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *WorkerSuite) newWorker() *Worker {
	return New(s.store, s.publisher,
		WithTopic("screening.events"),
		WithMetrics(s.metrics),
		WithNow(func() time.Time { return s.now }),
	)
}

func (s *WorkerSuite) append(aggregateID string, offset time.Duration) *outbox.Entry {
	e := outbox.NewEntry("screening", aggregateID, "screening.status_changed", []byte(`{"status":"submitted"}`), s.now.Add(offset))
	s.Require().NoError(s.store.Append(context.Background(), e))
	return e
}

func (s *WorkerSuite) TestPollOnce() {
	ctx := context.Background()

	s.Run("publishes pending entries keyed by aggregate", func() {
		s.SetupTest()
		first := s.append("scr_1", 0)
		s.append("scr_2", time.Second)

		n := s.newWorker().PollOnce(ctx)
		s.Equal(2, n)
		s.Require().Len(s.publisher.messages, 2)

		msg := s.publisher.messages[0]
		s.Equal("screening.events", msg.Topic)
		s.Equal("scr_1", string(msg.Key))
		s.Equal(first.ID.String(), msg.Headers["outbox_id"])
		s.Equal("screening.status_changed", msg.Headers["event_type"])

		pending, err := s.store.CountPending(ctx)
		s.Require().NoError(err)
		s.Zero(pending)
		s.InDelta(2, testutil.ToFloat64(s.metrics.PublishedTotal), 0)
	})

	s.Run("failed publish leaves entry pending for the next poll", func() {
		s.SetupTest()
		s.append("scr_1", 0)
		s.append("scr_2", time.Second)
		s.publisher.failFor["scr_1"] = true

		s.Equal(1, s.newWorker().PollOnce(ctx))
		pending, err := s.store.CountPending(ctx)
		s.Require().NoError(err)
		s.Equal(int64(1), pending)
		s.InDelta(1, testutil.ToFloat64(s.metrics.PublishFailures), 0)
		s.InDelta(1, testutil.ToFloat64(s.metrics.PendingDepth), 0)

		delete(s.publisher.failFor, "scr_1")
		s.Equal(1, s.newWorker().PollOnce(ctx))
	})
}

func TestRun_DrainsOnShutdown(t *testing.T) {
	store := outbox.NewMemoryStore()
	pub := &stubPublisher{failFor: map[string]bool{}}
	require.NoError(t, store.Append(context.Background(),
		outbox.NewEntry("screening", "scr_1", "screening.status_changed", []byte(`{}`), time.Now())))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(store, pub, WithPollInterval(time.Hour))
	require.NoError(t, w.Run(ctx))
	assert.Len(t, pub.messages, 1)
}
