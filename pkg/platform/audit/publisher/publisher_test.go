package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "basecamp/pkg/platform/audit"
	"basecamp/pkg/platform/audit/metrics"
)

type failingStore struct {
	err error
}

func (s *failingStore) Append(_ context.Context, _ audit.Event) error {
	return s.err
}

func (s *failingStore) ListByRecord(_ context.Context, _ string) ([]audit.Event, error) {
	return nil, nil
}

// blockingStore holds every Append until release is closed.
type blockingStore struct {
	*audit.MemoryStore
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, event audit.Event) error {
	<-s.release
	return s.MemoryStore.Append(ctx, event)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestPublisher_EmitStoresEvent(t *testing.T) {
	pub := New(audit.NewMemoryStore())

	err := pub.Emit(context.Background(), audit.Event{RecordID: "rec-1", Action: audit.ActionScreeningSubmitted})
	require.NoError(t, err)

	events, err := pub.ListByRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionScreeningSubmitted, events[0].Action)
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	pub := New(audit.NewMemoryStore())

	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{RecordID: "rec-1", Action: audit.ActionScreeningViewed}))
	after := time.Now()

	events, err := pub.ListByRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.Before(before))
	assert.False(t, events[0].Timestamp.After(after))
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	pub := New(audit.NewMemoryStore())
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, pub.Emit(context.Background(), audit.Event{RecordID: "rec-1", Timestamp: at}))

	events, err := pub.ListByRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, at, events[0].Timestamp)
}

func TestPublisher_SyncEmitReturnsStoreError(t *testing.T) {
	storeErr := errors.New("append failed")
	m := metrics.New(prometheus.NewRegistry())
	pub := New(&failingStore{err: storeErr}, WithMetrics(m))

	err := pub.Emit(context.Background(), audit.Event{Action: audit.ActionCancelRequested})
	require.ErrorIs(t, err, storeErr)
	assert.InDelta(t, 1, promtest.ToFloat64(m.PersistFailures), 0)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := audit.NewMemoryStore()
	m := metrics.New(prometheus.NewRegistry())
	pub := New(store, WithAsyncBuffer(16), WithLogger(discard), WithMetrics(m))

	for range 5 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{RecordID: "rec-1", Action: audit.ActionScreeningViewed}))
	}
	pub.Close()

	assert.Equal(t, 5, store.Count())
	assert.InDelta(t, 5, promtest.ToFloat64(m.EventsPersisted.WithLabelValues(string(audit.ActionScreeningViewed))), 0)
	assert.InDelta(t, 0, promtest.ToFloat64(m.QueueDepth), 0)

	err := pub.Emit(context.Background(), audit.Event{RecordID: "rec-1"})
	require.Error(t, err, "emit after close is refused")
}

func TestPublisher_AsyncDropsWhenFull(t *testing.T) {
	store := &blockingStore{MemoryStore: audit.NewMemoryStore(), release: make(chan struct{})}
	m := metrics.New(prometheus.NewRegistry())
	pub := New(store, WithAsyncBuffer(1), WithLogger(discard), WithMetrics(m))

	// The drain goroutine takes at most one event and blocks in Append; the
	// buffer then holds one more, so the third emit of a burst must drop.
	var errs int
	for range 3 {
		if err := pub.Emit(context.Background(), audit.Event{RecordID: "rec-1"}); err != nil {
			errs++
		}
	}
	close(store.release)
	pub.Close()

	assert.GreaterOrEqual(t, errs, 1)
	assert.InDelta(t, float64(errs), promtest.ToFloat64(m.EventsDropped), 0)
	assert.Equal(t, 3-errs, store.Count())
}
