// Package outbox implements the transactional outbox: workflow events are
// appended next to the state change that produced them and published to
// Kafka by a background worker.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one event awaiting publication.
type Entry struct {
	ID            uuid.UUID
	AggregateType string // "screening"
	AggregateID   string // screening record ID
	EventType     string // e.g. "screening.status_changed"
	Payload       []byte // JSON
	CreatedAt     time.Time
	ProcessedAt   *time.Time // nil until published
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, createdAt time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt,
	}
}

// Appender is the write side used by stores that emit events.
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
}

// Store is outbox persistence. Implementations must be safe for concurrent use.
type Store interface {
	Appender

	// FetchUnprocessed returns up to limit pending entries, oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
	// DeleteProcessedBefore removes published entries older than before.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
