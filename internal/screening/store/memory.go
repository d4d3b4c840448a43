// Package store persists screening records.
package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"basecamp/internal/screening/models"
	"basecamp/pkg/domain"
	"basecamp/pkg/platform/outbox"
	"basecamp/pkg/requestcontext"
)

// InMemoryStore keeps records in process. Reads return copies.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.ScreeningID]*models.Record
	events  outbox.Appender
}

// NewInMemoryStore creates a store; events may be nil.
func NewInMemoryStore(events outbox.Appender) *InMemoryStore {
	return &InMemoryStore{
		records: make(map[domain.ScreeningID]*models.Record),
		events:  events,
	}
}

func (s *InMemoryStore) Create(ctx context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return models.ErrDuplicateActive
	}
	if rec.Status.Active() {
		if s.activeLocked(rec.Email) != nil {
			return models.ErrDuplicateActive
		}
	}
	cp := rec.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	s.records[rec.ID] = cp
	rec.Version = cp.Version
	s.emit(ctx, nil, cp)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ScreeningID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return rec.Clone(), nil
}

// FindByEmail returns the most recent record for email.
func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Record
	for _, rec := range s.records {
		if !strings.EqualFold(rec.Email, email) {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	return latest.Clone(), nil
}

func (s *InMemoryStore) FindActiveByEmail(_ context.Context, email string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec := s.activeLocked(email); rec != nil {
		return rec.Clone(), nil
	}
	return nil, models.ErrNotFound
}

func (s *InMemoryStore) activeLocked(email string) *models.Record {
	for _, rec := range s.records {
		if rec.Status.Active() && strings.EqualFold(rec.Email, email) {
			return rec
		}
	}
	return nil
}

// Update applies patch atomically and returns the stored result.
func (s *InMemoryStore) Update(ctx context.Context, id domain.ScreeningID, patch models.Patch) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	next := current.Clone()
	if err := patch.ApplyTo(next, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	s.records[id] = next
	s.emit(ctx, current, next)
	return next.Clone(), nil
}

// ListByStatus returns matching records oldest first; no statuses means all.
func (s *InMemoryStore) ListByStatus(_ context.Context, statuses ...models.Status) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Record, 0)
	for _, rec := range s.records {
		if len(statuses) == 0 || slices.Contains(statuses, rec.Status) {
			out = append(out, rec.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Record) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

// emit appends lifecycle events; append errors are ignored.
func (s *InMemoryStore) emit(ctx context.Context, before, after *models.Record) {
	if s.events == nil {
		return
	}
	for _, e := range events(before, after, requestcontext.Now(ctx)) {
		_ = s.events.Append(ctx, e)
	}
}
