package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"basecamp/internal/screening/models"
	"basecamp/pkg/domain"
	"basecamp/pkg/platform/outbox"
	"basecamp/pkg/requestcontext"
	"basecamp/pkg/testutil"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx    context.Context
	events *outbox.MemoryStore
	store  *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), testutil.T0.Add(time.Minute))
	s.events = outbox.NewMemoryStore()
	s.store = NewInMemoryStore(s.events)
}

func (s *InMemoryStoreSuite) create(rec *models.Record) *models.Record {
	s.Require().NoError(s.store.Create(s.ctx, rec))
	return rec
}

func (s *InMemoryStoreSuite) TestCreate() {
	s.Run("assigns the first version and emits a status event", func() {
		rec := s.create(testutil.NewRecordBuilder().Build())
		s.Equal(int64(1), rec.Version)

		entries := s.events.Entries()
		s.Require().Len(entries, 1)
		s.Equal(EventStatusChanged, entries[0].EventType)
		s.Equal(rec.ID.String(), entries[0].AggregateID)

		var ev Event
		s.Require().NoError(json.Unmarshal(entries[0].Payload, &ev))
		s.Equal(models.StatusPending, ev.To)
		s.Empty(ev.From)
		s.NotEqual(rec.Email, ev.Email)
	})

	s.Run("rejects a second active record for the same email", func() {
		s.create(testutil.NewRecordBuilder().WithEmail("dup@example.com").Build())
		err := s.store.Create(s.ctx, testutil.NewRecordBuilder().WithEmail("DUP@example.com").Build())
		s.ErrorIs(err, models.ErrDuplicateActive)
	})

	s.Run("allows a new record once the previous one failed", func() {
		s.create(testutil.NewRecordBuilder().WithEmail("again@example.com").
			WithStatus(models.StatusProcessingFailed).Build())
		s.NoError(s.store.Create(s.ctx, testutil.NewRecordBuilder().WithEmail("again@example.com").Build()))
	})
}

func (s *InMemoryStoreSuite) TestReadsReturnCopies() {
	rec := s.create(testutil.NewRecordBuilder().Build())

	got, err := s.store.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	got.Status = models.StatusCancelled

	again, err := s.store.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, again.Status)
}

func (s *InMemoryStoreSuite) TestFindByEmail() {
	old := s.create(testutil.NewRecordBuilder().WithEmail("a@example.com").
		WithStatus(models.StatusCancelled).CreatedAt(testutil.T0).Build())
	latest := s.create(testutil.NewRecordBuilder().WithEmail("a@example.com").
		CreatedAt(testutil.T0.Add(time.Hour)).Build())

	got, err := s.store.FindByEmail(s.ctx, "A@example.com")
	s.Require().NoError(err)
	s.Equal(latest.ID, got.ID)

	active, err := s.store.FindActiveByEmail(s.ctx, "a@example.com")
	s.Require().NoError(err)
	s.Equal(latest.ID, active.ID)
	s.NotEqual(old.ID, active.ID)

	_, err = s.store.FindByEmail(s.ctx, "missing@example.com")
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdate() {
	s.Run("applies the patch and stamps the context time", func() {
		rec := s.create(testutil.NewRecordBuilder().Build())

		got, err := s.store.Update(s.ctx, rec.ID, models.Patch{
			Status:           models.StatusPtr(models.StatusSubmitted),
			ExternalReportID: models.StringPtr("rpt_1"),
		})
		s.Require().NoError(err)
		s.Equal(models.StatusSubmitted, got.Status)
		s.Equal("rpt_1", got.ExternalReportID)
		s.Equal(int64(2), got.Version)
		s.Equal(requestcontext.Now(s.ctx), got.UpdatedAt)
	})

	s.Run("rejects transitions outside the table", func() {
		rec := s.create(testutil.NewRecordBuilder().WithEmail("t@example.com").Build())
		_, err := s.store.Update(s.ctx, rec.ID, models.Patch{Status: models.StatusPtr(models.StatusClear)})
		s.ErrorIs(err, models.ErrInvalidTransition)

		got, err := s.store.FindByID(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, got.Status)
	})

	s.Run("honors the version guard", func() {
		rec := s.create(testutil.NewRecordBuilder().WithEmail("v@example.com").Build())
		stale := int64(7)
		_, err := s.store.Update(s.ctx, rec.ID, models.Patch{CancelRequested: models.BoolPtr(true), IfVersion: &stale})
		s.ErrorIs(err, models.ErrVersionConflict)
	})

	s.Run("unknown id", func() {
		_, err := s.store.Update(s.ctx, domain.NewScreeningID(), models.Patch{})
		s.ErrorIs(err, models.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestUpdateEmitsLifecycleEvents() {
	rec := s.create(testutil.NewRecordBuilder().WithStatus(models.StatusInProgress).WithReportID("rpt").Build())
	_, err := s.store.Update(s.ctx, rec.ID, models.Patch{
		Status:   models.StatusPtr(models.StatusClear),
		Decision: &models.Decision{Risk: models.RiskLow, DecidedAt: testutil.T0},
	})
	s.Require().NoError(err)
	_, err = s.store.Update(s.ctx, rec.ID, models.Patch{UserID: &testutil.TestIDs.User1})
	s.Require().NoError(err)
	_, err = s.store.Update(s.ctx, rec.ID, models.Patch{PollAttempts: models.IntPtr(3)})
	s.Require().NoError(err)

	var types []string
	for _, e := range s.events.Entries() {
		types = append(types, e.EventType)
	}
	s.ElementsMatch([]string{EventStatusChanged, EventStatusChanged, EventAccountProvisioned}, types)
}

func (s *InMemoryStoreSuite) TestListByStatus() {
	second := s.create(testutil.NewRecordBuilder().WithEmail("b@example.com").
		WithStatus(models.StatusSubmitted).CreatedAt(testutil.T0.Add(2 * time.Hour)).Build())
	first := s.create(testutil.NewRecordBuilder().WithEmail("c@example.com").
		WithStatus(models.StatusInProgress).CreatedAt(testutil.T0).Build())
	s.create(testutil.NewRecordBuilder().WithEmail("d@example.com").
		WithStatus(models.StatusCancelled).Build())

	got, err := s.store.ListByStatus(s.ctx, models.StatusSubmitted, models.StatusInProgress)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(first.ID, got[0].ID)
	s.Equal(second.ID, got[1].ID)

	all, err := s.store.ListByStatus(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *InMemoryStoreSuite) TestConcurrentUpdatesSerialize() {
	rec := s.create(testutil.NewRecordBuilder().Build())
	version := rec.Version

	result := testutil.RunConcurrent(20, func(int) error {
		_, err := s.store.Update(s.ctx, rec.ID, models.Patch{
			CancelRequested: models.BoolPtr(true),
			IfVersion:       &version,
		})
		return err
	})
	s.Equal(int32(1), result.Successes)
	s.Equal(int32(19), result.Conflicts)
}
