//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "basecamp/pkg/platform/audit"
	"basecamp/pkg/testutil"
	"basecamp/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = New(s.pg.DB)
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func (s *StoreSuite) TestAppendAndList() {
	ctx := context.Background()
	first := audit.Event{
		Timestamp: testutil.T0,
		Action:    audit.ActionScreeningSubmitted,
		RecordID:  "rec-1",
		Actor:     audit.ActorCandidate,
		Email:     "d***@example.com",
		ClientIP:  "203.0.113.0",
		UserAgent: "Firefox 128.0 on Linux",
		RequestID: "req-1",
	}
	second := audit.Event{
		Timestamp: testutil.T0.Add(time.Hour),
		Action:    audit.ActionCancelRequested,
		RecordID:  "rec-1",
		Actor:     "ops@example.com",
	}
	other := audit.Event{Timestamp: testutil.T0, Action: audit.ActionScreeningViewed, RecordID: "rec-2"}

	s.Require().NoError(s.store.Append(ctx, second))
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, other))

	events, err := s.store.ListByRecord(ctx, "rec-1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionScreeningSubmitted, events[0].Action)
	s.Equal("Firefox 128.0 on Linux", events[0].UserAgent)
	s.True(events[0].Timestamp.Equal(testutil.T0))
	s.Equal(audit.ActionCancelRequested, events[1].Action)

	recent, err := s.store.ListRecent(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)
	s.Equal(audit.ActionCancelRequested, recent[0].Action)
}

func (s *StoreSuite) TestAppendIsIdempotentOnID() {
	ctx := context.Background()
	events, err := s.store.ListByRecord(ctx, "rec-1")
	s.Require().NoError(err)
	s.Empty(events)

	e := audit.Event{Timestamp: testutil.T0, Action: audit.ActionRerunRequested, RecordID: "rec-1"}
	e.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	s.Require().NoError(s.store.Append(ctx, e))
	s.Require().NoError(s.store.Append(ctx, e))

	events, err = s.store.ListByRecord(ctx, "rec-1")
	s.Require().NoError(err)
	s.Len(events, 1)
}
