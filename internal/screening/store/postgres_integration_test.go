//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"basecamp/internal/screening/models"
	outboxpg "basecamp/pkg/platform/outbox/postgres"
	"basecamp/pkg/requestcontext"
	"basecamp/pkg/testutil"
	"basecamp/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	store  *PostgresStore
	outbox *outboxpg.Store
	ctx    context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgresStore(s.pg.DB)
	s.outbox = outboxpg.New(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), testutil.T0.Add(time.Minute))
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestRoundTripAndOutbox() {
	rec := testutil.NewRecordBuilder().Build()
	s.Require().NoError(s.store.Create(s.ctx, rec))

	got, err := s.store.Update(s.ctx, rec.ID, models.Patch{
		Status:           models.StatusPtr(models.StatusSubmitted),
		ExternalReportID: models.StringPtr("rpt_42"),
	})
	s.Require().NoError(err)
	s.Equal(int64(2), got.Version)

	loaded, err := s.store.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, loaded.Status)
	s.Equal("rpt_42", loaded.ExternalReportID)
	s.Equal(rec.Candidate, loaded.Candidate)
	s.Nil(loaded.Decision)
	s.Nil(loaded.UserID)

	pending, err := s.outbox.CountPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), pending)
}

func (s *PostgresStoreSuite) TestDuplicateActiveEmail() {
	s.Require().NoError(s.store.Create(s.ctx, testutil.NewRecordBuilder().WithEmail("x@example.com").Build()))
	err := s.store.Create(s.ctx, testutil.NewRecordBuilder().WithEmail("X@example.com").Build())
	s.ErrorIs(err, models.ErrDuplicateActive)

	pending, err := s.outbox.CountPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), pending, "rolled back insert leaves no event")
}

func (s *PostgresStoreSuite) TestClearWithUserAndDecision() {
	rec := testutil.NewRecordBuilder().WithStatus(models.StatusInProgress).WithReportID("rpt").Build()
	s.Require().NoError(s.store.Create(s.ctx, rec))

	_, err := s.store.Update(s.ctx, rec.ID, models.Patch{
		Status:   models.StatusPtr(models.StatusClear),
		Decision: &models.Decision{Risk: models.RiskLow, Reasons: []string{"no findings"}, DecidedAt: testutil.T0},
	})
	s.Require().NoError(err)
	got, err := s.store.Update(s.ctx, rec.ID, models.Patch{UserID: &testutil.TestIDs.User1})
	s.Require().NoError(err)
	s.True(got.Terminal())

	loaded, err := s.store.FindActiveByEmail(s.ctx, rec.Email)
	s.Require().NoError(err)
	s.Require().NotNil(loaded.Decision)
	s.Equal([]string{"no findings"}, loaded.Decision.Reasons)
	s.Require().NotNil(loaded.UserID)
	s.Equal(testutil.TestIDs.User1, *loaded.UserID)
}

func (s *PostgresStoreSuite) TestInvalidTransitionRollsBack() {
	rec := testutil.NewRecordBuilder().Build()
	s.Require().NoError(s.store.Create(s.ctx, rec))

	_, err := s.store.Update(s.ctx, rec.ID, models.Patch{Status: models.StatusPtr(models.StatusPendingAdverse)})
	s.ErrorIs(err, models.ErrInvalidTransition)

	loaded, err := s.store.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), loaded.Version)
}

func (s *PostgresStoreSuite) TestListByStatus() {
	a := testutil.NewRecordBuilder().WithEmail("a@example.com").WithStatus(models.StatusSubmitted).CreatedAt(testutil.T0).Build()
	b := testutil.NewRecordBuilder().WithEmail("b@example.com").WithStatus(models.StatusCancelled).Build()
	s.Require().NoError(s.store.Create(s.ctx, a))
	s.Require().NoError(s.store.Create(s.ctx, b))

	got, err := s.store.ListByStatus(s.ctx, models.StatusSubmitted, models.StatusInProgress)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(a.ID, got[0].ID)
}
