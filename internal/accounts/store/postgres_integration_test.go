//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"basecamp/internal/accounts/models"
	"basecamp/pkg/domain"
	"basecamp/pkg/testutil"
	"basecamp/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgresStore(s.pg.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestFindOrCreateAccount() {
	ctx := context.Background()
	first, created, err := s.store.FindOrCreateAccount(ctx, &models.Account{
		ID: domain.NewUserID(), Email: "dana@example.com", DisplayName: "Dana", CredentialHash: "h", CreatedAt: testutil.T0,
	})
	s.Require().NoError(err)
	s.True(created)

	again, created, err := s.store.FindOrCreateAccount(ctx, &models.Account{
		ID: domain.NewUserID(), Email: "Dana@Example.com", DisplayName: "Dana", CredentialHash: "h", CreatedAt: testutil.T0,
	})
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, again.ID)
}

func (s *PostgresStoreSuite) TestUpsertProfile() {
	ctx := context.Background()
	acct, _, err := s.store.FindOrCreateAccount(ctx, &models.Account{
		ID: domain.NewUserID(), Email: "p@example.com", DisplayName: "P", CredentialHash: "h", CreatedAt: testutil.T0,
	})
	s.Require().NoError(err)

	profile := &models.Profile{UserID: acct.ID, RecordID: domain.NewScreeningID(), Tier: "standard", Risk: "low", ScreenedAt: testutil.T0}
	s.Require().NoError(s.store.UpsertProfile(ctx, profile))
	profile.Risk = "medium"
	s.Require().NoError(s.store.UpsertProfile(ctx, profile))

	got, err := s.store.FindProfile(ctx, acct.ID)
	s.Require().NoError(err)
	s.Equal("medium", got.Risk)
	s.WithinDuration(testutil.T0, got.ScreenedAt, time.Second)
}
