package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basecamp/internal/accounts/models"
	"basecamp/pkg/domain"
	"basecamp/pkg/platform/sentinel"
)

func TestInMemoryFindOrCreateAccount(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	first, created, err := s.FindOrCreateAccount(ctx, &models.Account{ID: domain.NewUserID(), Email: "a@example.com"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.FindOrCreateAccount(ctx, &models.Account{ID: domain.NewUserID(), Email: "A@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, err = s.FindAccountByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryUpsertProfileKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	uid := domain.NewUserID()

	require.NoError(t, s.UpsertProfile(ctx, &models.Profile{UserID: uid, Risk: "low"}))
	first, err := s.FindProfile(ctx, uid)
	require.NoError(t, err)

	require.NoError(t, s.UpsertProfile(ctx, &models.Profile{UserID: uid, Risk: "medium"}))
	second, err := s.FindProfile(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "medium", second.Risk)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}
