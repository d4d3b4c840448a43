// Package contract is a reusable test suite every provider adapter must pass.
package contract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basecamp/internal/screening/models"
	"basecamp/internal/screening/providers"
	"basecamp/internal/screening/providers/fake"
)

// Harness is one provider under test plus a way to choose the outcome of
// the next report it creates.
type Harness struct {
	Provider providers.Provider
	Arrange  func(o fake.Outcome)
}

// maxPolls bounds how long the suite waits for a report to complete.
const maxPolls = 10

// Run exercises the provider contract. newHarness is called per subtest so
// state does not leak between them.
func Run(t *testing.T, wantID string, newHarness func(t *testing.T) Harness) {
	t.Helper()

	t.Run("id is stable", func(t *testing.T) {
		h := newHarness(t)
		assert.Equal(t, wantID, h.Provider.ID())
	})

	t.Run("initiate returns distinct report ids", func(t *testing.T) {
		h := newHarness(t)
		first, err := h.Provider.Initiate(context.Background(), Request(models.TierStandard))
		require.NoError(t, err)
		second, err := h.Provider.Initiate(context.Background(), Request(models.TierBasic))
		require.NoError(t, err)
		assert.NotEmpty(t, first)
		assert.NotEqual(t, first, second)
	})

	t.Run("clear report completes without findings", func(t *testing.T) {
		h := newHarness(t)
		h.Arrange(fake.OutcomeClear)
		rep := initiateAndComplete(t, h.Provider)
		assert.Equal(t, providers.ResultClear, rep.Result)
		assert.Empty(t, rep.Findings)
	})

	t.Run("adverse report surfaces a disqualifying finding", func(t *testing.T) {
		h := newHarness(t)
		h.Arrange(fake.OutcomeAdverse)
		rep := initiateAndComplete(t, h.Provider)
		assert.NotEqual(t, providers.ResultClear, rep.Result)
		require.NotEmpty(t, rep.Findings)
		assert.NotEqual(t, providers.FindingOther, rep.Findings[0].Category)
	})

	t.Run("failed report is reported as failed", func(t *testing.T) {
		h := newHarness(t)
		h.Arrange(fake.OutcomeFailed)
		id, err := h.Provider.Initiate(context.Background(), Request(models.TierStandard))
		require.NoError(t, err)
		rep := pollUntilDone(t, h.Provider, id)
		assert.Equal(t, providers.ReportFailed, rep.Status)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		h := newHarness(t)
		id, err := h.Provider.Initiate(context.Background(), Request(models.TierStandard))
		require.NoError(t, err)
		require.NoError(t, h.Provider.Cancel(context.Background(), id))
		require.NoError(t, h.Provider.Cancel(context.Background(), id))
	})

	t.Run("cancel after completion is a no-op", func(t *testing.T) {
		h := newHarness(t)
		h.Arrange(fake.OutcomeClear)
		rep := initiateAndComplete(t, h.Provider)
		require.NoError(t, h.Provider.Cancel(context.Background(), rep.ReportID))
	})

	t.Run("estimate is available for every tier", func(t *testing.T) {
		h := newHarness(t)
		for _, tier := range []models.Tier{models.TierBasic, models.TierStandard, models.TierComprehensive} {
			assert.NotEmpty(t, h.Provider.EstimateCompletion(tier), tier)
		}
	})
}

// Request is a valid vendor request for tier.
func Request(tier models.Tier) providers.Request {
	return providers.Request{
		ReferenceID: "scr-contract",
		FirstName:   "Robin",
		LastName:    "Alvarez",
		Email:       "robin@example.com",
		Phone:       "+15035550100",
		DateOfBirth: time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC),
		SSN:         "123-45-6789",
		Address: models.Address{
			Street: "12 Trailhead Rd", City: "Bend", State: "OR", PostalCode: "97701", Country: "US",
		},
		Tier: tier,
	}
}

func initiateAndComplete(t *testing.T, p providers.Provider) *providers.Report {
	t.Helper()
	id, err := p.Initiate(context.Background(), Request(models.TierStandard))
	require.NoError(t, err)
	rep := pollUntilDone(t, p, id)
	require.Equal(t, providers.ReportComplete, rep.Status)
	assert.Equal(t, id, rep.ReportID)
	assert.False(t, rep.CompletedAt.IsZero(), "completed reports carry a completion time")
	return rep
}

func pollUntilDone(t *testing.T, p providers.Provider, id string) *providers.Report {
	t.Helper()
	for range maxPolls {
		rep, err := p.PollStatus(context.Background(), id)
		require.NoError(t, err)
		if rep.Status == providers.ReportComplete || rep.Status == providers.ReportFailed {
			return rep
		}
	}
	t.Fatalf("report %s did not finish within %d polls", id, maxPolls)
	return nil
}
