package fake_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basecamp/internal/screening/models"
	"basecamp/internal/screening/providers"
	"basecamp/internal/screening/providers/contract"
	"basecamp/internal/screening/providers/fake"
)

func TestContract(t *testing.T) {
	contract.Run(t, providers.Fake, func(t *testing.T) contract.Harness {
		p := fake.New(fake.PendingPolls(1))
		return contract.Harness{Provider: p, Arrange: p.SetOutcome}
	})
}

func TestPendingPollsAndCounters(t *testing.T) {
	p := fake.New(fake.PendingPolls(2))
	id, err := p.Initiate(context.Background(), contract.Request(models.TierBasic))
	require.NoError(t, err)

	for range 2 {
		rep, err := p.PollStatus(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, providers.ReportInProgress, rep.Status)
	}
	rep, err := p.PollStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, providers.ReportComplete, rep.Status)
	assert.Equal(t, 3, p.PollCalls())
	assert.Equal(t, 1, p.InitiateCalls())
}

func TestScriptedErrors(t *testing.T) {
	outage := providers.NewProviderError(providers.ErrorProviderOutage, providers.Fake, "down", nil)
	p := fake.New(
		fake.WithInitiateErrors(outage),
		fake.WithPollErrors(outage, nil),
	)

	_, err := p.Initiate(context.Background(), contract.Request(models.TierBasic))
	require.ErrorIs(t, err, outage)

	id, err := p.Initiate(context.Background(), contract.Request(models.TierBasic))
	require.NoError(t, err)

	_, err = p.PollStatus(context.Background(), id)
	assert.True(t, errors.Is(err, outage))
	rep, err := p.PollStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, providers.ResultClear, rep.Result)
}

func TestEmailTagSelectsOutcome(t *testing.T) {
	p := fake.New()
	req := contract.Request(models.TierBasic)
	req.Email = "robin+adverse@example.com"

	id, err := p.Initiate(context.Background(), req)
	require.NoError(t, err)
	rep, err := p.PollStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, providers.ResultConsider, rep.Result)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, providers.FindingViolentFelony, rep.Findings[0].Category)
}

func TestOnPollHookAndCancel(t *testing.T) {
	var seen []int
	p := fake.New(fake.PendingPolls(-1), fake.OnPoll(func(_ string, poll int) { seen = append(seen, poll) }))
	id, err := p.Initiate(context.Background(), contract.Request(models.TierBasic))
	require.NoError(t, err)

	_, _ = p.PollStatus(context.Background(), id)
	require.NoError(t, p.Cancel(context.Background(), id))
	rep, err := p.PollStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, providers.ReportFailed, rep.Status)
	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 1, p.CancelCalls())
}
