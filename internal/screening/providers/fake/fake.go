// Package fake is a deterministic in-process provider. It performs no I/O.
//
// In development the candidate email selects the outcome: an address tagged
// "+adverse", "+minor", "+failed" or "+unknown" (jane+adverse@example.com)
// overrides the configured default.
package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"basecamp/internal/screening/models"
	"basecamp/internal/screening/providers"
)

// Outcome is the result a fake report completes with.
type Outcome string

const (
	OutcomeClear   Outcome = "clear"
	OutcomeAdverse Outcome = "adverse"
	OutcomeMinor   Outcome = "minor"
	OutcomeFailed  Outcome = "failed"
	OutcomeUnknown Outcome = "unknown"
)

type report struct {
	outcome   Outcome
	polls     int
	cancelled bool
}

type Provider struct {
	id           string
	now          func() time.Time
	reportURL    string
	onPoll       func(reportID string, poll int)
	onInitiate   func(email string)
	initiateErrs []error

	mu           sync.Mutex
	outcome      Outcome
	pendingPolls int
	pollErrs     []error
	reports      map[string]*report

	seq           atomic.Int64
	initiateCalls atomic.Int64
	pollCalls     atomic.Int64
	cancelCalls   atomic.Int64
}

type Option func(*Provider)

func WithID(id string) Option {
	return func(p *Provider) { p.id = id }
}

func WithOutcome(o Outcome) Option {
	return func(p *Provider) { p.outcome = o }
}

// PendingPolls keeps each report in progress for n polls before it completes.
// A negative n never completes.
func PendingPolls(n int) Option {
	return func(p *Provider) { p.pendingPolls = n }
}

// WithInitiateErrors makes successive Initiate calls fail with errs in order.
func WithInitiateErrors(errs ...error) Option {
	return func(p *Provider) { p.initiateErrs = append(p.initiateErrs, errs...) }
}

// WithPollErrors makes successive PollStatus calls fail with errs in order.
// A nil entry lets that poll through.
func WithPollErrors(errs ...error) Option {
	return func(p *Provider) { p.pollErrs = append(p.pollErrs, errs...) }
}

// OnPoll runs fn before every poll is answered, outside the provider lock.
func OnPoll(fn func(reportID string, poll int)) Option {
	return func(p *Provider) { p.onPoll = fn }
}

// OnInitiate runs fn before every submission is accepted, outside the
// provider lock.
func OnInitiate(fn func(email string)) Option {
	return func(p *Provider) { p.onInitiate = fn }
}

func WithNow(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithReportURL sets the artifact link returned on completion; empty means
// the orchestrator builds one.
func WithReportURL(u string) Option {
	return func(p *Provider) { p.reportURL = u }
}

func New(opts ...Option) *Provider {
	p := &Provider{
		id:      providers.Fake,
		outcome: OutcomeClear,
		now:     time.Now,
		reports: make(map[string]*report),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) ID() string { return p.id }

// SetOutcome changes the outcome for reports initiated afterwards.
func (p *Provider) SetOutcome(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome = o
}

func (p *Provider) Initiate(_ context.Context, req providers.Request) (string, error) {
	n := p.initiateCalls.Add(1)
	if p.onInitiate != nil {
		p.onInitiate(req.Email)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if int(n) <= len(p.initiateErrs) && p.initiateErrs[n-1] != nil {
		return "", p.initiateErrs[n-1]
	}

	id := fmt.Sprintf("fake_rpt_%06d", p.seq.Add(1))
	p.reports[id] = &report{outcome: outcomeFor(req.Email, p.outcome)}
	return id, nil
}

func outcomeFor(email string, def Outcome) Outcome {
	local, _, _ := strings.Cut(email, "@")
	_, tag, ok := strings.Cut(local, "+")
	if !ok {
		return def
	}
	switch o := Outcome(tag); o {
	case OutcomeClear, OutcomeAdverse, OutcomeMinor, OutcomeFailed, OutcomeUnknown:
		return o
	}
	return def
}

// Seed registers a report id as if Initiate had returned it. Used to resume
// polling a report created before a restart.
func (p *Provider) Seed(reportID string, o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports[reportID] = &report{outcome: o}
}

func (p *Provider) PollStatus(_ context.Context, reportID string) (*providers.Report, error) {
	p.pollCalls.Add(1)

	p.mu.Lock()
	r, ok := p.reports[reportID]
	if !ok {
		// Reports from a previous process complete with the default outcome.
		r = &report{outcome: p.outcome}
		p.reports[reportID] = r
	}
	r.polls++
	poll := r.polls
	var scripted error
	if len(p.pollErrs) > 0 {
		scripted, p.pollErrs = p.pollErrs[0], p.pollErrs[1:]
	}
	pending := p.pendingPolls
	cancelled := r.cancelled
	outcome := r.outcome
	p.mu.Unlock()

	if p.onPoll != nil {
		p.onPoll(reportID, poll)
	}
	if scripted != nil {
		return nil, scripted
	}

	rep := &providers.Report{ReportID: reportID}
	switch {
	case cancelled:
		rep.Status = providers.ReportFailed
		return rep, nil
	case pending < 0 || poll <= pending:
		rep.Status = providers.ReportInProgress
		return rep, nil
	}
	p.complete(rep, outcome)
	return rep, nil
}

func (p *Provider) complete(rep *providers.Report, o Outcome) {
	now := p.now()
	rep.Status = providers.ReportComplete
	rep.CompletedAt = now
	rep.ReportURL = p.reportURL

	switch o {
	case OutcomeClear:
		rep.Result, rep.RawResult = providers.ResultClear, "clear"
	case OutcomeAdverse:
		rep.Result, rep.RawResult = providers.ResultConsider, "consider"
		rep.Findings = []providers.Finding{{
			Category:    providers.FindingViolentFelony,
			Description: "assault, first degree",
			OccurredAt:  now.AddDate(-2, 0, 0),
		}}
	case OutcomeMinor:
		rep.Result, rep.RawResult = providers.ResultConsider, "consider"
		rep.Findings = []providers.Finding{{
			Category:    providers.FindingTraffic,
			Description: "speeding",
			OccurredAt:  now.AddDate(-1, 0, 0),
		}}
	case OutcomeFailed:
		rep.Status = providers.ReportFailed
		rep.CompletedAt = time.Time{}
	default:
		rep.Result, rep.RawResult = providers.ResultUnknown, "needs_review"
	}
}

// Cancel is idempotent and never fails.
func (p *Provider) Cancel(_ context.Context, reportID string) error {
	p.cancelCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.reports[reportID]; ok {
		r.cancelled = true
	}
	return nil
}

func (p *Provider) EstimateCompletion(models.Tier) string {
	return "a few seconds"
}

func (p *Provider) InitiateCalls() int { return int(p.initiateCalls.Load()) }
func (p *Provider) PollCalls() int     { return int(p.pollCalls.Load()) }
func (p *Provider) CancelCalls() int   { return int(p.cancelCalls.Load()) }

var _ providers.Provider = (*Provider)(nil)
