// Package orchestrator drives one screening record from submission to a
// terminal status: submit to the vendor, poll within a bounded attempt
// budget, resolve the report and branch into the pre-adverse notice or
// account provisioning.
//
// Every mutation goes through the store's patch validation while holding
// the record's lock, so a running task and an admin action never interleave.
// A task also holds the record's lease for its whole run; Resume and
// RequestCancel leave leased records to their owner, wherever it runs.
// Failures after dispatch are written to the record, never returned to the
// caller that submitted it.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	accountmodels "basecamp/internal/accounts/models"
	"basecamp/internal/platform/tracer"
	"basecamp/internal/screening/lock"
	"basecamp/internal/screening/metrics"
	"basecamp/internal/screening/models"
	"basecamp/internal/screening/notifier"
	"basecamp/internal/screening/providers"
	"basecamp/pkg/domain"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultMaxAttempts  = 144
)

// Store is the record persistence the workflow needs.
type Store interface {
	Create(ctx context.Context, rec *models.Record) error
	FindByID(ctx context.Context, id domain.ScreeningID) (*models.Record, error)
	Update(ctx context.Context, id domain.ScreeningID, patch models.Patch) (*models.Record, error)
	ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Record, error)
}

// Notifier sends the compliance notice on the adverse path.
type Notifier interface {
	SendPreAdverseNotice(ctx context.Context, contact notifier.Contact, artifactRef string, identity notifier.Identity) error
}

// Provisioner creates the identity on the clear path. Both calls must be
// idempotent.
type Provisioner interface {
	CreateAccount(ctx context.Context, email, credentialHash, displayName string) (domain.UserID, error)
	CreateProfile(ctx context.Context, userID domain.UserID, summary accountmodels.ScreeningSummary) error
}

type Orchestrator struct {
	registry    *providers.Registry
	store       Store
	notifier    Notifier
	provisioner Provisioner

	clock           Clock
	interval        time.Duration
	maxAttempts     int
	locker          lock.Locker
	leases          lock.Leases
	metrics         *metrics.Metrics
	tracer          tracer.Tracer
	logger          *slog.Logger
	artifactBaseURL string

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	tasks   map[domain.ScreeningID]*task
	closed  bool
}

type Option func(*Orchestrator)

func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func WithLocker(l lock.Locker) Option {
	return func(o *Orchestrator) { o.locker = l }
}

// WithLeases sets where task ownership is recorded. Instances sharing a
// store must share leases, or Resume and RequestCancel cannot see tasks
// running elsewhere.
func WithLeases(l lock.Leases) Option {
	return func(o *Orchestrator) { o.leases = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithTracer(t tracer.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithArtifactBaseURL sets the prefix used for report links when the vendor
// does not return one.
func WithArtifactBaseURL(u string) Option {
	return func(o *Orchestrator) { o.artifactBaseURL = u }
}

func New(registry *providers.Registry, store Store, n Notifier, p Provisioner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:        registry,
		store:           store,
		notifier:        n,
		provisioner:     p,
		clock:           RealClock{},
		interval:        DefaultPollInterval,
		maxAttempts:     DefaultMaxAttempts,
		tracer:          tracer.NewNoop(),
		logger:          slog.Default(),
		artifactBaseURL: "https://reports.basecamp.local",
		tasks:           make(map[domain.ScreeningID]*task),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.locker == nil {
		o.locker = lock.NewSharded()
	}
	if o.leases == nil {
		o.leases = lock.NewMemoryLeases()
	}
	o.baseCtx, o.stop = context.WithCancel(context.Background())
	return o
}

// MaxAttempts is the poll budget per record.
func (o *Orchestrator) MaxAttempts() int { return o.maxAttempts }

// EstimateCompletion asks the default provider for a turnaround estimate.
func (o *Orchestrator) EstimateCompletion(tier models.Tier) string {
	return o.registry.Default().EstimateCompletion(tier)
}

// DefaultProvider is the provider new submissions are sent to.
func (o *Orchestrator) DefaultProvider() string {
	return o.registry.Default().ID()
}
