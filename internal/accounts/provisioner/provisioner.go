// Package provisioner creates the account and profile for a cleared
// candidate. Both steps are idempotent: an existing identity for the email
// is returned rather than duplicated.
package provisioner

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"basecamp/internal/accounts/models"
	"basecamp/pkg/domain"
	dErrors "basecamp/pkg/domain-errors"
	"basecamp/pkg/platform/privacy"
	"basecamp/pkg/requestcontext"
)

// Store is the persistence the provisioner needs.
type Store interface {
	FindOrCreateAccount(ctx context.Context, acct *models.Account) (*models.Account, bool, error)
	UpsertProfile(ctx context.Context, p *models.Profile) error
}

type Service struct {
	store  Store
	logger *slog.Logger

	accountsCreated prometheus.Counter
	accountsReused  prometheus.Counter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRegisterer registers the provisioning counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) {
		f := promauto.With(reg)
		s.accountsCreated = f.NewCounter(prometheus.CounterOpts{
			Name: "basecamp_accounts_created_total",
			Help: "Accounts created for cleared screenings",
		})
		s.accountsReused = f.NewCounter(prometheus.CounterOpts{
			Name: "basecamp_accounts_reused_total",
			Help: "Provisioning retries that found an existing account",
		})
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount returns the user id for email, creating the account if it
// does not exist yet.
func (s *Service) CreateAccount(ctx context.Context, email, credentialHash, displayName string) (domain.UserID, error) {
	if email == "" || credentialHash == "" {
		return domain.UserID{}, dErrors.New(dErrors.CodeAccountProvisioning, "email and credential are required")
	}
	acct, created, err := s.store.FindOrCreateAccount(ctx, &models.Account{
		ID:             domain.NewUserID(),
		Email:          email,
		DisplayName:    displayName,
		CredentialHash: credentialHash,
		CreatedAt:      requestcontext.Now(ctx),
	})
	if err != nil {
		return domain.UserID{}, dErrors.Wrap(err, dErrors.CodeAccountProvisioning, "could not create account")
	}

	if created {
		s.inc(s.accountsCreated)
		s.logger.InfoContext(ctx, "account created", "user_id", acct.ID.String(), "email", privacy.RedactEmail(email))
	} else {
		s.inc(s.accountsReused)
		s.logger.InfoContext(ctx, "existing account reused", "user_id", acct.ID.String(), "email", privacy.RedactEmail(email))
	}
	return acct.ID, nil
}

// CreateProfile writes the screening summary for userID. Safe to repeat.
func (s *Service) CreateProfile(ctx context.Context, userID domain.UserID, summary models.ScreeningSummary) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeAccountProvisioning, "user id is required")
	}
	screenedAt := summary.ScreenedAt
	if screenedAt.IsZero() {
		screenedAt = requestcontext.Now(ctx)
	}
	err := s.store.UpsertProfile(ctx, &models.Profile{
		UserID:     userID,
		RecordID:   summary.RecordID,
		Tier:       summary.Tier,
		Risk:       summary.Risk,
		ScreenedAt: screenedAt.UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeAccountProvisioning, "could not create profile")
	}
	return nil
}

func (s *Service) inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}
