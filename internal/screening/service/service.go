package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"basecamp/internal/screening/metrics"
	"basecamp/internal/screening/models"
	"basecamp/pkg/domain"
	dErrors "basecamp/pkg/domain-errors"
	"basecamp/pkg/platform/audit"
	"basecamp/pkg/platform/middleware/metadata"
	"basecamp/pkg/platform/privacy"
	"basecamp/pkg/requestcontext"
	"basecamp/pkg/secrets"
)

// Store is the persistence the service reads and creates records through.
// Error Contract: Find methods return models.ErrNotFound when nothing matches.
type Store interface {
	Create(ctx context.Context, rec *models.Record) error
	FindByID(ctx context.Context, id domain.ScreeningID) (*models.Record, error)
	FindByEmail(ctx context.Context, email string) (*models.Record, error)
	FindActiveByEmail(ctx context.Context, email string) (*models.Record, error)
	ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Record, error)
}

// Workflow is the orchestrator surface the service hands records to.
type Workflow interface {
	Dispatch(id domain.ScreeningID, req *models.Request) bool
	RequestCancel(ctx context.Context, id domain.ScreeningID) (*models.Record, error)
	Rerun(ctx context.Context, id domain.ScreeningID, req *models.Request) (*models.Record, error)
	EstimateCompletion(tier models.Tier) string
	DefaultProvider() string
}

type Service struct {
	store    Store
	workflow Workflow
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  *audit.Logger
	hashCost int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditor(auditor *audit.Logger) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

// WithHashCost sets the bcrypt cost for credential hashes. Values outside
// bcrypt's range fall back to the default cost.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.hashCost = cost
		}
	}
}

func New(store Store, workflow Workflow, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		workflow: workflow,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Submit validates req, creates a pending record and hands it to the
// workflow. It returns as soon as the record exists; vendor work happens
// in the background.
func (s *Service) Submit(ctx context.Context, req *models.Request) (*models.Record, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if dob, err := req.BirthDate(); err == nil && !domain.IsAdult(dob, requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeValidation, "candidate must be at least 18 years old")
	}

	existing, err := s.store.FindActiveByEmail(ctx, req.Email)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "duplicate screening rejected",
			"request_id", requestcontext.RequestID(ctx),
			"record_id", existing.ID.String(),
			"email", privacy.RedactEmail(req.Email),
		)
		s.auditCandidate(ctx, audit.ActionDuplicateRejected, existing.ID.String(), req.Email, "")
		return nil, s.duplicate(nil)
	case !errors.Is(err, models.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for an active screening")
	}

	hash, err := secrets.HashWithCost(req.Password, s.hashCost)
	if err != nil {
		return nil, err
	}
	req.Password = ""

	now := requestcontext.Now(ctx)
	rec := &models.Record{
		ID:             domain.NewScreeningID(),
		Email:          req.Email,
		Provider:       s.workflow.DefaultProvider(),
		Tier:           req.Tier,
		Candidate:      req.Summary(),
		CredentialHash: hash,
		Status:         models.StatusPending,
		Consent: models.Consent{
			GivenAt:   now,
			IP:        requestcontext.ClientIP(ctx),
			UserAgent: requestcontext.UserAgent(ctx),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, models.ErrDuplicateActive) {
			s.auditCandidate(ctx, audit.ActionDuplicateRejected, "", req.Email, "concurrent submission")
			return nil, s.duplicate(err)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create screening")
	}

	if s.metrics != nil {
		s.metrics.Submitted.WithLabelValues(rec.Provider, rec.Tier.String()).Inc()
	}
	s.logger.InfoContext(ctx, "screening submitted",
		"request_id", requestcontext.RequestID(ctx),
		"record_id", rec.ID.String(),
		"provider", rec.Provider,
		"tier", rec.Tier.String(),
		"email", privacy.RedactEmail(rec.Email),
		"client_ip", privacy.AnonymizeIP(rec.Consent.IP),
		"user_agent", metadata.Summarize(rec.Consent.UserAgent),
	)
	s.auditCandidate(ctx, audit.ActionScreeningSubmitted, rec.ID.String(), rec.Email,
		"provider="+rec.Provider+" tier="+rec.Tier.String())

	if !s.workflow.Dispatch(rec.ID, req) {
		s.logger.WarnContext(ctx, "workflow is shutting down; screening left for resume",
			"request_id", requestcontext.RequestID(ctx),
			"record_id", rec.ID.String(),
		)
	}
	return rec, nil
}

func (s *Service) duplicate(cause error) error {
	if s.metrics != nil {
		s.metrics.DuplicateRejected.Inc()
	}
	const msg = "an active screening already exists for this email"
	if cause == nil {
		return dErrors.New(dErrors.CodeDuplicateScreening, msg)
	}
	return dErrors.Wrap(cause, dErrors.CodeDuplicateScreening, msg)
}

// auditCandidate records an action taken on the candidate's behalf, with the
// consent metadata of the current request.
func (s *Service) auditCandidate(ctx context.Context, action audit.Action, recordID, email, detail string) {
	s.auditor.Record(ctx, audit.Event{
		Action:    action,
		RecordID:  recordID,
		Actor:     audit.ActorCandidate,
		Email:     privacy.RedactEmail(email),
		ClientIP:  privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		UserAgent: metadata.Summarize(requestcontext.UserAgent(ctx)),
		Detail:    detail,
	})
}

// auditOperator records an administrative action; the actor comes from ctx.
func (s *Service) auditOperator(ctx context.Context, action audit.Action, rec *models.Record, detail string) {
	s.auditor.Record(ctx, audit.Event{
		Action:   action,
		RecordID: rec.ID.String(),
		Email:    privacy.RedactEmail(rec.Email),
		Detail:   detail,
	})
}

// Get loads a record. Reads by an authenticated operator are audited.
func (s *Service) Get(ctx context.Context, id domain.ScreeningID) (*models.Record, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if requestcontext.AdminActor(ctx) != "" {
		s.auditOperator(ctx, audit.ActionScreeningViewed, rec, "status="+rec.Status.String())
	}
	return rec, nil
}

func (s *Service) load(ctx context.Context, id domain.ScreeningID) (*models.Record, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load screening")
	}
	return rec, nil
}

// Status returns the redacted view shown to the candidate.
func (s *Service) Status(ctx context.Context, id domain.ScreeningID) (*StatusView, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.statusView(rec), nil
}

// LatestByEmail returns the most recent record for email, active or not.
func (s *Service) LatestByEmail(ctx context.Context, email string) (*models.Record, error) {
	rec, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, translate(err, "failed to load screening")
	}
	return rec, nil
}

func (s *Service) Cancel(ctx context.Context, id domain.ScreeningID) (*models.Record, error) {
	rec, err := s.workflow.RequestCancel(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to cancel screening")
	}
	s.logger.InfoContext(ctx, "screening cancel requested",
		"request_id", requestcontext.RequestID(ctx),
		"record_id", id.String(),
		"actor", requestcontext.AdminActor(ctx),
		"status", rec.Status.String(),
	)
	s.auditOperator(ctx, audit.ActionCancelRequested, rec, "status="+rec.Status.String())
	return rec, nil
}

// Rerun re-enters the workflow for id. req is only needed when the original
// report cannot be polled again.
func (s *Service) Rerun(ctx context.Context, id domain.ScreeningID, req *models.Request) (*models.Record, error) {
	rec, err := s.workflow.Rerun(ctx, id, req)
	if err != nil {
		return nil, translate(err, "failed to rerun screening")
	}
	s.logger.InfoContext(ctx, "screening rerun requested",
		"request_id", requestcontext.RequestID(ctx),
		"record_id", id.String(),
		"result_id", rec.ID.String(),
		"actor", requestcontext.AdminActor(ctx),
		"with_candidate", req != nil,
	)
	detail := "rerun_of=" + id.String()
	if rec.ID != id {
		detail += " new_record=true"
	}
	s.auditOperator(ctx, audit.ActionRerunRequested, rec, detail)
	return rec, nil
}

// ListForReview lists records in statuses; none means every status an
// operator has to act on.
func (s *Service) ListForReview(ctx context.Context, statuses ...models.Status) ([]*models.Record, error) {
	if len(statuses) == 0 {
		statuses = models.ReviewStatuses()
	}
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown status: "+string(st))
		}
	}
	recs, err := s.store.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list screenings")
	}
	return recs, nil
}

func (s *Service) EstimateCompletion(tier models.Tier) string {
	if !tier.IsValid() {
		tier = models.DefaultTier
	}
	return s.workflow.EstimateCompletion(tier)
}
