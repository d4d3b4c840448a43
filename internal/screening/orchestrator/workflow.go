package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	accountmodels "basecamp/internal/accounts/models"
	"basecamp/internal/platform/tracer"
	"basecamp/internal/screening/adjudication"
	"basecamp/internal/screening/models"
	"basecamp/internal/screening/notifier"
	"basecamp/internal/screening/providers"
	"basecamp/pkg/domain"
	dErrors "basecamp/pkg/domain-errors"
	"basecamp/pkg/requestcontext"
)

// Run drives the record from wherever its persisted state left off:
//
//	pending                  submit (needs req)
//	submitted, in_progress   poll
//	clear without user id    provision
//	clear without profile    create profile
//	pending_adverse          send the notice if not yet sent
//
// Failures the workflow expects are recorded on the record and Run returns
// nil. A non-nil error is either ctx's or something the caller must persist.
func (o *Orchestrator) Run(ctx context.Context, id domain.ScreeningID, req *models.Request) (err error) {
	rec, err := o.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load record %s: %w", id, err)
	}

	ctx, span := o.tracer.Start(ctx, tracer.SpanWorkflowRun,
		tracer.String(tracer.AttrScreeningID, id.String()),
		tracer.String(tracer.AttrProvider, rec.Provider),
		tracer.String(tracer.AttrTier, rec.Tier.String()),
		tracer.String(tracer.AttrEmailHash, tracer.HashEmail(rec.Email)),
	)
	defer func() {
		span.SetAttributes(tracer.String(tracer.AttrStatus, rec.Status.String()))
		span.End(err)
	}()
	started := o.clock.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var next *models.Record
		switch {
		case rec.Status == models.StatusPending:
			next, err = o.submit(ctx, rec, req)
		case rec.Status == models.StatusSubmitted || rec.Status == models.StatusInProgress:
			next, err = o.poll(ctx, rec)
		case rec.Status == models.StatusClear && rec.UserID == nil:
			next, err = o.provision(ctx, rec)
		case needsProfile(rec):
			next, err = o.createProfile(ctx, rec)
		case rec.NeedsNotice() && !rec.HasErrorKind(models.ErrorKindNotificationDelivery):
			next, err = o.notify(ctx, rec)
		default:
			if o.metrics != nil {
				o.metrics.WorkflowDuration.WithLabelValues(rec.Status.String()).
					Observe(o.clock.Now().Sub(started).Seconds())
			}
			return nil
		}
		if err != nil {
			return err
		}
		rec = next
	}
}

func needsProfile(rec *models.Record) bool {
	return rec.Status == models.StatusClear && rec.UserID != nil &&
		rec.ProfileCreatedAt == nil && !rec.HasErrorKind(models.ErrorKindProfileProvisioning)
}

// needsWork reports whether Run would do anything for rec.
func needsWork(rec *models.Record) bool {
	switch {
	case rec.Status == models.StatusSubmitted, rec.Status == models.StatusInProgress:
		return true
	case rec.Status == models.StatusClear && rec.UserID == nil:
		return true
	case needsProfile(rec):
		return true
	case rec.NeedsNotice() && !rec.HasErrorKind(models.ErrorKindNotificationDelivery):
		return true
	}
	return false
}

func (o *Orchestrator) submit(ctx context.Context, rec *models.Record, req *models.Request) (*models.Record, error) {
	if rec.CancelRequested {
		return o.mutate(ctx, rec, models.Patch{Status: models.StatusPtr(models.StatusCancelled)})
	}
	if req == nil {
		return o.fail(ctx, rec, models.ErrorKindInterrupted, "registration payload is no longer available; rerun with candidate details")
	}
	p, err := o.providerFor(rec)
	if err != nil {
		return o.fail(ctx, rec, models.ErrorKindInternal, err.Error())
	}
	vendorReq, err := providers.NewRequest(rec.ID, req)
	if err != nil {
		return o.fail(ctx, rec, models.ErrorKindValidation, err.Error())
	}

	spanCtx, span := o.tracer.Start(ctx, tracer.SpanProviderInitiate,
		tracer.String(tracer.AttrProvider, p.ID()),
		tracer.String(tracer.AttrTier, rec.Tier.String()))
	began := time.Now()
	reportID, err := p.Initiate(spanCtx, vendorReq)
	o.metrics.ObserveProviderCall(p.ID(), "initiate", time.Since(began))
	span.End(err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		kind := models.ErrorKindProviderAPI
		if providers.IsUnavailable(err) || !providers.IsAPIError(err) {
			kind = models.ErrorKindProviderUnavailable
		}
		return o.fail(ctx, rec, kind, err.Error())
	}

	next, err := o.mutate(ctx, rec, models.Patch{
		Status:           models.StatusPtr(models.StatusSubmitted),
		ExternalReportID: models.StringPtr(reportID),
	})
	if errors.Is(err, models.ErrInvalidTransition) {
		return o.abandonReport(ctx, p, rec, reportID)
	}
	if err != nil {
		return nil, err
	}
	return o.mutate(ctx, next, models.Patch{Status: models.StatusPtr(models.StatusInProgress)})
}

// abandonReport cancels a report the record can no longer take because it
// left pending while the vendor call was in flight. The record keeps the
// status and error it was moved to.
func (o *Orchestrator) abandonReport(ctx context.Context, p providers.Provider, rec *models.Record, reportID string) (*models.Record, error) {
	current, err := o.store.FindByID(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("reload record %s: %w", rec.ID, err)
	}
	o.logger.WarnContext(ctx, "record left pending during submission; cancelling vendor report",
		"record_id", rec.ID.String(), "status", current.Status.String(), "report_id", reportID)
	if err := o.cancelReport(ctx, p, reportID); err != nil {
		o.logger.ErrorContext(ctx, "orphaned vendor report could not be cancelled",
			"record_id", rec.ID.String(), "report_id", reportID, "error", err)
	}
	return current, nil
}

// poll runs the attempt loop. Attempts already spent before a restart
// count against the budget.
func (o *Orchestrator) poll(ctx context.Context, rec *models.Record) (*models.Record, error) {
	p, err := o.providerFor(rec)
	if err != nil {
		return o.fail(ctx, rec, models.ErrorKindInternal, err.Error())
	}
	wake := wakeChan(ctx)

	for attempt := rec.PollAttempts + 1; ; attempt++ {
		current, err := o.store.FindByID(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("reload record %s: %w", rec.ID, err)
		}
		if current.Status != models.StatusSubmitted && current.Status != models.StatusInProgress {
			return current, nil
		}
		if current.CancelRequested {
			return o.cancel(ctx, p, current)
		}
		if current.Status == models.StatusSubmitted {
			if current, err = o.mutate(ctx, current, models.Patch{Status: models.StatusPtr(models.StatusInProgress)}); err != nil {
				return nil, err
			}
		}
		if attempt > o.maxAttempts {
			return o.exhausted(ctx, current)
		}

		report, pollErr := o.pollOnce(ctx, p, current.ExternalReportID, attempt)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		current, err = o.mutate(ctx, current, models.Patch{PollAttempts: models.IntPtr(attempt)})
		if err != nil {
			return nil, err
		}

		switch {
		case pollErr != nil && transient(pollErr):
			if o.metrics != nil {
				o.metrics.PollErrors.WithLabelValues(p.ID(), string(providers.GetCategory(pollErr))).Inc()
			}
			o.logger.WarnContext(ctx, "screening poll failed",
				"record_id", current.ID.String(), "attempt", attempt, "error", pollErr)
		case pollErr != nil:
			return o.fail(ctx, current, models.ErrorKindProviderAPI, pollErr.Error())
		case report.Status == providers.ReportComplete:
			o.observeAttempts(p.ID(), attempt)
			return o.resolve(ctx, current, report)
		case report.Status == providers.ReportFailed:
			o.observeAttempts(p.ID(), attempt)
			return o.fail(ctx, current, models.ErrorKindProviderAPI, "vendor reported failure")
		}

		if attempt >= o.maxAttempts {
			return o.exhausted(ctx, current)
		}
		select {
		case <-o.clock.After(o.interval):
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// transient errors consume an attempt and polling continues.
func transient(err error) bool {
	return providers.IsRetryable(err) || providers.IsUnavailable(err) || !providers.IsAPIError(err)
}

func (o *Orchestrator) pollOnce(ctx context.Context, p providers.Provider, reportID string, attempt int) (*providers.Report, error) {
	ctx, span := o.tracer.Start(ctx, tracer.SpanProviderPoll,
		tracer.String(tracer.AttrProvider, p.ID()),
		tracer.String(tracer.AttrReportID, reportID),
		tracer.Int(tracer.AttrAttempt, attempt))
	began := time.Now()
	report, err := p.PollStatus(ctx, reportID)
	o.metrics.ObserveProviderCall(p.ID(), "poll", time.Since(began))
	if err == nil && report == nil {
		err = providers.NewProviderError(providers.ErrorContractMismatch, p.ID(), "empty poll response", nil)
	}
	if err != nil && transient(err) {
		span.AddEvent(tracer.EventTransientFailed, tracer.String("error", err.Error()))
	}
	if report != nil {
		span.SetAttributes(tracer.String(tracer.AttrStatus, string(report.Status)))
	}
	span.End(err)
	return report, err
}

func (o *Orchestrator) observeAttempts(provider string, attempts int) {
	if o.metrics != nil {
		o.metrics.PollAttempts.WithLabelValues(provider).Observe(float64(attempts))
	}
}

func (o *Orchestrator) exhausted(ctx context.Context, rec *models.Record) (*models.Record, error) {
	o.observeAttempts(rec.Provider, rec.PollAttempts)
	err := dErrors.New(dErrors.CodePollingExhausted,
		fmt.Sprintf("report %s not complete after %d attempts", rec.ExternalReportID, o.maxAttempts))
	return o.fail(ctx, rec, models.ErrorKindPollingExhausted, err.Error())
}

// cancel stops the vendor report once and moves the record to cancelled.
// A vendor failure is recorded but does not keep the record alive.
func (o *Orchestrator) cancel(ctx context.Context, p providers.Provider, rec *models.Record) (*models.Record, error) {
	patch := models.Patch{Status: models.StatusPtr(models.StatusCancelled)}
	if rec.ExternalReportID != "" {
		if err := o.cancelReport(ctx, p, rec.ExternalReportID); err != nil {
			o.logger.WarnContext(ctx, "vendor cancel failed",
				"record_id", rec.ID.String(), "report_id", rec.ExternalReportID, "error", err)
			patch.Error = o.recordError(models.ErrorKindProviderUnavailable, "vendor cancel failed: "+err.Error())
		}
	}
	next, err := o.mutate(ctx, rec, patch)
	if err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.Cancellations.Inc()
	}
	return next, nil
}

func (o *Orchestrator) cancelReport(ctx context.Context, p providers.Provider, reportID string) error {
	ctx, span := o.tracer.Start(ctx, tracer.SpanProviderCancel,
		tracer.String(tracer.AttrProvider, p.ID()),
		tracer.String(tracer.AttrReportID, reportID))
	span.AddEvent(tracer.EventCancelObserved)
	began := time.Now()
	err := p.Cancel(ctx, reportID)
	o.metrics.ObserveProviderCall(p.ID(), "cancel", time.Since(began))
	span.End(err)
	return err
}

// resolve writes the decision together with the branch status. Notice and
// provisioning follow as separate steps so a restart resumes at them.
func (o *Orchestrator) resolve(ctx context.Context, rec *models.Record, report *providers.Report) (*models.Record, error) {
	decision, err := adjudication.Resolve(*report, rec.Tier)
	if err != nil {
		if errors.Is(err, adjudication.ErrUnrecognizedAdjudication) {
			o.logger.WarnContext(ctx, "unrecognized adjudication",
				"record_id", rec.ID.String(), "raw_result", report.RawResult)
		}
		return o.fail(ctx, rec, models.ErrorKindProviderAPI, err.Error())
	}
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = o.clock.Now()
	}

	status := models.StatusClear
	if decision.AdverseActionRequired {
		status = models.StatusPendingAdverse
	}
	return o.mutate(ctx, rec, models.Patch{
		Status:            models.StatusPtr(status),
		Decision:          &decision,
		ReportArtifactURL: models.StringPtr(o.artifactURL(rec, report)),
	})
}

func (o *Orchestrator) artifactURL(rec *models.Record, report *providers.Report) string {
	if report.ReportURL != "" {
		return report.ReportURL
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(o.artifactBaseURL, "/"), rec.Provider, rec.ExternalReportID)
}

// notify sends the pre-adverse notice. A delivery failure is recorded for
// manual follow-up; the record stays pending_adverse either way.
func (o *Orchestrator) notify(ctx context.Context, rec *models.Record) (*models.Record, error) {
	spanCtx, span := o.tracer.Start(ctx, tracer.SpanNoticeDeliver,
		tracer.String(tracer.AttrScreeningID, rec.ID.String()))
	err := o.notifier.SendPreAdverseNotice(spanCtx,
		notifier.Contact{Email: rec.Email, Phone: rec.Candidate.Phone},
		rec.ReportArtifactURL,
		notifier.Identity{FullName: rec.Candidate.FullName, RecordID: rec.ID},
	)
	span.End(err)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if o.metrics != nil {
			o.metrics.NoticeFailures.Inc()
		}
		o.logger.ErrorContext(ctx, "pre-adverse notice not delivered; manual follow-up required",
			"record_id", rec.ID.String(), "error", err)
		return o.mutate(ctx, rec, models.Patch{
			Error: o.recordError(models.ErrorKindNotificationDelivery, err.Error()),
		})
	}
	return o.mutate(ctx, rec, models.Patch{
		NoticeSentAt: models.TimePtr(o.clock.Now()),
		ClearError:   true,
	})
}

// provision creates the account for a clear record. CreateAccount returns
// the existing identity on retry, so this step is safe to repeat.
func (o *Orchestrator) provision(ctx context.Context, rec *models.Record) (*models.Record, error) {
	spanCtx, span := o.tracer.Start(ctx, tracer.SpanAccountProvision,
		tracer.String(tracer.AttrScreeningID, rec.ID.String()))
	userID, err := o.provisioner.CreateAccount(spanCtx, rec.Email, rec.CredentialHash, rec.Candidate.FullName)
	span.End(err)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.ErrorContext(ctx, "account provisioning failed",
			"record_id", rec.ID.String(), "error", err)
		return o.mutate(ctx, rec, models.Patch{
			Status: models.StatusPtr(models.StatusAccountCreationFailed),
			Error:  o.recordError(models.ErrorKindAccountProvisioning, err.Error()),
		})
	}
	return o.mutate(ctx, rec, models.Patch{UserID: &userID, ClearError: true})
}

// createProfile is the second provisioning step. A failure keeps the user
// id and is recorded under its own kind, so a rerun repeats only this step.
func (o *Orchestrator) createProfile(ctx context.Context, rec *models.Record) (*models.Record, error) {
	summary := accountmodels.ScreeningSummary{
		RecordID: rec.ID,
		Tier:     rec.Tier.String(),
	}
	if rec.Decision != nil {
		summary.Risk = string(rec.Decision.Risk)
		summary.ScreenedAt = rec.Decision.DecidedAt
	}
	if err := o.provisioner.CreateProfile(ctx, *rec.UserID, summary); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.ErrorContext(ctx, "profile provisioning failed",
			"record_id", rec.ID.String(), "user_id", rec.UserID.String(), "error", err)
		return o.mutate(ctx, rec, models.Patch{
			Error: o.recordError(models.ErrorKindProfileProvisioning, err.Error()),
		})
	}
	return o.mutate(ctx, rec, models.Patch{
		ProfileCreatedAt: models.TimePtr(o.clock.Now()),
		ClearError:       true,
	})
}

// fail moves rec to processing_failed with the error recorded.
func (o *Orchestrator) fail(ctx context.Context, rec *models.Record, kind models.ErrorKind, msg string) (*models.Record, error) {
	o.logger.ErrorContext(ctx, "screening failed",
		"record_id", rec.ID.String(), "status", rec.Status.String(), "kind", string(kind), "error", msg)
	return o.mutate(ctx, rec, models.Patch{
		Status: models.StatusPtr(models.StatusProcessingFailed),
		Error:  o.recordError(kind, msg),
	})
}

func (o *Orchestrator) recordError(kind models.ErrorKind, msg string) *models.RecordError {
	return &models.RecordError{Kind: kind, Message: msg, At: o.clock.Now()}
}

func (o *Orchestrator) providerFor(rec *models.Record) (providers.Provider, error) {
	if p, ok := o.registry.Get(rec.Provider); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", providers.ErrProviderNotFound, rec.Provider)
}

// mutate applies patch under the record lock.
func (o *Orchestrator) mutate(ctx context.Context, rec *models.Record, patch models.Patch) (*models.Record, error) {
	unlock, err := o.locker.Lock(ctx, rec.ID.String())
	if err != nil {
		return nil, fmt.Errorf("lock record %s: %w", rec.ID, err)
	}
	defer unlock()
	return o.update(ctx, rec, patch)
}

// update applies patch; the caller holds the record lock. Writes are
// stamped with the orchestrator clock.
func (o *Orchestrator) update(ctx context.Context, rec *models.Record, patch models.Patch) (*models.Record, error) {
	next, err := o.store.Update(requestcontext.WithTime(ctx, o.clock.Now()), rec.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("update record %s: %w", rec.ID, err)
	}
	if next.Status != rec.Status {
		o.metrics.ObserveTransition(rec.Status.String(), next.Status.String())
		o.logger.InfoContext(ctx, "screening status changed",
			"record_id", next.ID.String(), "from", rec.Status.String(), "to", next.Status.String())
	}
	return next, nil
}
