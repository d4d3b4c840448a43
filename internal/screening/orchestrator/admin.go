package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"basecamp/internal/screening/models"
	"basecamp/pkg/domain"
	dErrors "basecamp/pkg/domain-errors"
)

// ErrRerunNotAllowed is returned for records that are still being worked.
var ErrRerunNotAllowed = dErrors.New(dErrors.CodeScreeningNotRerunable, "screening is still active and cannot be rerun")

// RequestCancel flags id for cancellation. A running task observes the flag
// at the top of its next poll iteration, whichever instance runs it;
// without one the cancellation is completed here. Records past the poll loop are returned unchanged.
func (o *Orchestrator) RequestCancel(ctx context.Context, id domain.ScreeningID) (*models.Record, error) {
	unlock, err := o.locker.Lock(ctx, id.String())
	if err != nil {
		return nil, fmt.Errorf("lock record %s: %w", id, err)
	}
	defer unlock()

	rec, err := o.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case models.StatusPending, models.StatusSubmitted, models.StatusInProgress:
	default:
		return rec, nil
	}

	if !rec.CancelRequested {
		if rec, err = o.update(ctx, rec, models.Patch{CancelRequested: models.BoolPtr(true)}); err != nil {
			return nil, err
		}
	}
	if o.wake(id) {
		o.logger.InfoContext(ctx, "cancel requested; task will stop at its next poll", "record_id", id.String())
		return rec, nil
	}
	busy, err := o.busy(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check task lease %s: %w", id, err)
	}
	if busy {
		o.logger.InfoContext(ctx, "cancel requested; task on another instance will stop at its next poll",
			"record_id", id.String())
		return rec, nil
	}

	patch := models.Patch{Status: models.StatusPtr(models.StatusCancelled)}
	if rec.ExternalReportID != "" {
		p, err := o.providerFor(rec)
		if err != nil {
			return nil, err
		}
		if err := o.cancelReport(ctx, p, rec.ExternalReportID); err != nil {
			o.logger.WarnContext(ctx, "vendor cancel failed",
				"record_id", id.String(), "report_id", rec.ExternalReportID, "error", err)
			patch.Error = o.recordError(models.ErrorKindProviderUnavailable, "vendor cancel failed: "+err.Error())
		}
	}
	rec, err = o.update(ctx, rec, patch)
	if err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.Cancellations.Inc()
	}
	return rec, nil
}

// Rerun re-enters the workflow at the step the record's failure calls for:
//
//	clear, complete                     nothing
//	clear, profile failed               create profile
//	account_creation_failed             provision again
//	pending_adverse, notice failed      resend notice
//	processing_failed, cancelled        new record, same email
//
// A new record reuses the old report id when polling ran out or was
// interrupted; otherwise req must carry the candidate details again.
func (o *Orchestrator) Rerun(ctx context.Context, id domain.ScreeningID, req *models.Request) (*models.Record, error) {
	unlock, err := o.locker.Lock(ctx, id.String())
	if err != nil {
		return nil, fmt.Errorf("lock record %s: %w", id, err)
	}
	defer unlock()

	rec, err := o.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case rec.Status == models.StatusClear && rec.HasErrorKind(models.ErrorKindProfileProvisioning):
		return o.resumeInPlace(ctx, rec, "profile", models.Patch{ClearError: true})
	case rec.Status == models.StatusClear:
		o.countRerun("noop")
		return rec, nil
	case rec.Status == models.StatusAccountCreationFailed:
		return o.resumeInPlace(ctx, rec, "provision", models.Patch{
			Status:     models.StatusPtr(models.StatusClear),
			ClearError: true,
		})
	case rec.Status == models.StatusPendingAdverse && rec.HasErrorKind(models.ErrorKindNotificationDelivery):
		return o.resumeInPlace(ctx, rec, "notice", models.Patch{ClearError: true})
	case rec.Status == models.StatusProcessingFailed, rec.Status == models.StatusCancelled:
		return o.rerunAsNew(ctx, rec, req)
	}
	return nil, ErrRerunNotAllowed
}

func (o *Orchestrator) resumeInPlace(ctx context.Context, rec *models.Record, path string, patch models.Patch) (*models.Record, error) {
	next, err := o.update(ctx, rec, patch)
	if err != nil {
		return nil, err
	}
	o.countRerun(path)
	o.logger.InfoContext(ctx, "screening rerun", "record_id", rec.ID.String(), "path", path)
	o.Dispatch(next.ID, nil)
	return next, nil
}

func (o *Orchestrator) rerunAsNew(ctx context.Context, old *models.Record, req *models.Request) (*models.Record, error) {
	now := o.clock.Now()
	fresh := &models.Record{
		ID:             domain.NewScreeningID(),
		Email:          old.Email,
		Provider:       old.Provider,
		Tier:           old.Tier,
		Candidate:      old.Candidate,
		CredentialHash: old.CredentialHash,
		Consent:        old.Consent,
		Status:         models.StatusPending,
		RerunOf:        &old.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, ok := o.registry.Get(fresh.Provider); !ok {
		fresh.Provider = o.registry.Default().ID()
	}

	reuse := old.ExternalReportID != "" &&
		(old.HasErrorKind(models.ErrorKindPollingExhausted) || old.HasErrorKind(models.ErrorKindInterrupted))
	path := "resubmit"
	if reuse {
		fresh.Status = models.StatusSubmitted
		fresh.ExternalReportID = old.ExternalReportID
		fresh.Provider = old.Provider
		path = "repoll"
		req = nil
	} else {
		if req == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "candidate details are required to rerun this screening")
		}
		req.Normalize()
		if err := req.Validate(); err != nil {
			return nil, err
		}
		if !strings.EqualFold(req.Email, old.Email) {
			return nil, dErrors.New(dErrors.CodeValidation, "rerun email must match the original screening")
		}
		fresh.Tier = req.Tier
		fresh.Candidate = req.Summary()
	}

	if err := o.store.Create(ctx, fresh); err != nil {
		if errors.Is(err, models.ErrDuplicateActive) {
			return nil, dErrors.Wrap(err, dErrors.CodeDuplicateScreening, "an active screening already exists for this email")
		}
		return nil, err
	}
	o.countRerun(path)
	o.logger.InfoContext(ctx, "screening rerun as new record",
		"record_id", fresh.ID.String(), "rerun_of", old.ID.String(), "path", path)
	o.Dispatch(fresh.ID, req)
	return fresh, nil
}

func (o *Orchestrator) countRerun(path string) {
	if o.metrics != nil {
		o.metrics.Reruns.WithLabelValues(path).Inc()
	}
}

// Resume restarts work left unfinished by a previous process. Records whose
// task lease is held, here or on another instance, are left to that task.
// Unleased pending records cannot be resubmitted because the registration
// payload is never stored; they fail as interrupted. It returns the number
// of tasks started.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	recs, err := o.store.ListByStatus(ctx,
		models.StatusPending, models.StatusSubmitted, models.StatusInProgress,
		models.StatusClear, models.StatusPendingAdverse)
	if err != nil {
		return 0, fmt.Errorf("list unfinished screenings: %w", err)
	}

	started := 0
	for _, rec := range recs {
		busy, err := o.busy(ctx, rec.ID)
		if err != nil {
			o.logger.WarnContext(ctx, "could not check task lease; leaving record",
				"record_id", rec.ID.String(), "error", err)
			continue
		}
		if busy {
			continue
		}
		if rec.Status == models.StatusPending {
			if _, err := o.fail(ctx, rec, models.ErrorKindInterrupted,
				"process restarted before submission; rerun with candidate details"); err != nil {
				o.logger.ErrorContext(ctx, "could not mark pending record interrupted",
					"record_id", rec.ID.String(), "error", err)
			}
			continue
		}
		if needsWork(rec) && o.Dispatch(rec.ID, nil) {
			started++
		}
	}
	o.logger.InfoContext(ctx, "screening tasks resumed", "count", started)
	return started, nil
}
