package models

import (
	"fmt"
	"time"

	"basecamp/pkg/domain"
)

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Status            *Status
	ExternalReportID  *string
	Decision          *Decision
	ReportArtifactURL *string
	Error             *RecordError
	ClearError        bool
	UserID            *domain.UserID
	CancelRequested   *bool
	PollAttempts      *int
	NoticeSentAt      *time.Time
	ProfileCreatedAt  *time.Time

	// IfVersion rejects the patch with ErrVersionConflict unless the stored
	// record is at exactly this version.
	IfVersion *int64
}

// StatusChange reports whether applying p to a record in from changes status.
func (p Patch) StatusChange(from Status) (Status, bool) {
	if p.Status == nil || *p.Status == from {
		return from, false
	}
	return *p.Status, true
}

// ApplyTo validates p against rec and mutates rec in place. On error rec is
// left unchanged.
func (p Patch) ApplyTo(rec *Record, now time.Time) error {
	if p.IfVersion != nil && *p.IfVersion != rec.Version {
		return fmt.Errorf("%w: have %d, want %d", ErrVersionConflict, rec.Version, *p.IfVersion)
	}

	next := rec.Clone()

	if to, changed := p.StatusChange(rec.Status); changed {
		if !rec.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, to)
		}
		next.Status = to
	}

	if p.ExternalReportID != nil {
		if rec.ExternalReportID != "" && rec.ExternalReportID != *p.ExternalReportID {
			return ErrReportIDImmutable
		}
		next.ExternalReportID = *p.ExternalReportID
	}

	if p.Decision != nil {
		if rec.Decision != nil {
			return ErrDecisionAlreadySet
		}
		d := *p.Decision
		next.Decision = &d
	}
	if (next.Status == StatusClear || next.Status == StatusPendingAdverse) && next.Decision == nil {
		return fmt.Errorf("%w: %s", ErrDecisionRequired, next.Status)
	}

	if p.UserID != nil {
		if rec.UserID != nil && *rec.UserID != *p.UserID {
			return ErrUserIDAlreadySet
		}
		if next.Status != StatusClear {
			return ErrUserIDRequiresClear
		}
		uid := *p.UserID
		next.UserID = &uid
	}

	if p.ReportArtifactURL != nil {
		next.ReportArtifactURL = *p.ReportArtifactURL
	}
	if p.ClearError {
		next.Error = nil
	}
	if p.Error != nil {
		e := *p.Error
		next.Error = &e
	}
	if p.CancelRequested != nil {
		next.CancelRequested = *p.CancelRequested
	}
	if p.PollAttempts != nil {
		next.PollAttempts = *p.PollAttempts
	}
	if p.NoticeSentAt != nil {
		t := *p.NoticeSentAt
		next.NoticeSentAt = &t
	}
	if p.ProfileCreatedAt != nil {
		t := *p.ProfileCreatedAt
		next.ProfileCreatedAt = &t
	}

	next.Version = rec.Version + 1
	next.UpdatedAt = now
	*rec = *next
	return nil
}

// Helpers for building patches inline.

func StatusPtr(s Status) *Status { return &s }
func StringPtr(s string) *string { return &s }
func IntPtr(n int) *int          { return &n }
func BoolPtr(b bool) *bool       { return &b }
func TimePtr(t time.Time) *time.Time {
	return &t
}
