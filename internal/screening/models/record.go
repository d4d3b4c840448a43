package models

import (
	"time"

	"basecamp/pkg/domain"
)

// Risk is the adjudicated risk classification.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Decision is the resolved outcome of a completed report.
type Decision struct {
	Risk                  Risk      `json:"risk"`
	AdverseActionRequired bool      `json:"adverse_action_required"`
	Reasons               []string  `json:"reasons,omitempty"`
	DecidedAt             time.Time `json:"decided_at"`
}

// ErrorKind classifies a failure recorded on a screening.
type ErrorKind string

const (
	ErrorKindValidation           ErrorKind = "validation"
	ErrorKindProviderUnavailable  ErrorKind = "provider_unavailable"
	ErrorKindProviderAPI          ErrorKind = "provider_api_error"
	ErrorKindPollingExhausted     ErrorKind = "polling_exhausted"
	ErrorKindNotificationDelivery ErrorKind = "notification_delivery"
	ErrorKindAccountProvisioning  ErrorKind = "account_provisioning"
	ErrorKindProfileProvisioning  ErrorKind = "profile_provisioning"
	ErrorKindInterrupted          ErrorKind = "interrupted"
	ErrorKindInternal             ErrorKind = "internal"
)

// RecordError is the last failure captured for a record.
type RecordError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Consent is the audit trail of the candidate's authorization.
type Consent struct {
	GivenAt   time.Time `json:"given_at"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
}

// Candidate is the redacted summary kept after the request is discarded.
type Candidate struct {
	FullName  string `json:"full_name"`
	Phone     string `json:"phone,omitempty"`
	SSNLast4  string `json:"ssn_last4"`
	BirthYear int    `json:"birth_year"`
}

// Record is one screening attempt.
type Record struct {
	ID                domain.ScreeningID  `json:"id"`
	Email             string              `json:"email"`
	Provider          string              `json:"provider"`
	Tier              Tier                `json:"tier"`
	Candidate         Candidate           `json:"candidate"`
	CredentialHash    string              `json:"-"`
	ExternalReportID  string              `json:"external_report_id,omitempty"`
	Status            Status              `json:"status"`
	Consent           Consent             `json:"consent"`
	Decision          *Decision           `json:"decision,omitempty"`
	ReportArtifactURL string              `json:"report_artifact_url,omitempty"`
	Error             *RecordError        `json:"error,omitempty"`
	UserID            *domain.UserID      `json:"user_id,omitempty"`
	CancelRequested   bool                `json:"cancel_requested"`
	PollAttempts      int                 `json:"poll_attempts"`
	NoticeSentAt      *time.Time          `json:"notice_sent_at,omitempty"`
	ProfileCreatedAt  *time.Time          `json:"profile_created_at,omitempty"`
	RerunOf           *domain.ScreeningID `json:"rerun_of,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	Version           int64               `json:"version"`
}

// Clone returns a deep copy safe to hand across goroutines.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Decision != nil {
		d := *r.Decision
		d.Reasons = append([]string(nil), r.Decision.Reasons...)
		cp.Decision = &d
	}
	if r.Error != nil {
		e := *r.Error
		cp.Error = &e
	}
	if r.UserID != nil {
		u := *r.UserID
		cp.UserID = &u
	}
	if r.NoticeSentAt != nil {
		t := *r.NoticeSentAt
		cp.NoticeSentAt = &t
	}
	if r.ProfileCreatedAt != nil {
		t := *r.ProfileCreatedAt
		cp.ProfileCreatedAt = &t
	}
	if r.RerunOf != nil {
		id := *r.RerunOf
		cp.RerunOf = &id
	}
	return &cp
}

// Terminal reports whether the workflow has nothing left to do.
func (r *Record) Terminal() bool {
	if r.Status == StatusClear {
		return r.UserID != nil && !r.HasErrorKind(ErrorKindProfileProvisioning)
	}
	return r.Status.Terminal()
}

func (r *Record) HasErrorKind(kind ErrorKind) bool {
	return r.Error != nil && r.Error.Kind == kind
}

// NeedsNotice reports whether a pre-adverse notice is still owed.
func (r *Record) NeedsNotice() bool {
	return r.Status == StatusPendingAdverse && r.NoticeSentAt == nil
}
