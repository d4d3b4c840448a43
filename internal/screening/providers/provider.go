package providers

import (
	"context"
	"time"

	"basecamp/internal/screening/models"
	"basecamp/pkg/domain"
)

// ReportStatus is the normalized vendor report state.
type ReportStatus string

const (
	ReportPending    ReportStatus = "pending"
	ReportInProgress ReportStatus = "in_progress"
	ReportComplete   ReportStatus = "complete"
	ReportFailed     ReportStatus = "failed"
)

// Result is the normalized headline outcome of a completed report.
type Result string

const (
	ResultClear    Result = "clear"
	ResultConsider Result = "consider"
	ResultAdverse  Result = "adverse"
	ResultUnknown  Result = "unknown"
)

// Vendor adjudication values that override the headline result.
const (
	AdjudicationEngaged          = "engaged"
	AdjudicationPreAdverseAction = "pre_adverse_action"
)

// FindingCategory normalizes the vendors' record types.
type FindingCategory string

const (
	FindingViolentFelony    FindingCategory = "violent_felony"
	FindingSexOffense       FindingCategory = "sex_offense"
	FindingSanctions        FindingCategory = "sanctions"
	FindingIdentityMismatch FindingCategory = "identity_mismatch"
	FindingSSNInvalid       FindingCategory = "ssn_invalid"
	FindingFelony           FindingCategory = "felony"
	FindingMisdemeanor      FindingCategory = "misdemeanor"
	FindingTraffic          FindingCategory = "traffic"
	FindingInfraction       FindingCategory = "infraction"
	FindingOther            FindingCategory = "other"
)

// Finding is one record surfaced by a report.
type Finding struct {
	Category    FindingCategory
	Description string
	OccurredAt  time.Time // zero when the vendor omits it
}

// Report is a vendor report normalized to one shape.
type Report struct {
	ReportID     string
	Status       ReportStatus
	Result       Result
	RawResult    string
	Adjudication string
	Findings     []Finding
	CompletedAt  time.Time
	ReportURL    string
}

// Request is what a vendor needs to start a report.
type Request struct {
	ReferenceID string
	FirstName   string
	MiddleName  string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth time.Time
	SSN         string
	Address     models.Address
	Tier        models.Tier
}

// NewRequest builds a vendor request from a validated registration payload.
func NewRequest(id domain.ScreeningID, req *models.Request) (Request, error) {
	dob, err := req.BirthDate()
	if err != nil {
		return Request{}, err
	}
	return Request{
		ReferenceID: id.String(),
		FirstName:   req.FirstName,
		MiddleName:  req.MiddleName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: dob,
		SSN:         req.SSN,
		Address:     req.Address,
		Tier:        req.Tier,
	}, nil
}

// Provider is the contract every background-check vendor adapter meets.
// Implementations must be safe for concurrent use.
type Provider interface {
	ID() string

	// Initiate submits the candidate and returns the vendor's report id.
	Initiate(ctx context.Context, req Request) (string, error)

	// PollStatus fetches the report's current state.
	PollStatus(ctx context.Context, reportID string) (*Report, error)

	// Cancel stops a report. Cancelling a finished or already cancelled
	// report is not an error.
	Cancel(ctx context.Context, reportID string) error

	// EstimateCompletion is a human-readable turnaround for tier. No I/O.
	EstimateCompletion(tier models.Tier) string
}
