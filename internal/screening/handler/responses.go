package handler

import (
	"time"

	"basecamp/internal/screening/models"
	"basecamp/pkg/domain"
	"basecamp/pkg/platform/privacy"
)

type SubmitResponse struct {
	ID                  domain.ScreeningID `json:"id"`
	Status              string             `json:"status"`
	EstimatedCompletion string             `json:"estimated_completion"`
}

// AdminRecord is the operator view of a record. Consent IPs are anonymized
// and only the SSN suffix is shown.
type AdminRecord struct {
	ID                domain.ScreeningID  `json:"id"`
	Email             string              `json:"email"`
	FullName          string              `json:"full_name"`
	SSN               string              `json:"ssn"`
	Provider          string              `json:"provider"`
	Tier              string              `json:"tier"`
	Status            string              `json:"status"`
	ExternalReportID  string              `json:"external_report_id,omitempty"`
	Decision          *models.Decision    `json:"decision,omitempty"`
	ReportArtifactURL string              `json:"report_artifact_url,omitempty"`
	Error             *models.RecordError `json:"error,omitempty"`
	UserID            *domain.UserID      `json:"user_id,omitempty"`
	CancelRequested   bool                `json:"cancel_requested"`
	PollAttempts      int                 `json:"poll_attempts"`
	NoticeSentAt      *time.Time          `json:"notice_sent_at,omitempty"`
	RerunOf           *domain.ScreeningID `json:"rerun_of,omitempty"`
	ConsentGivenAt    time.Time           `json:"consent_given_at"`
	ConsentIP         string              `json:"consent_ip"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

type ListResponse struct {
	Screenings []*AdminRecord `json:"screenings"`
	Count      int            `json:"count"`
}

func toAdminRecord(rec *models.Record) *AdminRecord {
	return &AdminRecord{
		ID:                rec.ID,
		Email:             rec.Email,
		FullName:          rec.Candidate.FullName,
		SSN:               privacy.MaskSSN(rec.Candidate.SSNLast4),
		Provider:          rec.Provider,
		Tier:              rec.Tier.String(),
		Status:            rec.Status.String(),
		ExternalReportID:  rec.ExternalReportID,
		Decision:          rec.Decision,
		ReportArtifactURL: rec.ReportArtifactURL,
		Error:             rec.Error,
		UserID:            rec.UserID,
		CancelRequested:   rec.CancelRequested,
		PollAttempts:      rec.PollAttempts,
		NoticeSentAt:      rec.NoticeSentAt,
		RerunOf:           rec.RerunOf,
		ConsentGivenAt:    rec.Consent.GivenAt,
		ConsentIP:         privacy.AnonymizeIP(rec.Consent.IP),
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}

func toListResponse(recs []*models.Record) *ListResponse {
	out := make([]*AdminRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toAdminRecord(rec))
	}
	return &ListResponse{Screenings: out, Count: len(out)}
}
