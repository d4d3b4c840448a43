// Package checkr adapts the production background-check vendor.
package checkr

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"basecamp/internal/screening/models"
	"basecamp/internal/screening/providers"
	"basecamp/internal/screening/providers/adapters"
)

var packages = map[models.Tier]string{
	models.TierBasic:         "driver_basic",
	models.TierStandard:      "tasker_standard",
	models.TierComprehensive: "tasker_pro",
}

var estimates = map[models.Tier]string{
	models.TierBasic:         "1-2 business days",
	models.TierStandard:      "2-3 business days",
	models.TierComprehensive: "3-5 business days",
}

// recordTypes maps the vendor's record types onto finding categories.
var recordTypes = map[string]providers.FindingCategory{
	"violent_felony":    providers.FindingViolentFelony,
	"sex_offender":      providers.FindingSexOffense,
	"global_watchlist":  providers.FindingSanctions,
	"ofac":              providers.FindingSanctions,
	"identity_mismatch": providers.FindingIdentityMismatch,
	"ssn_invalid":       providers.FindingSSNInvalid,
	"felony":            providers.FindingFelony,
	"misdemeanor":       providers.FindingMisdemeanor,
	"motor_vehicle":     providers.FindingTraffic,
	"infraction":        providers.FindingInfraction,
}

type Provider struct {
	http *adapters.HTTPClient
}

func New(client *adapters.HTTPClient) *Provider {
	return &Provider{http: client}
}

func (p *Provider) ID() string { return providers.Checkr }

type candidate struct {
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	DOB        string `json:"dob"`
	SSN        string `json:"ssn"`
	Zipcode    string `json:"zipcode"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
}

type createReport struct {
	Candidate   candidate `json:"candidate"`
	Package     string    `json:"package"`
	ExternalRef string    `json:"external_id"`
}

type reportRecord struct {
	Type        string `json:"type"`
	Disposition string `json:"disposition"`
	OffenseDate string `json:"offense_date"`
}

type report struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Result       *string        `json:"result"`
	Adjudication *string        `json:"adjudication"`
	CompletedAt  *time.Time     `json:"completed_at"`
	ReportURL    string         `json:"report_url"`
	Records      []reportRecord `json:"records"`
}

func (p *Provider) Initiate(ctx context.Context, req providers.Request) (string, error) {
	pkg, ok := packages[req.Tier]
	if !ok {
		return "", providers.NewProviderError(providers.ErrorBadData, p.ID(), "unsupported tier "+req.Tier.String(), nil)
	}
	body := createReport{
		Candidate: candidate{
			FirstName:  req.FirstName,
			MiddleName: req.MiddleName,
			LastName:   req.LastName,
			Email:      req.Email,
			Phone:      req.Phone,
			DOB:        req.DateOfBirth.Format(models.DateLayout),
			SSN:        req.SSN,
			Zipcode:    req.Address.PostalCode,
			Street:     req.Address.Street,
			City:       req.Address.City,
			State:      req.Address.State,
		},
		Package:     pkg,
		ExternalRef: req.ReferenceID,
	}

	var out report
	if err := p.http.Do(ctx, http.MethodPost, "/v1/reports", body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", providers.NewProviderError(providers.ErrorContractMismatch, p.ID(), "report id missing from response", nil)
	}
	return out.ID, nil
}

func (p *Provider) PollStatus(ctx context.Context, reportID string) (*providers.Report, error) {
	var out report
	if err := p.http.Do(ctx, http.MethodGet, "/v1/reports/"+url.PathEscape(reportID), nil, &out); err != nil {
		return nil, err
	}
	return p.normalize(reportID, out)
}

func (p *Provider) normalize(reportID string, r report) (*providers.Report, error) {
	rep := &providers.Report{ReportID: reportID, ReportURL: r.ReportURL}

	switch r.Status {
	case "pending":
		rep.Status = providers.ReportPending
	case "suspended", "dispute":
		rep.Status = providers.ReportInProgress
	case "canceled":
		rep.Status = providers.ReportFailed
	case "complete":
		rep.Status = providers.ReportComplete
	default:
		return nil, providers.NewProviderError(providers.ErrorContractMismatch, p.ID(), "unknown report status "+r.Status, nil)
	}
	if rep.Status != providers.ReportComplete {
		return rep, nil
	}

	if r.Result != nil {
		rep.RawResult = *r.Result
	}
	switch rep.RawResult {
	case "clear":
		rep.Result = providers.ResultClear
	case "consider":
		rep.Result = providers.ResultConsider
	default:
		rep.Result = providers.ResultUnknown
	}
	if r.Adjudication != nil {
		rep.Adjudication = *r.Adjudication
	}
	if r.CompletedAt != nil {
		rep.CompletedAt = *r.CompletedAt
	}
	for _, rec := range r.Records {
		category, ok := recordTypes[strings.ToLower(rec.Type)]
		if !ok {
			category = providers.FindingOther
		}
		f := providers.Finding{Category: category, Description: rec.Disposition}
		if d, err := time.Parse(models.DateLayout, rec.OffenseDate); err == nil {
			f.OccurredAt = d
		}
		rep.Findings = append(rep.Findings, f)
	}
	return rep, nil
}

// Cancel treats 404 and 409 as an already finished report.
func (p *Provider) Cancel(ctx context.Context, reportID string) error {
	err := p.http.Do(ctx, http.MethodPost, "/v1/reports/"+url.PathEscape(reportID)+"/cancel", nil, nil)
	switch providers.GetCategory(err) {
	case providers.ErrorNotFound, providers.ErrorRejected:
		return nil
	}
	return err
}

func (p *Provider) EstimateCompletion(tier models.Tier) string {
	if e, ok := estimates[tier]; ok {
		return e
	}
	return estimates[models.DefaultTier]
}

var _ providers.Provider = (*Provider)(nil)
