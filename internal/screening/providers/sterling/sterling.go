// Package sterling adapts the secondary background-check vendor, whose
// request and response shapes differ from checkr's.
package sterling

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"basecamp/internal/screening/models"
	"basecamp/internal/screening/providers"
	"basecamp/internal/screening/providers/adapters"
)

var packageIDs = map[models.Tier]string{
	models.TierBasic:         "PKG-100",
	models.TierStandard:      "PKG-200",
	models.TierComprehensive: "PKG-300",
}

var turnaround = map[models.Tier]time.Duration{
	models.TierBasic:         24 * time.Hour,
	models.TierStandard:      48 * time.Hour,
	models.TierComprehensive: 96 * time.Hour,
}

var itemCategories = map[string]providers.FindingCategory{
	"VIOLENT_FELONY":    providers.FindingViolentFelony,
	"SEX_OFFENDER":      providers.FindingSexOffense,
	"SANCTIONS":         providers.FindingSanctions,
	"WATCHLIST":         providers.FindingSanctions,
	"IDENTITY_MISMATCH": providers.FindingIdentityMismatch,
	"SSN_TRACE_FAILURE": providers.FindingSSNInvalid,
	"FELONY":            providers.FindingFelony,
	"MISDEMEANOR":       providers.FindingMisdemeanor,
	"TRAFFIC":           providers.FindingTraffic,
	"CIVIL_INFRACTION":  providers.FindingInfraction,
}

type Provider struct {
	http *adapters.HTTPClient
}

func New(client *adapters.HTTPClient) *Provider {
	return &Provider{http: client}
}

func (p *Provider) ID() string { return providers.Sterling }

type address struct {
	AddressLine  string `json:"addressLine"`
	Municipality string `json:"municipality"`
	RegionCode   string `json:"regionCode"`
	PostalCode   string `json:"postalCode"`
	CountryCode  string `json:"countryCode"`
}

type candidate struct {
	GivenName  string  `json:"givenName"`
	MiddleName string  `json:"middleName,omitempty"`
	FamilyName string  `json:"familyName"`
	DOB        string  `json:"dob"`
	SSN        string  `json:"ssn"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone,omitempty"`
	Address    address `json:"address"`
}

type createScreening struct {
	PackageID string    `json:"packageId"`
	ClientRef string    `json:"clientReferenceId"`
	Candidate candidate `json:"candidate"`
}

type reportItem struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

type screening struct {
	ID           string       `json:"id"`
	Status       string       `json:"status"`
	Result       string       `json:"result"`
	Adjudication string       `json:"adjudication"`
	UpdatedAt    *time.Time   `json:"updatedAt"`
	ReportItems  []reportItem `json:"reportItems"`
	Links        struct {
		PDF string `json:"pdf"`
	} `json:"links"`
}

func (p *Provider) Initiate(ctx context.Context, req providers.Request) (string, error) {
	pkg, ok := packageIDs[req.Tier]
	if !ok {
		return "", providers.NewProviderError(providers.ErrorBadData, p.ID(), "unsupported tier "+req.Tier.String(), nil)
	}
	body := createScreening{
		PackageID: pkg,
		ClientRef: req.ReferenceID,
		Candidate: candidate{
			GivenName:  req.FirstName,
			MiddleName: req.MiddleName,
			FamilyName: req.LastName,
			DOB:        req.DateOfBirth.Format(models.DateLayout),
			SSN:        req.SSN,
			Email:      req.Email,
			Phone:      req.Phone,
			Address: address{
				AddressLine:  req.Address.Street,
				Municipality: req.Address.City,
				RegionCode:   req.Address.State,
				PostalCode:   req.Address.PostalCode,
				CountryCode:  req.Address.Country,
			},
		},
	}

	var out screening
	if err := p.http.Do(ctx, http.MethodPost, "/v2/screenings", body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", providers.NewProviderError(providers.ErrorContractMismatch, p.ID(), "screening id missing from response", nil)
	}
	return out.ID, nil
}

func (p *Provider) PollStatus(ctx context.Context, reportID string) (*providers.Report, error) {
	var out screening
	if err := p.http.Do(ctx, http.MethodGet, "/v2/screenings/"+url.PathEscape(reportID), nil, &out); err != nil {
		return nil, err
	}

	rep := &providers.Report{ReportID: reportID, ReportURL: out.Links.PDF}
	switch out.Status {
	case "Pending":
		rep.Status = providers.ReportPending
	case "In Progress":
		rep.Status = providers.ReportInProgress
	case "Canceled", "Error":
		rep.Status = providers.ReportFailed
	case "Complete":
		rep.Status = providers.ReportComplete
	default:
		return nil, providers.NewProviderError(providers.ErrorContractMismatch, p.ID(), "unknown screening status "+out.Status, nil)
	}
	if rep.Status != providers.ReportComplete {
		return rep, nil
	}

	rep.RawResult = out.Result
	rep.Adjudication = out.Adjudication
	switch out.Result {
	case "Clear":
		rep.Result = providers.ResultClear
	case "Consider":
		rep.Result = providers.ResultConsider
	case "Adverse":
		rep.Result = providers.ResultAdverse
	default:
		rep.Result = providers.ResultUnknown
	}
	if out.UpdatedAt != nil {
		rep.CompletedAt = *out.UpdatedAt
	}
	for _, item := range out.ReportItems {
		category, ok := itemCategories[strings.ToUpper(item.Category)]
		if !ok {
			category = providers.FindingOther
		}
		f := providers.Finding{Category: category, Description: item.Description}
		if d, err := time.Parse(models.DateLayout, item.Date); err == nil {
			f.OccurredAt = d
		}
		rep.Findings = append(rep.Findings, f)
	}
	return rep, nil
}

// Cancel treats 404 and 409 as an already finished screening.
func (p *Provider) Cancel(ctx context.Context, reportID string) error {
	err := p.http.Do(ctx, http.MethodDelete, "/v2/screenings/"+url.PathEscape(reportID), nil, nil)
	switch providers.GetCategory(err) {
	case providers.ErrorNotFound, providers.ErrorRejected:
		return nil
	}
	return err
}

// EstimateCompletion reports the contracted turnaround in hours.
func (p *Provider) EstimateCompletion(tier models.Tier) string {
	d, ok := turnaround[tier]
	if !ok {
		d = turnaround[models.DefaultTier]
	}
	return fmt.Sprintf("up to %d hours", int(d.Hours()))
}

var _ providers.Provider = (*Provider)(nil)
