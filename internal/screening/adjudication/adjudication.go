// Package adjudication turns a completed vendor report into a decision.
// Everything here is pure: same report and tier, same decision.
package adjudication

import (
	"errors"
	"fmt"
	"time"

	"basecamp/internal/screening/models"
	"basecamp/internal/screening/providers"
)

// ErrUnrecognizedAdjudication means the vendor result cannot be mapped to a
// decision. It never results in adverse action on its own.
var ErrUnrecognizedAdjudication = errors.New("unrecognized adjudication")

// ErrReportNotComplete is returned for reports that have not finished.
var ErrReportNotComplete = errors.New("report is not complete")

var lookback = map[models.Tier]int{
	models.TierBasic:         7,
	models.TierStandard:      7,
	models.TierComprehensive: 10,
}

var disqualifying = map[providers.FindingCategory]bool{
	providers.FindingViolentFelony:    true,
	providers.FindingSexOffense:       true,
	providers.FindingSanctions:        true,
	providers.FindingIdentityMismatch: true,
	providers.FindingSSNInvalid:       true,
}

// neverExpires holds findings that disqualify regardless of age.
var neverExpires = map[providers.FindingCategory]bool{
	providers.FindingSanctions:  true,
	providers.FindingSexOffense: true,
}

// LookbackYears returns how far back disqualifying findings count for tier.
func LookbackYears(tier models.Tier) int {
	if y, ok := lookback[tier]; ok {
		return y
	}
	return lookback[models.DefaultTier]
}

// Resolve classifies a completed report. DecidedAt is the report's
// completion time so the result does not depend on when it runs.
func Resolve(report providers.Report, tier models.Tier) (models.Decision, error) {
	if report.Status != providers.ReportComplete {
		return models.Decision{}, fmt.Errorf("%w: %s", ErrReportNotComplete, report.Status)
	}
	decision := models.Decision{DecidedAt: report.CompletedAt}

	if report.Adjudication == providers.AdjudicationPreAdverseAction || report.Result == providers.ResultAdverse {
		decision.Risk = models.RiskHigh
		decision.AdverseActionRequired = true
		decision.Reasons = append([]string{"vendor recommended adverse action"}, describe(report.Findings)...)
		return decision, nil
	}
	if report.Adjudication == providers.AdjudicationEngaged {
		decision.Risk = models.RiskLow
		decision.Reasons = []string{"vendor adjudicated as engaged"}
		return decision, nil
	}

	switch report.Result {
	case providers.ResultClear:
		decision.Risk = models.RiskLow
		return decision, nil
	case providers.ResultConsider:
		return considered(decision, report, tier), nil
	default:
		return models.Decision{}, fmt.Errorf("%w: %q", ErrUnrecognizedAdjudication, report.RawResult)
	}
}

func considered(decision models.Decision, report providers.Report, tier models.Tier) models.Decision {
	cutoff := report.CompletedAt.AddDate(-LookbackYears(tier), 0, 0)

	decision.Risk = models.RiskLow
	for _, f := range report.Findings {
		switch {
		case disqualifying[f.Category] && (neverExpires[f.Category] || withinLookback(f, cutoff)):
			decision.Risk = models.RiskHigh
			decision.AdverseActionRequired = true
			decision.Reasons = append(decision.Reasons, "disqualifying: "+label(f))
		default:
			if decision.Risk == models.RiskLow {
				decision.Risk = models.RiskMedium
			}
			decision.Reasons = append(decision.Reasons, "minor: "+label(f))
		}
	}
	return decision
}

// withinLookback treats an undated finding as recent.
func withinLookback(f providers.Finding, cutoff time.Time) bool {
	return f.OccurredAt.IsZero() || !f.OccurredAt.Before(cutoff)
}

func describe(findings []providers.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, label(f))
	}
	return out
}

func label(f providers.Finding) string {
	if f.Description == "" {
		return string(f.Category)
	}
	return string(f.Category) + " (" + f.Description + ")"
}
