package service

import (
	"time"

	"basecamp/internal/screening/models"
	"basecamp/pkg/domain"
)

// StatusView is what a candidate may see about their own screening. It never
// carries decision details, vendor ids or consent metadata.
type StatusView struct {
	ID                  domain.ScreeningID `json:"id"`
	Status              string             `json:"status"`
	EstimatedCompletion string             `json:"estimated_completion,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

func (s *Service) statusView(rec *models.Record) *StatusView {
	view := &StatusView{
		ID:        rec.ID,
		Status:    publicStatus(rec),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	switch rec.Status {
	case models.StatusPending, models.StatusSubmitted, models.StatusInProgress:
		view.EstimatedCompletion = s.EstimateCompletion(rec.Tier)
	}
	return view
}

// publicStatus collapses adjudication outcomes the candidate is told about
// out of band. A clear record reads complete only once its account exists.
func publicStatus(rec *models.Record) string {
	switch rec.Status {
	case models.StatusPending, models.StatusSubmitted, models.StatusInProgress:
		return "in_review"
	case models.StatusClear:
		if rec.UserID == nil {
			return "in_review"
		}
		return "complete"
	case models.StatusCancelled:
		return "cancelled"
	default:
		return "under_review"
	}
}
