package testutil

import (
	"time"

	"github.com/google/uuid"

	"basecamp/internal/screening/models"
	"basecamp/pkg/domain"
)

// Fixed instants and IDs for deterministic tests.
var (
	T0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	TestIDs = struct {
		Screening1 domain.ScreeningID
		Screening2 domain.ScreeningID
		User1      domain.UserID
	}{
		Screening1: domain.ScreeningID(uuid.MustParse("5c000000-0000-0000-0000-000000000001")),
		Screening2: domain.ScreeningID(uuid.MustParse("5c000000-0000-0000-0000-000000000002")),
		User1:      domain.UserID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	}
)

// NewRequest returns a registration request that passes validation.
func NewRequest(email string) *models.Request {
	return &models.Request{
		FirstName:   "Dana",
		LastName:    "Reyes",
		Email:       email,
		Phone:       "+14155550123",
		DateOfBirth: "1990-04-12",
		SSN:         "123-45-6789",
		Address: models.Address{
			Street:     "1 Market St",
			City:       "San Francisco",
			State:      "CA",
			PostalCode: "94105",
			Country:    "US",
		},
		Tier:         models.TierStandard,
		Password:     "correct-horse-battery",
		ConsentGiven: true,
	}
}

// RecordBuilder builds screening records in a chosen state.
type RecordBuilder struct {
	rec *models.Record
}

func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{rec: &models.Record{
		ID:       domain.NewScreeningID(),
		Email:    "dana@example.com",
		Provider: "fake",
		Tier:     models.TierStandard,
		Candidate: models.Candidate{
			FullName:  "Dana Reyes",
			SSNLast4:  "6789",
			BirthYear: 1990,
		},
		CredentialHash: "$2a$10$fixture",
		Status:         models.StatusPending,
		Consent:        models.Consent{GivenAt: T0, IP: "203.0.113.7", UserAgent: "test"},
		CreatedAt:      T0,
		UpdatedAt:      T0,
	}}
}

func (b *RecordBuilder) WithID(id domain.ScreeningID) *RecordBuilder {
	b.rec.ID = id
	return b
}

func (b *RecordBuilder) WithEmail(email string) *RecordBuilder {
	b.rec.Email = email
	return b
}

func (b *RecordBuilder) WithProvider(provider string) *RecordBuilder {
	b.rec.Provider = provider
	return b
}

func (b *RecordBuilder) WithStatus(status models.Status) *RecordBuilder {
	b.rec.Status = status
	return b
}

func (b *RecordBuilder) WithReportID(id string) *RecordBuilder {
	b.rec.ExternalReportID = id
	return b
}

func (b *RecordBuilder) WithDecision(risk models.Risk, adverse bool) *RecordBuilder {
	b.rec.Decision = &models.Decision{Risk: risk, AdverseActionRequired: adverse, DecidedAt: T0}
	return b
}

func (b *RecordBuilder) WithError(kind models.ErrorKind, msg string) *RecordBuilder {
	b.rec.Error = &models.RecordError{Kind: kind, Message: msg, At: T0}
	return b
}

func (b *RecordBuilder) WithUserID(id domain.UserID) *RecordBuilder {
	b.rec.UserID = &id
	return b
}

func (b *RecordBuilder) CreatedAt(t time.Time) *RecordBuilder {
	b.rec.CreatedAt = t
	b.rec.UpdatedAt = t
	return b
}

func (b *RecordBuilder) RerunOf(id domain.ScreeningID) *RecordBuilder {
	b.rec.RerunOf = &id
	return b
}

func (b *RecordBuilder) Build() *models.Record {
	return b.rec.Clone()
}
