package models

import (
	"strings"
	"time"

	dErrors "basecamp/pkg/domain-errors"
	s "basecamp/pkg/string"
	"basecamp/pkg/validation"
)

// ConsentRequiredMessage is returned verbatim when consent is missing.
const ConsentRequiredMessage = "Must consent to background check"

// DateLayout is the wire format for dates of birth.
const DateLayout = "2006-01-02"

type Address struct {
	Street     string `json:"street" validate:"notblank,max=200"`
	City       string `json:"city" validate:"notblank,max=100"`
	State      string `json:"state" validate:"required,len=2"`
	PostalCode string `json:"postal_code" validate:"required,min=5,max=10"`
	Country    string `json:"country" validate:"omitempty,len=2"`
}

// Request is the transient registration payload. It is never persisted
// beyond the Candidate summary and the credential hash.
type Request struct {
	FirstName    string  `json:"first_name" validate:"notblank,max=100"`
	MiddleName   string  `json:"middle_name,omitempty" validate:"max=100"`
	LastName     string  `json:"last_name" validate:"notblank,max=100"`
	Email        string  `json:"email" validate:"required,email,max=254"`
	Phone        string  `json:"phone,omitempty" validate:"omitempty,phone"`
	DateOfBirth  string  `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	SSN          string  `json:"ssn" validate:"required,ssn"`
	Address      Address `json:"address"`
	Tier         Tier    `json:"tier,omitempty" validate:"omitempty,oneof=basic standard comprehensive"`
	Password     string  `json:"password" validate:"required,min=8,max=72"`
	ConsentGiven bool    `json:"consent_given"`
}

func (r *Request) Normalize() {
	if r == nil {
		return
	}
	s.TrimStrings(&r.FirstName, &r.MiddleName, &r.LastName, &r.Phone, &r.DateOfBirth, &r.SSN,
		&r.Address.Street, &r.Address.City, &r.Address.State, &r.Address.PostalCode, &r.Address.Country)
	r.Email = s.NormalizeEmail(r.Email)
	r.Address.State = strings.ToUpper(r.Address.State)
	r.Address.Country = strings.ToUpper(r.Address.Country)
	if r.Address.Country == "" {
		r.Address.Country = "US"
	}
	if r.Tier == "" {
		r.Tier = DefaultTier
	}
}

// Validate checks consent before anything else.
func (r *Request) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if !r.ConsentGiven {
		return dErrors.New(dErrors.CodeValidation, ConsentRequiredMessage)
	}
	return validation.Validate(r)
}

func (r *Request) FullName() string {
	parts := []string{r.FirstName, r.MiddleName, r.LastName}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// BirthDate parses DateOfBirth; callers run Validate first.
func (r *Request) BirthDate() (time.Time, error) {
	return time.Parse(DateLayout, r.DateOfBirth)
}

// Summary is the redacted candidate kept on the record.
func (r *Request) Summary() Candidate {
	c := Candidate{
		FullName: r.FullName(),
		Phone:    r.Phone,
		SSNLast4: s.Last(s.DigitsOnly(r.SSN), 4),
	}
	if dob, err := r.BirthDate(); err == nil {
		c.BirthYear = dob.Year()
	}
	return c
}
