// Package models holds the identity records created once a screening clears.
package models

import (
	"time"

	"basecamp/pkg/domain"
)

// Account is the durable identity a cleared candidate signs in with.
type Account struct {
	ID             domain.UserID
	Email          string
	DisplayName    string
	CredentialHash string
	CreatedAt      time.Time
}

// Profile records how the account holder was screened.
type Profile struct {
	UserID     domain.UserID
	RecordID   domain.ScreeningID
	Tier       string
	Risk       string
	ScreenedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ScreeningSummary is what the workflow hands over for the profile.
type ScreeningSummary struct {
	RecordID   domain.ScreeningID
	Tier       string
	Risk       string
	ScreenedAt time.Time
}
