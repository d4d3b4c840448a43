package models

import (
	"fmt"

	"basecamp/pkg/platform/sentinel"
)

// Store and patch errors. Each wraps an infrastructure sentinel so the
// service can translate by category; the service maps them into domain
// errors exactly once.
var (
	ErrNotFound            = fmt.Errorf("screening record %w", sentinel.ErrNotFound)
	ErrDuplicateActive     = fmt.Errorf("active screening already exists for email: %w", sentinel.ErrConflict)
	ErrVersionConflict     = fmt.Errorf("screening record version: %w", sentinel.ErrConflict)
	ErrInvalidTransition   = fmt.Errorf("status transition: %w", sentinel.ErrInvalidState)
	ErrUserIDAlreadySet    = fmt.Errorf("user id already set: %w", sentinel.ErrAlreadyUsed)
	ErrUserIDRequiresClear = fmt.Errorf("user id may only be set on a clear record: %w", sentinel.ErrInvalidState)
	ErrDecisionAlreadySet  = fmt.Errorf("decision already set: %w", sentinel.ErrAlreadyUsed)
	ErrDecisionRequired    = fmt.Errorf("status requires a decision: %w", sentinel.ErrInvalidState)
	ErrReportIDImmutable   = fmt.Errorf("external report id cannot be changed: %w", sentinel.ErrAlreadyUsed)
)
