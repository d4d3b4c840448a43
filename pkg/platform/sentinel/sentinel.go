// Package sentinel holds the infrastructure error categories stores, locks
// and adapters wrap. Services branch on these with errors.Is and translate
// them into domain errors once, at the boundary.
package sentinel

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrLockHeld     = errors.New("lock held")
)
