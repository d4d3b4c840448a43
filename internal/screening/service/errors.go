package service

import (
	"errors"

	dErrors "basecamp/pkg/domain-errors"
	"basecamp/pkg/platform/sentinel"
)

// errorMapping translates a store or lock sentinel into a domain error.
type errorMapping struct {
	sentinel error
	code     dErrors.Code
	msg      string
}

// errorMappings are checked in order; the first match wins.
var errorMappings = []errorMapping{
	{sentinel.ErrNotFound, dErrors.CodeNotFound, "screening not found"},
	{sentinel.ErrLockHeld, dErrors.CodeConflict, "screening is being updated; try again"},
	{sentinel.ErrConflict, dErrors.CodeConflict, "screening changed concurrently; try again"},
	{sentinel.ErrInvalidState, dErrors.CodeConflict, "screening is not in a state that allows this"},
}

// translate passes domain errors through and maps sentinels; anything else
// becomes an internal error with fallback as its message.
func translate(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return dErrors.Wrap(err, m.code, m.msg)
		}
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, fallback)
}
