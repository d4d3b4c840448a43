package domainerrors

import "errors"

// Code is a transport-agnostic failure category. Handlers translate codes to
// HTTP statuses; the orchestrator records them on screening records.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_failed"
	CodeInternal     Code = "internal_error"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"
	CodeRateLimited  Code = "rate_limited"

	// Screening pipeline failures. These surface on records, not on the
	// synchronous submission path.
	CodeProviderUnavailable   Code = "provider_unavailable"
	CodeProviderAPI           Code = "provider_api_error"
	CodePollingExhausted      Code = "polling_exhausted"
	CodeNotificationDelivery  Code = "notification_delivery"
	CodeAccountProvisioning   Code = "account_provisioning"
	CodeInvariantViolation    Code = "invariant_violation"
	CodeDuplicateScreening    Code = "duplicate_request"
	CodeScreeningNotRerunable Code = "rerun_not_allowed"
	CodeIdempotencyMismatch   Code = "idempotency_key_reused"
)

// Error wraps domain or infrastructure failures with a stable code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by code so errors.Is(err, New(CodeConflict, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a domain error around err. An existing domain code in the
// chain wins over the supplied one.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the outermost domain code in err, or fallback.
func CodeOf(err error, fallback Code) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return fallback
}
