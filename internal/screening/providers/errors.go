package providers

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy every adapter uses.
type ErrorCategory string

const (
	ErrorTimeout          ErrorCategory = "timeout"
	ErrorProviderOutage   ErrorCategory = "provider_outage"
	ErrorAuthentication   ErrorCategory = "authentication"
	ErrorRateLimited      ErrorCategory = "rate_limited"
	ErrorBadData          ErrorCategory = "bad_data"
	ErrorContractMismatch ErrorCategory = "contract_mismatch"
	ErrorNotFound         ErrorCategory = "not_found"
	ErrorRejected         ErrorCategory = "rejected"
	ErrorInternal         ErrorCategory = "internal"
)

// ProviderError wraps a vendor failure with its category.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool // timeout, outage and rate limiting
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorProviderOutage || category == ErrorRateLimited,
	}
}

func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// IsUnavailable reports a failure to reach or authenticate with the vendor.
func IsUnavailable(err error) bool {
	switch GetCategory(err) {
	case ErrorTimeout, ErrorProviderOutage, ErrorAuthentication, ErrorRateLimited:
		return true
	}
	return false
}

// IsAPIError reports a vendor that answered with a non-success response.
func IsAPIError(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Category {
	case ErrorBadData, ErrorContractMismatch, ErrorNotFound, ErrorRejected, ErrorInternal:
		return true
	}
	return false
}

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrCircuitOpen      = errors.New("circuit open")
)
