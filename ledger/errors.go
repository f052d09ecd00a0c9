/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is/errors.As; the HTTP layer maps
  them to status codes with the helpers at the bottom.

ERROR CATEGORIES:
  1. Business-rule rejections - insufficient credits, invalid transitions
  2. Input errors - validation failures, bad amounts
  3. Transient errors - concurrency conflicts (retryable)
  4. Infrastructure errors - storage failures

SEE ALSO:
  - enforcer.go: Produces InsufficientCreditsError and conflict errors
  - ads/service.go: Produces InvalidTransitionError
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientCredits is returned when a negative delta would take the
	// balance below zero. The operation is aborted with no side effects.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidTransition is returned for ad state-machine violations.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConcurrencyConflict is returned when the balance CAS fails or the
	// per-merchant lock cannot be acquired in time. Retryable.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrStorage is returned when the underlying store is unreachable or a
	// write fails. A failed append means a failed operation: no partial state.
	ErrStorage = errors.New("storage error")

	// ErrMerchantNotFound is returned when a referenced merchant doesn't exist.
	ErrMerchantNotFound = errors.New("merchant not found")

	// ErrAdNotFound is returned when a referenced ad doesn't exist.
	ErrAdNotFound = errors.New("ad not found")

	// ErrInvalidAmount is returned for non-positive recharge amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrDuplicateMerchant is returned when a username or email is taken.
	ErrDuplicateMerchant = errors.New("username or email already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientCreditsError provides details about a balance shortage.
type InsufficientCreditsError struct {
	MerchantID MerchantID
	Available  int64
	Requested  int64 // absolute value of the attempted debit
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }

// InvalidTransitionError describes an ad state-machine violation.
type InvalidTransitionError struct {
	AdID  AdID
	From  string // current status
	Event string // attempted event, e.g. "activate", "delete"
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s ad %s in status %q", e.Event, e.AdID, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError describes bad input. Not retryable; the caller must fix
// the request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrStorage)
}

// IsClientError returns true if the error is due to invalid client input or
// a business-rule rejection.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrInsufficientCredits) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrDuplicateMerchant) ||
		errors.As(err, &ve)
}

// IsNotFound returns true if the error indicates a missing merchant or ad.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMerchantNotFound) || errors.Is(err, ErrAdNotFound)
}
