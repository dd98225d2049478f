/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All ledger-level error types in one place. The leave package wraps
  these with request context before they reach a caller.

ERROR CATEGORIES:
  1. Ledger errors - Transaction persistence failures
  2. Balance errors - Consumption beyond what is available
  3. Store errors - Optimistic locking conflicts

SEE ALSO:
  - ledger.go: Uses these errors
  - leave/errors.go: Domain errors built on top of these
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrTransactionFailed is returned when a transaction cannot be persisted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInsufficientBalance is returned when consumption exceeds available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EntityID  EntityID
	PolicyID  PolicyID
	Period    Period
	Available decimal.Decimal
	Requested decimal.Decimal
}

// Shortfall is how many days are missing to cover the request.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%s in %s: available %s, requested %s",
		e.EntityID, e.PolicyID, e.Period, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidPeriod)
}
