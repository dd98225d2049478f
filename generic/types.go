/*
Package generic provides the ledger engine underneath leave accounting.

PURPOSE:
  This package contains the domain-agnostic pieces of balance bookkeeping:
  day quantities, an append-only transaction ledger, periods, accrual
  schedules and the balance calculation that replays the ledger. The leave
  package layers the request lifecycle and leave-type rules on top.

KEY CONCEPTS IN THIS FILE (types.go):
  - Day quantities: decimal.Decimal, never float64, so half days add up exactly
  - Transaction: an immutable ledger entry recording a balance change
  - EntityID / PolicyID: type-safe identifiers for the balance owner and bucket

DESIGN PRINCIPLES:
  1. Immutability: transactions are never modified, only reversed
  2. Precision: decimal.Decimal everywhere a day count appears
  3. Type safety: distinct ID types so an employee ID can't be passed as a bucket
  4. Auditability: every transaction has reason, reference and idempotency key

USAGE:
  tx := generic.Transaction{
      EntityID: "emp-123",
      PolicyID: "annual",
      Delta:    generic.Days(5).Neg(),
      Type:     generic.TxConsumption,
  }

SEE ALSO:
  - balance.go: balance calculation from transactions
  - ledger.go: transaction persistence interface
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAY QUANTITIES
// =============================================================================

var (
	// HalfDay is the smallest unit a leave request can consume.
	HalfDay = decimal.New(5, -1)

	// OneDay is a full working day.
	OneDay = decimal.NewFromInt(1)
)

// Days converts a float literal into a decimal day count.
// Use it for constants and tests; parse user input with ParseDays.
func Days(n float64) decimal.Decimal {
	return decimal.NewFromFloat(n)
}

// ParseDays parses a decimal string such as "12" or "0.5".
func ParseDays(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustParseDays parses s, returning zero when it isn't a number.
func MustParseDays(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// EntityID identifies the owner of a balance (an employee).
type EntityID string

// PolicyID identifies the balance bucket an entity draws from (a leave type).
type PolicyID string

type TransactionID string

// BalanceKey is the unit of serialization for ledger writes.
type BalanceKey struct {
	EntityID EntityID
	PolicyID PolicyID
}

func (k BalanceKey) String() string { return string(k.EntityID) + "/" + string(k.PolicyID) }

// =============================================================================
// TRANSACTION - Atomic change to a balance
// =============================================================================

type TransactionType string

const (
	TxGrant       TransactionType = "grant"       // Entitlement added outside the accrual schedule
	TxConsumption TransactionType = "consumption" // Days taken (approved request)
	TxAdjustment  TransactionType = "adjustment"  // Administrative correction
	TxReversal    TransactionType = "reversal"    // Undo a previous consumption
)

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	PolicyID       PolicyID
	EffectiveAt    TimePoint
	Delta          decimal.Decimal
	Type           TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string

	// Audit fields
	CreatedBy string
	CreatedAt time.Time
}

// Key returns the balance this transaction belongs to.
func (tx Transaction) Key() BalanceKey {
	return BalanceKey{EntityID: tx.EntityID, PolicyID: tx.PolicyID}
}
