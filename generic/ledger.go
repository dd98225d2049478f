/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the immutable source of truth for all balance changes.
  Every consumption, reversal, grant and adjustment is recorded here.
  Balance is always computed by replaying transactions; there is no
  stored "balance" column that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. AUDITABLE: Every balance change is traceable to a request or actor
  4. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  Cancelling an approved leave does not delete its consumption. A
  reversal with the opposite sign is appended and both remain:

    annual ledger: [-3 consumption, +3 reversal] = 0 consumed

SEE ALSO:
  - store.go: Low-level persistence interface
  - leave/ledger.go: Leave wrapper with locking and request keys
*/
package generic

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger is the source of truth for all balance changes.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns all transactions for entity+policy, chronologically.
	Transactions(ctx context.Context, entityID EntityID, policyID PolicyID) ([]Transaction, error)

	// TransactionsInRange returns transactions in [from, to].
	TransactionsInRange(ctx context.Context, entityID EntityID, policyID PolicyID, from, to TimePoint) ([]Transaction, error)

	// NetAt sums every delta effective on or before at.
	NetAt(ctx context.Context, entityID EntityID, policyID PolicyID, at TimePoint) (decimal.Decimal, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if err := l.checkKey(ctx, tx.IdempotencyKey); err != nil {
		return err
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if seen[tx.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
		if err := l.checkKey(ctx, tx.IdempotencyKey); err != nil {
			return err
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) checkKey(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	exists, err := l.Store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateIdempotencyKey
	}
	return nil
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, policyID PolicyID) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, policyID)
}

func (l *DefaultLedger) TransactionsInRange(ctx context.Context, entityID EntityID, policyID PolicyID, from, to TimePoint) ([]Transaction, error) {
	return l.Store.LoadRange(ctx, entityID, policyID, from, to)
}

func (l *DefaultLedger) NetAt(ctx context.Context, entityID EntityID, policyID PolicyID, at TimePoint) (decimal.Decimal, error) {
	txs, err := l.Store.Load(ctx, entityID, policyID)
	if err != nil {
		return decimal.Zero, err
	}

	net := decimal.Zero
	for _, tx := range txs {
		if tx.EffectiveAt.After(at) {
			break
		}
		net = net.Add(tx.Delta)
	}
	return net, nil
}
