/*
store.go - Persistence interface for ledger transactions

PURPOSE:
  Defines the interface between the balance logic and the database.
  The Store handles persistence while maintaining append-only semantics.

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - AppendBatch(): Atomic multi-transaction write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every write carries an idempotency key. If the key already exists,
  the write is rejected with ErrDuplicateIdempotencyKey. Approving the
  same leave request twice can therefore never debit twice.

IMPLEMENTATIONS:
  - store/sqlite: SQLite via mattn/go-sqlite3
  - store/memory: in-memory, used by tests and the demo server

SEE ALSO:
  - ledger.go: Higher-level interface using Store
  - leave/store.go: Request persistence layered on top
*/
package generic

import "context"

// Store handles persistence of transactions.
// IMPORTANT: Store is APPEND-ONLY. Corrections are reversal transactions.
type Store interface {
	// Append persists a transaction. Returns ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns all transactions for entity+policy, ordered by EffectiveAt.
	Load(ctx context.Context, entityID EntityID, policyID PolicyID) ([]Transaction, error)

	// LoadRange returns transactions with EffectiveAt in [from, to].
	LoadRange(ctx context.Context, entityID EntityID, policyID PolicyID, from, to TimePoint) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
