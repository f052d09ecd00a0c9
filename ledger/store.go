/*
store.go - Persistence interfaces for the credit ledger

PURPOSE:
  Defines the interface between the ledger engine and the database.
  The Store handles persistence while maintaining append-only semantics.
  Different implementations can use SQLite or in-memory storage.

APPEND-ONLY CONTRACT:
  The Store interface enforces append-only semantics on transactions:
  - Append(): Single transaction write
  - NO Update() or Delete() methods exist
  Corrections are made via new entries (MANUAL_ADJUST), never edits.

BALANCE PAIRING:
  The merchant balance is the one piece of mutable state. ApplyBalanced
  pairs the balance update with the ledger append as a single atomic
  unit, guarded by a compare-and-swap on the expected balance. This is
  the only write path the Enforcer uses.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - enforcer.go: Higher-level interface using BalanceStore
*/
package ledger

import "context"

// =============================================================================
// STORE - Transaction persistence (append-only)
// =============================================================================

// Store persists ledger transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists a transaction, assigning ID, Seq, and CreatedAt.
	// This is the ONLY write operation on the ledger itself.
	Append(ctx context.Context, tx Transaction) (Transaction, error)

	// ListFor returns all transactions for a merchant, newest first.
	ListFor(ctx context.Context, merchantID MerchantID) ([]Transaction, error)

	// ListForAd returns all transactions tied to an ad, newest first.
	// Used to compute total debited/refunded for refund capping.
	ListForAd(ctx context.Context, adID AdID) ([]Transaction, error)

	// LatestBalance returns the BalanceAfter of the merchant's most recent
	// entry, or 0 if no entries exist.
	LatestBalance(ctx context.Context, merchantID MerchantID) (int64, error)
}

// =============================================================================
// BALANCE STORE - Pairs the mutable balance with the append-only ledger
// =============================================================================

// BalanceStore extends Store with the merchant balance field and the atomic
// balance-plus-append write the Enforcer requires.
type BalanceStore interface {
	Store

	// Credits returns the merchant's current stored balance.
	// Returns ErrMerchantNotFound for unknown merchants.
	Credits(ctx context.Context, merchantID MerchantID) (int64, error)

	// ApplyBalanced writes tx and updates the merchant's balance to
	// tx.BalanceAfter as one atomic unit - both land or neither does.
	// The write only succeeds if the stored balance still equals expected;
	// otherwise ErrConcurrencyConflict is returned and nothing changes.
	ApplyBalanced(ctx context.Context, expected int64, tx Transaction) (Transaction, error)
}
