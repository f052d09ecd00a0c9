/*
Package ledger provides the credit ledger engine for the AdBoost platform.

PURPOSE:
  This package contains the types and algorithms for tracking merchant
  credit balances. Every credit movement - welcome bonus, recharge, ad
  activation, daily debit, refund, manual adjustment - is recorded as an
  immutable ledger transaction carrying a balance snapshot.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: An immutable ledger entry recording a balance change
  - TxType: What kind of credit movement happened
  - Source: Who caused the change (system, user, admin)
  - Merchant/Ad/Transaction IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified after being written
  2. Self-reconciling: BalanceAfter always equals the previous entry's
     BalanceAfter plus Amount
  3. Type Safety: Strong typing for IDs prevents mixing merchant/ad IDs
  4. Auditability: Every transaction carries type, source, and note

SEE ALSO:
  - enforcer.go: The single entry point for balance mutations
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package ledger

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MerchantID string
type AdID string
type TransactionID string

// =============================================================================
// TRANSACTION - Atomic change to a merchant's credit balance
// =============================================================================

type TxType string

const (
	TxCreditRecharge TxType = "CREDIT_RECHARGE" // Credit purchase or welcome bonus
	TxAdActivate     TxType = "AD_ACTIVATE"     // First-day charge when an ad goes live
	TxAdDailyDebit   TxType = "AD_DAILY_DEBIT"  // Recurring charge per elapsed day
	TxAdPauseRefund  TxType = "AD_PAUSE_REFUND" // Unused paid days returned on pause
	TxAdCancelRefund TxType = "AD_CANCEL_REFUND" // Unspent allocation returned on cancel
	TxManualAdjust   TxType = "MANUAL_ADJUST"   // Admin correction
)

// Source identifies the provenance of a balance change.
type Source string

const (
	SourceSystem Source = "system"
	SourceUser   Source = "user"
	SourceAdmin  Source = "admin"
)

// Transaction is an immutable ledger entry.
//
// INVARIANTS:
//   - Amount is signed: positive increases the balance, negative decreases it.
//   - BalanceAfter is the merchant's balance immediately after this entry and
//     equals the previous entry's BalanceAfter plus Amount (0 baseline).
//   - Seq is a per-merchant sequence number assigned by the store. It is the
//     ordering key for "most recent balance" and is unique per merchant, which
//     is what prevents two entries from claiming the same prior balance.
type Transaction struct {
	ID         TransactionID
	MerchantID MerchantID
	AdID       AdID // empty for entries not tied to an ad

	Type         TxType
	Amount       int64
	BalanceAfter int64
	Seq          int64

	Note      string
	Source    Source
	CreatedAt time.Time
}

// AdRelated reports whether this entry is tied to an ad.
func (t Transaction) AdRelated() bool { return t.AdID != "" }
