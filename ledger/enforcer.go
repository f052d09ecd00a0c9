/*
enforcer.go - The single entry point for balance mutations

PURPOSE:
  The Enforcer validates and atomically applies every balance-changing
  operation, guaranteeing that BalanceAfter always equals the merchant's
  stored balance immediately after the write.

  ALL balance mutations flow through ApplyDelta - welcome bonus, recharge,
  activation cost, daily debits, refunds, manual admin adjustments. No
  other code path may write the credits field.

CRITICAL INVARIANTS:
  1. No double-spend: a negative delta is rejected with InsufficientCredits
     when it would take the balance below zero, with zero side effects.
  2. No lost update: the read-modify-write-append sequence for a merchant
     is serialized by a per-merchant lock, and the store write carries a
     compare-and-swap on the expected balance as a second line of defense.
  3. No partial state: the balance update and the ledger append land as
     one atomic unit, or neither does.

CONCURRENCY:
  Operations on different merchants are fully independent and never
  contend. Lock acquisition is bounded: waiting longer than LockTimeout
  fails fast with ConcurrencyConflict (retryable) instead of queueing
  indefinitely. A CAS failure under the lock (possible after external
  recovery writes) is retried a bounded number of times before the
  conflict is surfaced.

RECOVERY:
  Torn state from a crash is healed at startup by recomputing each
  merchant's credits from the latest ledger entry (store Reconcile).

SEE ALSO:
  - store.go: BalanceStore with the atomic ApplyBalanced write
  - errors.go: InsufficientCreditsError, ErrConcurrencyConflict
*/
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warp/adboost/metrics"
)

// =============================================================================
// ENFORCER - Validates and applies balance deltas
// =============================================================================

const (
	DefaultLockTimeout = 2 * time.Second
	DefaultMaxRetries  = 3
)

type Enforcer struct {
	Store BalanceStore

	// LockTimeout bounds how long ApplyDelta waits for the per-merchant
	// lock before failing with ErrConcurrencyConflict.
	LockTimeout time.Duration

	// MaxRetries bounds the internal CAS retry loop.
	MaxRetries int

	mu    sync.Mutex
	locks map[MerchantID]chan struct{}
}

func NewEnforcer(store BalanceStore) *Enforcer {
	return &Enforcer{
		Store:       store,
		LockTimeout: DefaultLockTimeout,
		MaxRetries:  DefaultMaxRetries,
		locks:       make(map[MerchantID]chan struct{}),
	}
}

// ApplyResult is returned by a successful ApplyDelta.
type ApplyResult struct {
	NewBalance  int64
	Transaction Transaction
}

// ApplyDelta applies a signed credit delta to a merchant's balance and
// records the matching ledger entry.
//
// Preconditions:
//   - amount may be negative; a negative delta fails with
//     InsufficientCreditsError when currentBalance+amount < 0.
//
// On any error the merchant balance and the ledger are completely
// unchanged: no orphaned transaction, no partial debit.
func (e *Enforcer) ApplyDelta(ctx context.Context, merchantID MerchantID, amount int64, txType TxType, source Source, note string, adID AdID) (ApplyResult, error) {
	start := time.Now()
	res, err := e.applyDelta(ctx, merchantID, amount, txType, source, note, adID)
	metrics.RecordApplyDelta(string(txType), applyStatus(err), time.Since(start).Seconds())
	return res, err
}

func (e *Enforcer) applyDelta(ctx context.Context, merchantID MerchantID, amount int64, txType TxType, source Source, note string, adID AdID) (ApplyResult, error) {
	release, err := e.acquire(ctx, merchantID)
	if err != nil {
		return ApplyResult{}, err
	}
	defer release()

	retries := e.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		balance, err := e.Store.Credits(ctx, merchantID)
		if err != nil {
			return ApplyResult{}, err
		}

		newBalance := balance + amount
		if amount < 0 && newBalance < 0 {
			return ApplyResult{}, &InsufficientCreditsError{
				MerchantID: merchantID,
				Available:  balance,
				Requested:  -amount,
			}
		}

		tx := Transaction{
			MerchantID:   merchantID,
			AdID:         adID,
			Type:         txType,
			Amount:       amount,
			BalanceAfter: newBalance,
			Note:         note,
			Source:       source,
		}

		applied, err := e.Store.ApplyBalanced(ctx, balance, tx)
		if err == nil {
			return ApplyResult{NewBalance: newBalance, Transaction: applied}, nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return ApplyResult{}, err
		}
		// CAS lost: somebody (e.g. startup reconciliation) moved the balance
		// between our read and write. Re-read and try again.
		metrics.CASRetries.Inc()
		lastErr = err
	}
	return ApplyResult{}, lastErr
}

// acquire takes the per-merchant lock, waiting at most LockTimeout.
func (e *Enforcer) acquire(ctx context.Context, merchantID MerchantID) (func(), error) {
	e.mu.Lock()
	sem, ok := e.locks[merchantID]
	if !ok {
		sem = make(chan struct{}, 1)
		e.locks[merchantID] = sem
	}
	e.mu.Unlock()

	timeout := e.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-timer.C:
		return nil, ErrConcurrencyConflict
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func applyStatus(err error) string {
	switch {
	case err == nil:
		return "applied"
	case IsRetryable(err):
		return "conflict"
	case IsClientError(err):
		return "rejected"
	default:
		return "error"
	}
}
