// Package store provides BalanceStore implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/adboost/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	credits      map[ledger.MerchantID]int64
	transactions map[ledger.MerchantID][]ledger.Transaction
	byAd         map[ledger.AdID][]ledger.Transaction
}

func NewMemory() *Memory {
	return &Memory{
		credits:      make(map[ledger.MerchantID]int64),
		transactions: make(map[ledger.MerchantID][]ledger.Transaction),
		byAd:         make(map[ledger.AdID][]ledger.Transaction),
	}
}

// AddMerchant registers a merchant with an initial stored balance.
func (m *Memory) AddMerchant(id ledger.MerchantID, credits int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits[id] = credits
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx), nil
}

func (m *Memory) appendLocked(tx ledger.Transaction) ledger.Transaction {
	prev := m.transactions[tx.MerchantID]
	tx.ID = ledger.TransactionID(uuid.NewString())
	tx.Seq = int64(len(prev)) + 1
	tx.CreatedAt = time.Now().UTC()
	if n := len(prev); n > 0 && !tx.CreatedAt.After(prev[n-1].CreatedAt) {
		// Keep CreatedAt strictly increasing per merchant.
		tx.CreatedAt = prev[n-1].CreatedAt.Add(time.Nanosecond)
	}
	m.transactions[tx.MerchantID] = append(prev, tx)
	if tx.AdID != "" {
		m.byAd[tx.AdID] = append(m.byAd[tx.AdID], tx)
	}
	return tx
}

// ListFor returns a merchant's transactions, newest first.
func (m *Memory) ListFor(_ context.Context, merchantID ledger.MerchantID) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return reversed(m.transactions[merchantID]), nil
}

// ListForAd returns an ad's transactions, newest first.
func (m *Memory) ListForAd(_ context.Context, adID ledger.AdID) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return reversed(m.byAd[adID]), nil
}

// LatestBalance returns the BalanceAfter of the most recent entry, or 0.
func (m *Memory) LatestBalance(_ context.Context, merchantID ledger.MerchantID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txs := m.transactions[merchantID]
	if len(txs) == 0 {
		return 0, nil
	}
	return txs[len(txs)-1].BalanceAfter, nil
}

// Credits returns the merchant's stored balance.
func (m *Memory) Credits(_ context.Context, merchantID ledger.MerchantID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	credits, ok := m.credits[merchantID]
	if !ok {
		return 0, ledger.ErrMerchantNotFound
	}
	return credits, nil
}

// ApplyBalanced performs the balance CAS and the ledger append atomically.
func (m *Memory) ApplyBalanced(_ context.Context, expected int64, tx ledger.Transaction) (ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	credits, ok := m.credits[tx.MerchantID]
	if !ok {
		return ledger.Transaction{}, ledger.ErrMerchantNotFound
	}
	if credits != expected {
		return ledger.Transaction{}, ledger.ErrConcurrencyConflict
	}

	m.credits[tx.MerchantID] = tx.BalanceAfter
	return m.appendLocked(tx), nil
}

func reversed(txs []ledger.Transaction) []ledger.Transaction {
	result := make([]ledger.Transaction, len(txs))
	for i, tx := range txs {
		result[len(txs)-1-i] = tx
	}
	return result
}
