/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces using SQLite. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  ledger.BalanceStore: Transaction persistence + atomic balance pairing
  merchant.Store:      Merchant accounts
  ads.Store:           Advertisement entities

APPEND-ONLY ENFORCEMENT:
  The transactions table is append-only:
  - No UPDATE statements on transactions
  - No DELETE statements on transactions
  Corrections go through MANUAL_ADJUST entries only.

BALANCE ATOMICITY:
  ApplyBalanced runs the merchant balance update and the ledger insert in
  one SQL transaction. The balance update is a compare-and-swap
  (WHERE credits = expected), and the per-merchant sequence number has a
  unique index, so two writers can never both claim the same prior
  balance. Either both writes land or neither does.

KEY TABLES:
  merchants:    Accounts with the mutable credits field
  ads:          Advertisement entities with status and metrics
  transactions: Immutable ledger of all balance changes

INDEXES:
  - idx_transactions_merchant_seq:    newest-first history (hot path)
  - idx_transactions_ad_created:      per-ad spend queries
  - unique (merchant_id, seq):        serialization backstop
  - unique merchants.username/email:  duplicate registration checks

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time, better crash
  recovery.

RECOVERY:
  Reconcile recomputes every merchant's credits from the latest ledger
  entry; main calls it on startup to heal any torn writes.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for engine tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/adboost/ads"
	"github.com/warp/adboost/ledger"
	"github.com/warp/adboost/merchant"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite allows a single writer, and each pooled
	// connection to ":memory:" would otherwise get its own empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Merchants (accounts; credits is the one mutable balance field)
	CREATE TABLE IF NOT EXISTS merchants (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		credits INTEGER NOT NULL DEFAULT 0,
		role TEXT NOT NULL DEFAULT 'merchant',
		status TEXT NOT NULL DEFAULT 'active',
		last_login_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_merchants_username ON merchants(username);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_merchants_email ON merchants(email);
	CREATE INDEX IF NOT EXISTS idx_merchants_status ON merchants(status);

	-- Ads
	CREATE TABLE IF NOT EXISTS ads (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL,
		title TEXT NOT NULL,
		ad_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		target_url TEXT NOT NULL DEFAULT '',
		banner_image_url TEXT NOT NULL DEFAULT '',
		app_store_url TEXT NOT NULL DEFAULT '',
		google_play_url TEXT NOT NULL DEFAULT '',
		cost_per_day INTEGER NOT NULL,
		budget_credits INTEGER NOT NULL DEFAULT 0,
		impressions INTEGER NOT NULL DEFAULT 0,
		clicks INTEGER NOT NULL DEFAULT 0,
		start_date TEXT,
		end_date TEXT,
		last_charged_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ads_merchant_status ON ads(merchant_id, status);
	CREATE INDEX IF NOT EXISTS idx_ads_status ON ads(status);
	CREATE INDEX IF NOT EXISTS idx_ads_created_at ON ads(created_at);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL,
		ad_id TEXT,
		seq INTEGER NOT NULL,
		tx_type TEXT NOT NULL,
		amount INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		note TEXT,
		source TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: two transactions can never claim the same prior balance.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_merchant_seq_unique
		ON transactions(merchant_id, seq);

	-- Newest-first history per merchant (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_merchant_seq
		ON transactions(merchant_id, seq DESC);

	-- Per-ad spend queries (refund capping)
	CREATE INDEX IF NOT EXISTS idx_transactions_ad_created
		ON transactions(ad_id, created_at DESC) WHERE ad_id IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(tx_type);
	`

	_, err := s.db.Exec(schema)
	return err
}

const timeLayout = time.RFC3339Nano

// =============================================================================
// LEDGER STORE (ledger.BalanceStore interface)
// =============================================================================

// Append adds a transaction to the ledger, assigning ID, Seq, and CreatedAt.
func (s *Store) Append(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Transaction{}, storageErr(err)
	}
	defer sqlTx.Rollback()

	appended, err := s.appendTx(ctx, sqlTx, tx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := sqlTx.Commit(); err != nil {
		return ledger.Transaction{}, storageErr(err)
	}
	return appended, nil
}

func (s *Store) appendTx(ctx context.Context, sqlTx *sql.Tx, tx ledger.Transaction) (ledger.Transaction, error) {
	var seq int64
	err := sqlTx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM transactions WHERE merchant_id = ?",
		tx.MerchantID,
	).Scan(&seq)
	if err != nil {
		return ledger.Transaction{}, storageErr(err)
	}

	tx.ID = ledger.TransactionID(uuid.NewString())
	tx.Seq = seq
	tx.CreatedAt = time.Now().UTC()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO transactions
		(id, merchant_id, ad_id, seq, tx_type, amount, balance_after, note, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.MerchantID,
		nullString(string(tx.AdID)),
		tx.Seq,
		tx.Type,
		tx.Amount,
		tx.BalanceAfter,
		tx.Note,
		tx.Source,
		tx.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Another writer took this seq between our read and insert.
			return ledger.Transaction{}, ledger.ErrConcurrencyConflict
		}
		return ledger.Transaction{}, storageErr(err)
	}
	return tx, nil
}

// ListFor returns all transactions for a merchant, newest first.
func (s *Store) ListFor(ctx context.Context, merchantID ledger.MerchantID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTransactions(ctx, `
		SELECT id, merchant_id, ad_id, seq, tx_type, amount, balance_after, note, source, created_at
		FROM transactions WHERE merchant_id = ? ORDER BY seq DESC`,
		merchantID)
}

// ListForAd returns all transactions tied to an ad, newest first.
func (s *Store) ListForAd(ctx context.Context, adID ledger.AdID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTransactions(ctx, `
		SELECT id, merchant_id, ad_id, seq, tx_type, amount, balance_after, note, source, created_at
		FROM transactions WHERE ad_id = ? ORDER BY created_at DESC, seq DESC`,
		adID)
}

// LatestBalance returns the most recent entry's BalanceAfter, or 0.
func (s *Store) LatestBalance(ctx context.Context, merchantID ledger.MerchantID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balance int64
	err := s.db.QueryRowContext(ctx,
		"SELECT balance_after FROM transactions WHERE merchant_id = ? ORDER BY seq DESC LIMIT 1",
		merchantID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr(err)
	}
	return balance, nil
}

// Credits returns the merchant's stored balance.
func (s *Store) Credits(ctx context.Context, merchantID ledger.MerchantID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var credits int64
	err := s.db.QueryRowContext(ctx,
		"SELECT credits FROM merchants WHERE id = ?", merchantID,
	).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.ErrMerchantNotFound
	}
	if err != nil {
		return 0, storageErr(err)
	}
	return credits, nil
}

// ApplyBalanced updates the merchant balance (CAS on expected) and appends
// the ledger entry in one SQL transaction.
func (s *Store) ApplyBalanced(ctx context.Context, expected int64, tx ledger.Transaction) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Transaction{}, storageErr(err)
	}
	defer sqlTx.Rollback()

	result, err := sqlTx.ExecContext(ctx,
		"UPDATE merchants SET credits = ?, updated_at = ? WHERE id = ? AND credits = ?",
		tx.BalanceAfter, time.Now().UTC().Format(timeLayout), tx.MerchantID, expected,
	)
	if err != nil {
		return ledger.Transaction{}, storageErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return ledger.Transaction{}, storageErr(err)
	}
	if affected == 0 {
		var exists int
		if err := sqlTx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM merchants WHERE id = ?", tx.MerchantID,
		).Scan(&exists); err != nil {
			return ledger.Transaction{}, storageErr(err)
		}
		if exists == 0 {
			return ledger.Transaction{}, ledger.ErrMerchantNotFound
		}
		return ledger.Transaction{}, ledger.ErrConcurrencyConflict
	}

	appended, err := s.appendTx(ctx, sqlTx, tx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := sqlTx.Commit(); err != nil {
		return ledger.Transaction{}, storageErr(err)
	}
	return appended, nil
}

// Reconcile recomputes every merchant's credits from the latest ledger entry.
// Called on startup to heal torn writes. Returns the number of merchants
// whose stored balance was corrected.
func (s *Store) Reconcile(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE merchants SET credits = COALESCE(
			(SELECT t.balance_after FROM transactions t
			 WHERE t.merchant_id = merchants.id
			 ORDER BY t.seq DESC LIMIT 1), 0)
		WHERE credits != COALESCE(
			(SELECT t.balance_after FROM transactions t
			 WHERE t.merchant_id = merchants.id
			 ORDER BY t.seq DESC LIMIT 1), 0)`)
	if err != nil {
		return 0, storageErr(err)
	}
	healed, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr(err)
	}
	return int(healed), nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var (
			tx        ledger.Transaction
			adID      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&tx.ID, &tx.MerchantID, &adID, &tx.Seq, &tx.Type,
			&tx.Amount, &tx.BalanceAfter, &tx.Note, &tx.Source, &createdAt); err != nil {
			return nil, storageErr(err)
		}
		tx.AdID = ledger.AdID(adID.String)
		tx.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// MERCHANT STORE (merchant.Store interface)
// =============================================================================

func (s *Store) CreateMerchant(ctx context.Context, m merchant.Merchant) (merchant.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = ledger.MerchantID(uuid.NewString())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchants
		(id, username, email, password_hash, credits, role, status, last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Username, m.Email, m.PasswordHash, m.Credits, m.Role, m.Status,
		nullTime(m.LastLoginAt),
		m.CreatedAt.Format(timeLayout),
		m.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return merchant.Merchant{}, ledger.ErrDuplicateMerchant
		}
		return merchant.Merchant{}, storageErr(err)
	}
	return m, nil
}

func (s *Store) GetMerchant(ctx context.Context, id ledger.MerchantID) (merchant.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanMerchant(s.db.QueryRowContext(ctx,
		merchantColumns+" WHERE id = ?", id))
}

func (s *Store) GetMerchantByUsername(ctx context.Context, username string) (merchant.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanMerchant(s.db.QueryRowContext(ctx,
		merchantColumns+" WHERE username = ?", username))
}

const merchantColumns = `
	SELECT id, username, email, password_hash, credits, role, status, last_login_at, created_at, updated_at
	FROM merchants`

func scanMerchant(row *sql.Row) (merchant.Merchant, error) {
	var (
		m                    merchant.Merchant
		lastLogin            sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&m.ID, &m.Username, &m.Email, &m.PasswordHash, &m.Credits,
		&m.Role, &m.Status, &lastLogin, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return merchant.Merchant{}, ledger.ErrMerchantNotFound
	}
	if err != nil {
		return merchant.Merchant{}, storageErr(err)
	}
	m.LastLoginAt = parseNullTime(lastLogin)
	m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	m.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return m, nil
}

func (s *Store) UpdateMerchantStatus(ctx context.Context, id ledger.MerchantID, status merchant.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE merchants SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return storageErr(err)
	}
	return requireRow(result, ledger.ErrMerchantNotFound)
}

// SetMerchantRole promotes or demotes a merchant. Used by demo seeding.
func (s *Store) SetMerchantRole(ctx context.Context, id ledger.MerchantID, role merchant.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE merchants SET role = ?, updated_at = ? WHERE id = ?",
		role, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return storageErr(err)
	}
	return requireRow(result, ledger.ErrMerchantNotFound)
}

func (s *Store) TouchLogin(ctx context.Context, id ledger.MerchantID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE merchants SET last_login_at = ?, updated_at = ? WHERE id = ?",
		at.UTC().Format(timeLayout), at.UTC().Format(timeLayout), id)
	if err != nil {
		return storageErr(err)
	}
	return requireRow(result, ledger.ErrMerchantNotFound)
}

// =============================================================================
// AD STORE (ads.Store interface)
// =============================================================================

func (s *Store) CreateAd(ctx context.Context, ad ads.Ad) (ads.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad.ID = ledger.AdID(uuid.NewString())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ads
		(id, merchant_id, title, ad_type, status, target_url, banner_image_url,
		 app_store_url, google_play_url, cost_per_day, budget_credits,
		 impressions, clicks, start_date, end_date, last_charged_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ad.ID, ad.MerchantID, ad.Title, ad.Type, ad.Status,
		ad.TargetURL, ad.BannerImageURL, ad.AppStoreURL, ad.GooglePlayURL,
		ad.CostPerDay, ad.BudgetCredits,
		ad.Metrics.Impressions, ad.Metrics.Clicks,
		nullTime(ad.StartDate), nullTime(ad.EndDate), nullTime(ad.LastChargedAt),
		ad.CreatedAt.Format(timeLayout), ad.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return ads.Ad{}, storageErr(err)
	}
	return ad, nil
}

const adColumns = `
	SELECT id, merchant_id, title, ad_type, status, target_url, banner_image_url,
	       app_store_url, google_play_url, cost_per_day, budget_credits,
	       impressions, clicks, start_date, end_date, last_charged_at, created_at, updated_at
	FROM ads`

func (s *Store) GetAd(ctx context.Context, id ledger.AdID) (ads.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, adColumns+" WHERE id = ?", id)
	if err != nil {
		return ads.Ad{}, storageErr(err)
	}
	defer rows.Close()

	list, err := scanAds(rows)
	if err != nil {
		return ads.Ad{}, err
	}
	if len(list) == 0 {
		return ads.Ad{}, ledger.ErrAdNotFound
	}
	return list[0], nil
}

func (s *Store) ListAds(ctx context.Context, merchantID ledger.MerchantID) ([]ads.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		adColumns+" WHERE merchant_id = ? ORDER BY created_at DESC", merchantID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	return scanAds(rows)
}

func (s *Store) ListAdsByStatus(ctx context.Context, status ads.AdStatus) ([]ads.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		adColumns+" WHERE status = ? ORDER BY created_at ASC", status)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	return scanAds(rows)
}

func (s *Store) UpdateAd(ctx context.Context, ad ads.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE ads SET
			title = ?, status = ?, target_url = ?, banner_image_url = ?,
			app_store_url = ?, google_play_url = ?, budget_credits = ?,
			start_date = ?, end_date = ?, last_charged_at = ?, updated_at = ?
		WHERE id = ?`,
		ad.Title, ad.Status, ad.TargetURL, ad.BannerImageURL,
		ad.AppStoreURL, ad.GooglePlayURL, ad.BudgetCredits,
		nullTime(ad.StartDate), nullTime(ad.EndDate), nullTime(ad.LastChargedAt),
		ad.UpdatedAt.Format(timeLayout),
		ad.ID,
	)
	if err != nil {
		return storageErr(err)
	}
	return requireRow(result, ledger.ErrAdNotFound)
}

func (s *Store) DeleteAd(ctx context.Context, id ledger.AdID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM ads WHERE id = ?", id)
	if err != nil {
		return storageErr(err)
	}
	return requireRow(result, ledger.ErrAdNotFound)
}

func (s *Store) BumpMetrics(ctx context.Context, id ledger.AdID, impressions, clicks int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE ads SET impressions = impressions + ?, clicks = clicks + ?, updated_at = ?
		WHERE id = ?`,
		impressions, clicks, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return storageErr(err)
	}
	return requireRow(result, ledger.ErrAdNotFound)
}

func scanAds(rows *sql.Rows) ([]ads.Ad, error) {
	var list []ads.Ad
	for rows.Next() {
		var (
			ad                              ads.Ad
			startDate, endDate, lastCharged sql.NullString
			createdAt, updatedAt            string
		)
		if err := rows.Scan(&ad.ID, &ad.MerchantID, &ad.Title, &ad.Type, &ad.Status,
			&ad.TargetURL, &ad.BannerImageURL, &ad.AppStoreURL, &ad.GooglePlayURL,
			&ad.CostPerDay, &ad.BudgetCredits,
			&ad.Metrics.Impressions, &ad.Metrics.Clicks,
			&startDate, &endDate, &lastCharged, &createdAt, &updatedAt); err != nil {
			return nil, storageErr(err)
		}
		ad.StartDate = parseNullTime(startDate)
		ad.EndDate = parseNullTime(endDate)
		ad.LastChargedAt = parseNullTime(lastCharged)
		ad.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		ad.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		list = append(list, ad)
	}
	return list, rows.Err()
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset wipes all data. Dev/demo only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"transactions", "ads", "merchants"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return storageErr(err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func requireRow(result sql.Result, missing error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if affected == 0 {
		return missing
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ledger.ErrStorage, err)
}
