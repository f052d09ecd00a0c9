/*
Package merchant handles merchant accounts and credit operations.

PURPOSE:
  Merchants register, hold a credit balance, and recharge it. The balance
  itself is owned by the ledger Enforcer - this package never writes the
  credits field directly. Registration grants a fixed welcome bonus as
  the merchant's first ledger entry.

LIFECYCLE:
  Merchants are never hard-deleted: status moves active -> suspended or
  active -> deleted, preserving the transaction history.

SEE ALSO:
  - ledger/enforcer.go: ApplyDelta, the only balance write path
  - store/sqlite/sqlite.go: Persistence
*/
package merchant

import (
	"context"
	"strings"
	"time"

	"github.com/warp/adboost/ledger"
)

// WelcomeBonus is granted to every new merchant as their first transaction.
const WelcomeBonus = 100

// =============================================================================
// MERCHANT - The account entity
// =============================================================================

type Role string

const (
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

type Merchant struct {
	ID           ledger.MerchantID
	Username     string
	Email        string
	PasswordHash string

	// Credits is the authoritative current balance. It always equals the
	// BalanceAfter of the most recent ledger entry (0 pre-transaction).
	Credits int64

	Role   Role
	Status Status

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// STORE - Merchant persistence
// =============================================================================

type Store interface {
	// CreateMerchant persists a new merchant.
	// Returns ErrDuplicateMerchant when the username or email is taken.
	CreateMerchant(ctx context.Context, m Merchant) (Merchant, error)

	GetMerchant(ctx context.Context, id ledger.MerchantID) (Merchant, error)
	GetMerchantByUsername(ctx context.Context, username string) (Merchant, error)

	UpdateMerchantStatus(ctx context.Context, id ledger.MerchantID, status Status) error
	TouchLogin(ctx context.Context, id ledger.MerchantID, at time.Time) error
}

// =============================================================================
// SERVICE - Registration and credit operations
// =============================================================================

type Service struct {
	Merchants Store
	Enforcer  *ledger.Enforcer
}

func NewService(store Store, enforcer *ledger.Enforcer) *Service {
	return &Service{Merchants: store, Enforcer: enforcer}
}

// Register creates a merchant and applies the welcome bonus through the
// Enforcer, so the very first ledger entry already reconciles.
func (s *Service) Register(ctx context.Context, username, email, passwordHash string) (Merchant, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	switch {
	case username == "":
		return Merchant{}, &ledger.ValidationError{Field: "username", Message: "required"}
	case email == "":
		return Merchant{}, &ledger.ValidationError{Field: "email", Message: "required"}
	case passwordHash == "":
		return Merchant{}, &ledger.ValidationError{Field: "password", Message: "required"}
	}

	now := time.Now().UTC()
	m, err := s.Merchants.CreateMerchant(ctx, Merchant{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Credits:      0,
		Role:         RoleMerchant,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Merchant{}, err
	}

	res, err := s.Enforcer.ApplyDelta(ctx, m.ID, WelcomeBonus,
		ledger.TxCreditRecharge, ledger.SourceSystem, "Welcome bonus", "")
	if err != nil {
		return Merchant{}, err
	}
	m.Credits = res.NewBalance
	return m, nil
}

// Recharge adds credits to a merchant's balance.
// Fails with ErrInvalidAmount when amount <= 0.
func (s *Service) Recharge(ctx context.Context, id ledger.MerchantID, amount int64) (ledger.ApplyResult, error) {
	if amount <= 0 {
		return ledger.ApplyResult{}, ledger.ErrInvalidAmount
	}
	return s.Enforcer.ApplyDelta(ctx, id, amount,
		ledger.TxCreditRecharge, ledger.SourceUser, "Credit recharge", "")
}

// Adjust applies a signed manual correction with admin provenance.
func (s *Service) Adjust(ctx context.Context, id ledger.MerchantID, amount int64, note string) (ledger.ApplyResult, error) {
	if amount == 0 {
		return ledger.ApplyResult{}, ledger.ErrInvalidAmount
	}
	if note == "" {
		note = "Manual adjustment"
	}
	return s.Enforcer.ApplyDelta(ctx, id, amount,
		ledger.TxManualAdjust, ledger.SourceAdmin, note, "")
}

// Get returns a merchant by id.
func (s *Service) Get(ctx context.Context, id ledger.MerchantID) (Merchant, error) {
	return s.Merchants.GetMerchant(ctx, id)
}

// Suspend moves a merchant to suspended status.
func (s *Service) Suspend(ctx context.Context, id ledger.MerchantID) error {
	return s.Merchants.UpdateMerchantStatus(ctx, id, StatusSuspended)
}

// SoftDelete moves a merchant to deleted status. The account and its ledger
// history remain; there is no hard delete.
func (s *Service) SoftDelete(ctx context.Context, id ledger.MerchantID) error {
	return s.Merchants.UpdateMerchantStatus(ctx, id, StatusDeleted)
}
