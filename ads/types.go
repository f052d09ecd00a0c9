/*
Package ads implements the advertisement lifecycle for the AdBoost platform.

PURPOSE:
  Ads move through a small state machine (draft, active, paused, ended,
  cancelled). Transitions are triggered by explicit merchant actions,
  simulated clicks, or the daily debit tick, and some transitions carry
  a monetary effect that is applied through the ledger Enforcer.

KEY CONCEPTS IN THIS FILE (types.go):
  - Ad: The advertisement entity with status, pricing, and metrics
  - AdType: ECOMMERCE, APP, or BANNER - fixed at creation, determines
    the daily cost and which URL fields are meaningful
  - AdStatus: The state machine states

SEE ALSO:
  - service.go: Transition rules and ledger effects
  - pricing.go: Cost table and refund formulas
*/
package ads

import (
	"time"

	"github.com/warp/adboost/ledger"
)

// =============================================================================
// AD TYPE - Immutable after creation
// =============================================================================

type AdType string

const (
	TypeEcommerce AdType = "ECOMMERCE" // uses TargetURL
	TypeApp       AdType = "APP"       // uses AppStoreURL / GooglePlayURL
	TypeBanner    AdType = "BANNER"    // uses TargetURL + BannerImageURL
)

func (t AdType) Valid() bool {
	switch t {
	case TypeEcommerce, TypeApp, TypeBanner:
		return true
	}
	return false
}

// =============================================================================
// AD STATUS - State machine states
// =============================================================================

type AdStatus string

const (
	StatusDraft     AdStatus = "draft"
	StatusActive    AdStatus = "active"
	StatusPaused    AdStatus = "paused"
	StatusEnded     AdStatus = "ended"
	StatusCancelled AdStatus = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s AdStatus) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// =============================================================================
// METRICS - Monotonically non-decreasing counters
// =============================================================================

type Metrics struct {
	Impressions int64
	Clicks      int64
}

// =============================================================================
// AD - The advertisement entity
// =============================================================================

type Ad struct {
	ID         ledger.AdID
	MerchantID ledger.MerchantID

	Title  string
	Type   AdType
	Status AdStatus

	TargetURL      string
	BannerImageURL string
	AppStoreURL    string
	GooglePlayURL  string

	// CostPerDay is fixed at creation from the pricing table.
	CostPerDay int64

	// BudgetCredits caps total spend; 0 means unlimited.
	BudgetCredits int64

	Metrics Metrics

	StartDate *time.Time // set on activation
	EndDate   *time.Time

	// LastChargedAt marks the day the most recent charge covers.
	// Set on activation/resume, advanced by each daily debit.
	LastChargedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RedirectTarget returns the URL a click should resolve to, preferring the
// type's primary destination.
func (a Ad) RedirectTarget() string {
	switch {
	case a.TargetURL != "":
		return a.TargetURL
	case a.AppStoreURL != "":
		return a.AppStoreURL
	default:
		return a.GooglePlayURL
	}
}
