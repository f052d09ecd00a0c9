/*
pricing.go - Cost table and refund formulas

PURPOSE:
  Determines what an ad costs per day and how much comes back when an
  active campaign is paused or cancelled.

REFUND MODEL:
  A merchant pays per day: one day on activation, one per daily debit.
  On pause/cancel the refund is the paid days that were never used:

    paidDays   = totalDebited / costPerDay
    usedDays   = days elapsed since the campaign started, inclusive
    refund     = (paidDays - usedDays) * costPerDay

  The refund is always clamped to [0, totalDebited - totalRefunded]:
  it can never exceed what was actually spent on the ad, and a second
  refund (cancel after pause) can never pay out the same days twice.

  The proration runs on decimals so a future fractional-day policy
  doesn't change the call sites; results round down to whole credits.

SEE ALSO:
  - service.go: Calls these on pause/cancel transitions
*/
package ads

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/adboost/ledger"
)

// =============================================================================
// COST TABLE - Fixed per ad type
// =============================================================================

var costPerDay = map[AdType]int64{
	TypeEcommerce: 10,
	TypeApp:       15,
	TypeBanner:    20,
}

// CostPerDay returns the daily cost for an ad type.
// Returns an error for unknown types so callers can't create free ads.
func CostPerDay(t AdType) (int64, error) {
	cost, ok := costPerDay[t]
	if !ok {
		return 0, &ledger.ValidationError{Field: "type", Message: "unknown ad type"}
	}
	return cost, nil
}

// =============================================================================
// REFUNDS - Proportional to verified-unused days
// =============================================================================

// RefundOnPause computes the refund for pausing an active ad: the full
// unused paid days remaining in the period, capped at the net amount
// debited for the ad. Never negative.
func RefundOnPause(ad Ad, totalDebited, totalRefunded int64, now time.Time) int64 {
	return unusedDaysRefund(ad, totalDebited, totalRefunded, now)
}

// RefundOnCancel computes the refund for cancelling an ad: the unspent
// allocation. For an ad already refunded on pause the cap zeroes this out,
// so the same unused days are never paid back twice.
func RefundOnCancel(ad Ad, totalDebited, totalRefunded int64, now time.Time) int64 {
	return unusedDaysRefund(ad, totalDebited, totalRefunded, now)
}

func unusedDaysRefund(ad Ad, totalDebited, totalRefunded int64, now time.Time) int64 {
	if ad.StartDate == nil || ad.CostPerDay <= 0 || totalDebited <= 0 {
		return 0
	}

	paidDays := decimal.NewFromInt(totalDebited).Div(decimal.NewFromInt(ad.CostPerDay))

	// The activation day counts as used.
	used := daysBetween(*ad.StartDate, now) + 1
	if used < 1 {
		used = 1
	}
	usedDays := decimal.NewFromInt(int64(used))

	unused := paidDays.Sub(usedDays)
	if unused.IsNegative() {
		return 0
	}

	refund := unused.Mul(decimal.NewFromInt(ad.CostPerDay)).Floor().IntPart()

	// Never refund more than the net spend on this ad.
	if net := totalDebited - totalRefunded; refund > net {
		refund = net
	}
	if refund < 0 {
		refund = 0
	}
	return refund
}

// daysBetween returns full calendar days from a to b in UTC.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
