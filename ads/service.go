/*
service.go - Ad lifecycle state machine

PURPOSE:
  Governs ad status transitions and which transitions trigger ledger
  entries. The transition table:

    draft         activate    active      debit one day (AD_ACTIVATE)
    paused        resume      active      debit one day (AD_ACTIVATE)
    active        pause       paused      refund unused days (AD_PAUSE_REFUND)
    active/paused cancel      cancelled   refund unspent allocation (AD_CANCEL_REFUND)
    active        click       active      metrics +1/+1, no ledger effect
    active        daily tick  active      one AD_DAILY_DEBIT per elapsed day;
                                          auto-pause when credits run out,
                                          ended past endDate or budget cap

  Invalid transitions fail with InvalidTransition and produce no ledger
  effect. Deletion is permitted only for ads in draft or terminal states,
  to preserve ledger auditability for anything that ever incurred a charge.

ORDERING:
  Monetary effects are applied before the status write, so a rejected
  debit (insufficient credits) leaves the ad exactly as it was.

SEE ALSO:
  - pricing.go: Cost table and refund math
  - ledger/enforcer.go: ApplyDelta, the only balance write path
*/
package ads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/adboost/ledger"
)

// =============================================================================
// STORE - Ad persistence
// =============================================================================

type Store interface {
	CreateAd(ctx context.Context, ad Ad) (Ad, error)
	GetAd(ctx context.Context, id ledger.AdID) (Ad, error)
	ListAds(ctx context.Context, merchantID ledger.MerchantID) ([]Ad, error)
	ListAdsByStatus(ctx context.Context, status AdStatus) ([]Ad, error)
	UpdateAd(ctx context.Context, ad Ad) error
	DeleteAd(ctx context.Context, id ledger.AdID) error

	// BumpMetrics atomically increments impression/click counters.
	BumpMetrics(ctx context.Context, id ledger.AdID, impressions, clicks int64) error
}

// =============================================================================
// SERVICE - Orchestrates transitions and ledger effects
// =============================================================================

type Service struct {
	Ads      Store
	Ledger   ledger.Store
	Enforcer *ledger.Enforcer

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewService(adStore Store, ledgerStore ledger.Store, enforcer *ledger.Enforcer) *Service {
	return &Service{Ads: adStore, Ledger: ledgerStore, Enforcer: enforcer, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateInput carries the merchant-supplied fields for a new ad.
type CreateInput struct {
	Title          string
	Type           AdType
	TargetURL      string
	BannerImageURL string
	AppStoreURL    string
	GooglePlayURL  string
	BudgetCredits  int64
	EndDate        *time.Time
}

// Create makes a new ad in draft status. CostPerDay is fixed here from the
// pricing table and never changes afterwards.
func (s *Service) Create(ctx context.Context, merchantID ledger.MerchantID, in CreateInput) (Ad, error) {
	if in.Title == "" {
		return Ad{}, &ledger.ValidationError{Field: "title", Message: "required"}
	}
	if in.Type == "" {
		return Ad{}, &ledger.ValidationError{Field: "type", Message: "required"}
	}
	cost, err := CostPerDay(in.Type)
	if err != nil {
		return Ad{}, err
	}
	if in.BudgetCredits < 0 {
		return Ad{}, &ledger.ValidationError{Field: "budgetCredits", Message: "must be non-negative"}
	}

	now := s.now()
	ad := Ad{
		MerchantID:     merchantID,
		Title:          in.Title,
		Type:           in.Type,
		Status:         StatusDraft,
		TargetURL:      in.TargetURL,
		BannerImageURL: in.BannerImageURL,
		AppStoreURL:    in.AppStoreURL,
		GooglePlayURL:  in.GooglePlayURL,
		CostPerDay:     cost,
		BudgetCredits:  in.BudgetCredits,
		EndDate:        in.EndDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.Ads.CreateAd(ctx, ad)
}

// Get returns a merchant's ad. Ads owned by other merchants are reported as
// not found rather than forbidden.
func (s *Service) Get(ctx context.Context, merchantID ledger.MerchantID, adID ledger.AdID) (Ad, error) {
	ad, err := s.Ads.GetAd(ctx, adID)
	if err != nil {
		return Ad{}, err
	}
	if ad.MerchantID != merchantID {
		return Ad{}, ledger.ErrAdNotFound
	}
	return ad, nil
}

// List returns a merchant's ads, newest first.
func (s *Service) List(ctx context.Context, merchantID ledger.MerchantID) ([]Ad, error) {
	return s.Ads.ListAds(ctx, merchantID)
}

// Activate transitions draft -> active, debiting the first day's cost.
// Fails with InsufficientCredits (ad untouched) when the balance is short.
func (s *Service) Activate(ctx context.Context, merchantID ledger.MerchantID, adID ledger.AdID) (Ad, ledger.ApplyResult, error) {
	ad, err := s.Get(ctx, merchantID, adID)
	if err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}
	if ad.Status != StatusDraft {
		return Ad{}, ledger.ApplyResult{}, &ledger.InvalidTransitionError{AdID: adID, From: string(ad.Status), Event: "activate"}
	}

	res, err := s.Enforcer.ApplyDelta(ctx, merchantID, -ad.CostPerDay,
		ledger.TxAdActivate, ledger.SourceUser, fmt.Sprintf("Activated ad: %s", ad.Title), adID)
	if err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}

	now := s.now()
	ad.Status = StatusActive
	ad.StartDate = &now
	ad.LastChargedAt = &now
	ad.UpdatedAt = now
	if err := s.Ads.UpdateAd(ctx, ad); err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}
	return ad, res, nil
}

// Resume transitions paused -> active. The pause refund returned the unused
// days, so resuming pays for the new first day again.
func (s *Service) Resume(ctx context.Context, merchantID ledger.MerchantID, adID ledger.AdID) (Ad, ledger.ApplyResult, error) {
	ad, err := s.Get(ctx, merchantID, adID)
	if err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}
	if ad.Status != StatusPaused {
		return Ad{}, ledger.ApplyResult{}, &ledger.InvalidTransitionError{AdID: adID, From: string(ad.Status), Event: "resume"}
	}

	res, err := s.Enforcer.ApplyDelta(ctx, merchantID, -ad.CostPerDay,
		ledger.TxAdActivate, ledger.SourceUser, fmt.Sprintf("Resumed ad: %s", ad.Title), adID)
	if err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}

	now := s.now()
	ad.Status = StatusActive
	ad.LastChargedAt = &now
	ad.UpdatedAt = now
	if err := s.Ads.UpdateAd(ctx, ad); err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}
	return ad, res, nil
}

// Pause transitions active -> paused, refunding the unused paid days.
func (s *Service) Pause(ctx context.Context, merchantID ledger.MerchantID, adID ledger.AdID) (Ad, ledger.ApplyResult, error) {
	ad, err := s.Get(ctx, merchantID, adID)
	if err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}
	if ad.Status != StatusActive {
		return Ad{}, ledger.ApplyResult{}, &ledger.InvalidTransitionError{AdID: adID, From: string(ad.Status), Event: "pause"}
	}

	now := s.now()
	debited, refunded, err := s.adSpend(ctx, adID)
	if err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}

	var res ledger.ApplyResult
	if refund := RefundOnPause(ad, debited, refunded, now); refund > 0 {
		res, err = s.Enforcer.ApplyDelta(ctx, merchantID, refund,
			ledger.TxAdPauseRefund, ledger.SourceUser, fmt.Sprintf("Refund for paused ad: %s", ad.Title), adID)
		if err != nil {
			return Ad{}, ledger.ApplyResult{}, err
		}
	}

	ad.Status = StatusPaused
	ad.UpdatedAt = now
	if err := s.Ads.UpdateAd(ctx, ad); err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}
	return ad, res, nil
}

// Cancel transitions active/paused -> cancelled, refunding the unspent
// allocation.
func (s *Service) Cancel(ctx context.Context, merchantID ledger.MerchantID, adID ledger.AdID) (Ad, ledger.ApplyResult, error) {
	ad, err := s.Get(ctx, merchantID, adID)
	if err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}
	if ad.Status != StatusActive && ad.Status != StatusPaused {
		return Ad{}, ledger.ApplyResult{}, &ledger.InvalidTransitionError{AdID: adID, From: string(ad.Status), Event: "cancel"}
	}

	now := s.now()
	debited, refunded, err := s.adSpend(ctx, adID)
	if err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}

	var res ledger.ApplyResult
	if refund := RefundOnCancel(ad, debited, refunded, now); refund > 0 {
		res, err = s.Enforcer.ApplyDelta(ctx, merchantID, refund,
			ledger.TxAdCancelRefund, ledger.SourceUser, fmt.Sprintf("Refund for cancelled ad: %s", ad.Title), adID)
		if err != nil {
			return Ad{}, ledger.ApplyResult{}, err
		}
	}

	ad.Status = StatusCancelled
	ad.UpdatedAt = now
	if err := s.Ads.UpdateAd(ctx, ad); err != nil {
		return Ad{}, ledger.ApplyResult{}, err
	}
	return ad, res, nil
}

// Delete removes an ad. Only draft and terminal ads may be deleted; anything
// still accruing (or holding unreconciled) charges stays for auditability.
func (s *Service) Delete(ctx context.Context, merchantID ledger.MerchantID, adID ledger.AdID) error {
	ad, err := s.Get(ctx, merchantID, adID)
	if err != nil {
		return err
	}
	if ad.Status != StatusDraft && !ad.Status.Terminal() {
		return &ledger.InvalidTransitionError{AdID: adID, From: string(ad.Status), Event: "delete"}
	}
	return s.Ads.DeleteAd(ctx, adID)
}

// =============================================================================
// CLICK SIMULATION - Metrics only, no ledger effect
// =============================================================================

// ClickResult is what an ad click resolves to.
type ClickResult struct {
	RedirectURL    string
	Title          string
	Type           AdType
	BannerImageURL string
}

// Click records a simulated click on an active ad: impressions and clicks
// each increment by one. Clicks do not cost credits; only activation and
// daily debits do.
func (s *Service) Click(ctx context.Context, adID ledger.AdID) (ClickResult, error) {
	ad, err := s.Ads.GetAd(ctx, adID)
	if err != nil {
		return ClickResult{}, err
	}
	if ad.Status != StatusActive {
		return ClickResult{}, &ledger.InvalidTransitionError{AdID: adID, From: string(ad.Status), Event: "click"}
	}
	if err := s.Ads.BumpMetrics(ctx, adID, 1, 1); err != nil {
		return ClickResult{}, err
	}
	return ClickResult{
		RedirectURL:    ad.RedirectTarget(),
		Title:          ad.Title,
		Type:           ad.Type,
		BannerImageURL: ad.BannerImageURL,
	}, nil
}

// =============================================================================
// DAILY TICK - On-demand or scheduler-driven recurring debits
// =============================================================================

// TickReport summarizes one daily-debit pass.
type TickReport struct {
	Charged int // daily debits applied
	Paused  int // ads auto-paused on insufficient credits
	Ended   int // ads ended (past endDate or budget exhausted)
}

// RunDailyDebits charges every active ad once per elapsed day since its last
// charge. An ad whose merchant cannot cover a day is auto-paused rather than
// driving the balance negative (no refund - nothing unused to return). Ads
// past their end date, or past their budget cap, transition to ended.
func (s *Service) RunDailyDebits(ctx context.Context) (TickReport, error) {
	now := s.now()
	active, err := s.Ads.ListAdsByStatus(ctx, StatusActive)
	if err != nil {
		return TickReport{}, err
	}

	var report TickReport
	for _, ad := range active {
		if err := s.tickAd(ctx, ad, now, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *Service) tickAd(ctx context.Context, ad Ad, now time.Time, report *TickReport) error {
	last := ad.StartDate
	if ad.LastChargedAt != nil {
		last = ad.LastChargedAt
	}
	if last == nil {
		// Active ad without a start date is seed-data damage; nothing owed.
		return nil
	}

	chargeUntil := now
	if ad.EndDate != nil && ad.EndDate.Before(now) {
		chargeUntil = *ad.EndDate
	}

	owed := daysBetween(*last, chargeUntil)
	debited, _, err := s.adSpend(ctx, ad.ID)
	if err != nil {
		return err
	}

	changed := false
	for day := 0; day < owed; day++ {
		if ad.BudgetCredits > 0 && debited+ad.CostPerDay > ad.BudgetCredits {
			ad.Status = StatusEnded
			report.Ended++
			changed = true
			break
		}

		_, err := s.Enforcer.ApplyDelta(ctx, ad.MerchantID, -ad.CostPerDay,
			ledger.TxAdDailyDebit, ledger.SourceSystem, fmt.Sprintf("Daily charge for ad: %s", ad.Title), ad.ID)
		if err != nil {
			if !errors.Is(err, ledger.ErrInsufficientCredits) {
				return err
			}
			// Insufficient credits: pause instead of going negative.
			ad.Status = StatusPaused
			report.Paused++
			changed = true
			break
		}

		next := last.AddDate(0, 0, day+1)
		ad.LastChargedAt = &next
		debited += ad.CostPerDay
		report.Charged++
		changed = true
	}

	if ad.Status == StatusActive && ad.EndDate != nil && ad.EndDate.Before(now) {
		ad.Status = StatusEnded
		report.Ended++
		changed = true
	}

	if changed {
		ad.UpdatedAt = now
		return s.Ads.UpdateAd(ctx, ad)
	}
	return nil
}

// adSpend sums the ledger entries for an ad: total debited (as a positive
// number) and total refunded.
func (s *Service) adSpend(ctx context.Context, adID ledger.AdID) (debited, refunded int64, err error) {
	txs, err := s.Ledger.ListForAd(ctx, adID)
	if err != nil {
		return 0, 0, err
	}
	for _, tx := range txs {
		if tx.Amount < 0 {
			debited += -tx.Amount
		} else {
			refunded += tx.Amount
		}
	}
	return debited, refunded, nil
}
