/*
handlers.go - HTTP API handlers for the merchant advertising platform

PURPOSE:
  Exposes the credit ledger and ad lifecycle via REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/register            Register merchant (grants welcome bonus)
    POST   /api/login               Login
    POST   /api/logout              Logout
    GET    /api/user                Current merchant

  Ads:
    GET    /api/ads                 List merchant's ads
    POST   /api/ads                 Create ad (draft)
    POST   /api/ads/{id}/activate   draft -> active (debits first day)
    POST   /api/ads/{id}/pause      active -> paused (refunds unused days)
    POST   /api/ads/{id}/resume     paused -> active (debits a day)
    POST   /api/ads/{id}/cancel     active/paused -> cancelled
    DELETE /api/ads/{id}            Delete draft/terminal ad
    POST   /api/ads/{id}/click      Simulate click (public, rate-limited)

  Credits:
    POST   /api/recharge            Add credits
    GET    /api/transactions        Ledger history, newest first

  Admin:
    POST   /api/admin/adjustments              Manual balance correction
    POST   /api/admin/merchants/{id}/suspend   Suspend a merchant
    DELETE /api/admin/merchants/{id}           Soft-delete a merchant
    POST   /api/admin/tick                     Run daily debits on demand

  Scenarios:
    GET    /api/scenarios           List demo scenarios
    POST   /api/scenarios/load      Seed demo data
    POST   /api/scenarios/reset     Wipe the database (dev only)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, insufficient credits, bad amounts
  - 401: Missing/expired session
  - 404: Unknown merchant or ad
  - 409: Invalid transitions, duplicate registration, concurrency conflicts
  - 500: Storage and internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - session.go: Authentication middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/adboost/ads"
	"github.com/warp/adboost/ledger"
	"github.com/warp/adboost/merchant"
	"github.com/warp/adboost/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Merchants *merchant.Service
	Ads       *ads.Service
	Sessions  *Sessions
	Log       *zap.Logger

	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log *zap.Logger) *Handler {
	enforcer := ledger.NewEnforcer(store)
	return &Handler{
		Store:     store,
		Merchants: merchant.NewService(store, enforcer),
		Ads:       ads.NewService(store, store, enforcer),
		Sessions:  NewSessions(),
		Log:       log,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Register creates a merchant account and logs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "All fields are required", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Registration failed", err)
		return
	}

	m, err := h.Merchants.Register(r.Context(), req.Username, req.Email, string(hash))
	if err != nil {
		h.writeDomainError(w, "Registration failed", err)
		return
	}

	setSessionCookie(w, h.Sessions.Create(m.ID, m.Role))
	writeJSON(w, http.StatusOK, toMerchantDTO(m))
}

// Login authenticates a merchant by username and password.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	m, err := h.Store.GetMerchantByUsername(r.Context(), req.Username)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if m.Status != merchant.StatusActive {
		writeError(w, http.StatusForbidden, "Account is not active", nil)
		return
	}

	if err := h.Store.TouchLogin(r.Context(), m.ID, time.Now()); err != nil {
		h.Log.Warn("failed to record login time", zap.Error(err))
	}

	setSessionCookie(w, h.Sessions.Create(m.ID, m.Role))
	writeJSON(w, http.StatusOK, toMerchantDTO(m))
}

// Logout destroys the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		h.Sessions.Destroy(cookie.Value)
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// CurrentUser returns the authenticated merchant.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	merchantID, _ := MerchantIDFrom(r.Context())
	m, err := h.Merchants.Get(r.Context(), merchantID)
	if err != nil {
		h.writeDomainError(w, "Failed to get user info", err)
		return
	}
	writeJSON(w, http.StatusOK, toMerchantDTO(m))
}

// =============================================================================
// AD HANDLERS
// =============================================================================

// ListAds returns the merchant's ads, newest first.
func (h *Handler) ListAds(w http.ResponseWriter, r *http.Request) {
	merchantID, _ := MerchantIDFrom(r.Context())
	list, err := h.Ads.List(r.Context(), merchantID)
	if err != nil {
		h.writeDomainError(w, "Failed to list ads", err)
		return
	}
	dtos := make([]AdDTO, len(list))
	for i, ad := range list {
		dtos[i] = toAdDTO(ad)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAd creates a new ad in draft status.
func (h *Handler) CreateAd(w http.ResponseWriter, r *http.Request) {
	merchantID, _ := MerchantIDFrom(r.Context())

	var req CreateAdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := ads.CreateInput{
		Title:          req.Title,
		Type:           ads.AdType(req.Type),
		TargetURL:      req.TargetURL,
		BannerImageURL: req.BannerImageURL,
		AppStoreURL:    req.AppStoreURL,
		GooglePlayURL:  req.GooglePlayURL,
		BudgetCredits:  req.BudgetCredits,
	}
	if req.EndDate != "" {
		end, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid endDate", err)
			return
		}
		in.EndDate = &end
	}

	ad, err := h.Ads.Create(r.Context(), merchantID, in)
	if err != nil {
		h.writeDomainError(w, "Failed to create ad", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdDTO(ad))
}

// ActivateAd transitions an ad from draft to active, debiting the first day.
func (h *Handler) ActivateAd(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ads.Activate)
}

// PauseAd transitions an ad from active to paused with a refund.
func (h *Handler) PauseAd(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ads.Pause)
}

// ResumeAd transitions an ad from paused back to active.
func (h *Handler) ResumeAd(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ads.Resume)
}

// CancelAd transitions an ad to cancelled with a refund of the unspent
// allocation.
func (h *Handler) CancelAd(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Ads.Cancel)
}

type transitionFn func(ctx context.Context, merchantID ledger.MerchantID, adID ledger.AdID) (ads.Ad, ledger.ApplyResult, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFn) {
	merchantID, _ := MerchantIDFrom(r.Context())
	adID := ledger.AdID(chi.URLParam(r, "id"))

	ad, res, err := fn(r.Context(), merchantID, adID)
	if err != nil {
		h.writeDomainError(w, "Transition failed", err)
		return
	}

	balance := res.NewBalance
	if res.Transaction.ID == "" {
		// Transition without a ledger effect (e.g. zero refund).
		balance, err = h.Store.Credits(r.Context(), merchantID)
		if err != nil {
			h.writeDomainError(w, "Failed to read balance", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ad":         toAdDTO(ad),
		"newBalance": balance,
	})
}

// DeleteAd removes a draft or terminal ad.
func (h *Handler) DeleteAd(w http.ResponseWriter, r *http.Request) {
	merchantID, _ := MerchantIDFrom(r.Context())
	adID := ledger.AdID(chi.URLParam(r, "id"))

	if err := h.Ads.Delete(r.Context(), merchantID, adID); err != nil {
		h.writeDomainError(w, "Failed to delete ad", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ClickAd simulates a click on an active ad. Public endpoint.
func (h *Handler) ClickAd(w http.ResponseWriter, r *http.Request) {
	adID := ledger.AdID(chi.URLParam(r, "id"))

	result, err := h.Ads.Click(r.Context(), adID)
	if err != nil {
		// The original behavior: a missing or inactive ad is simply not found.
		if errors.Is(err, ledger.ErrInvalidTransition) || errors.Is(err, ledger.ErrAdNotFound) {
			writeError(w, http.StatusNotFound, "Ad not found or not active", nil)
			return
		}
		h.writeDomainError(w, "Failed to process ad click", err)
		return
	}
	writeJSON(w, http.StatusOK, ClickResponse{
		RedirectURL: result.RedirectURL,
		AdData: ClickAdDTO{
			Title:          result.Title,
			Type:           string(result.Type),
			BannerImageURL: result.BannerImageURL,
		},
	})
}

// =============================================================================
// CREDIT HANDLERS
// =============================================================================

// Recharge adds credits to the merchant's balance.
func (h *Handler) Recharge(w http.ResponseWriter, r *http.Request) {
	merchantID, _ := MerchantIDFrom(r.Context())

	var req RechargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Merchants.Recharge(r.Context(), merchantID, req.Amount)
	if err != nil {
		h.writeDomainError(w, "Failed to recharge credits", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{NewBalance: res.NewBalance})
}

// ListTransactions returns the merchant's ledger history, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	merchantID, _ := MerchantIDFrom(r.Context())

	txs, err := h.Store.ListFor(r.Context(), merchantID)
	if err != nil {
		h.writeDomainError(w, "Failed to get transactions", err)
		return
	}
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// AdminAdjust applies a manual balance correction.
func (h *Handler) AdminAdjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Merchants.Adjust(r.Context(), ledger.MerchantID(req.MerchantID), req.Amount, req.Note)
	if err != nil {
		h.writeDomainError(w, "Failed to apply adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{NewBalance: res.NewBalance})
}

// AdminSuspendMerchant moves a merchant to suspended status.
func (h *Handler) AdminSuspendMerchant(w http.ResponseWriter, r *http.Request) {
	id := ledger.MerchantID(chi.URLParam(r, "id"))
	if err := h.Merchants.Suspend(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to suspend merchant", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// AdminDeleteMerchant soft-deletes a merchant. The account and its ledger
// history remain; only the status changes.
func (h *Handler) AdminDeleteMerchant(w http.ResponseWriter, r *http.Request) {
	id := ledger.MerchantID(chi.URLParam(r, "id"))
	if err := h.Merchants.SoftDelete(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete merchant", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// AdminTick runs the daily-debit pass on demand.
func (h *Handler) AdminTick(w http.ResponseWriter, r *http.Request) {
	report, err := h.Ads.RunDailyDebits(r.Context())
	if err != nil {
		h.writeDomainError(w, "Daily debit run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, TickResponse{
		Charged: report.Charged,
		Paused:  report.Paused,
		Ended:   report.Ended,
	})
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger/domain errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrInvalidTransition):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrDuplicateMerchant):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Log.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
