/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	merchants, ads, and ledger history for testing and demos.

AVAILABLE SCENARIOS:

	demo-merchants:     Three merchants with ads in every lifecycle state
	campaign-lifecycle: One merchant walked through activate/pause/resume
	low-balance:        Merchant one daily debit away from auto-pause

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Register merchants through the service (welcome bonus applies)
 3. Recharge and create/activate ads through the services

	Everything goes through the normal service paths so every balance
	reconciles against its ledger history.

DEMO CREDENTIALS:

	All seeded accounts use the password "demo1234".
	admin_user has the admin role.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "demo-merchants"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler context and response helpers
  - merchant/merchant.go, ads/service.go: Service paths used for seeding
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/warp/adboost/ads"
	"github.com/warp/adboost/merchant"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "demo-merchants",
		Name:        "Demo Merchants",
		Description: "Three merchants with ecommerce, app, and banner ads plus an admin account",
	},
	{
		ID:          "campaign-lifecycle",
		Name:        "Campaign Lifecycle",
		Description: "One merchant walked through create, activate, pause, and resume",
	},
	{
		ID:          "low-balance",
		Name:        "Low Balance",
		Description: "Merchant whose active ad is one daily debit from auto-pausing",
	},
}

const demoPassword = "demo1234"

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "demo-merchants":
		err = h.loadDemoMerchantsScenario(ctx)
	case "campaign-lifecycle":
		err = h.loadCampaignLifecycleScenario(ctx)
	case "low-balance":
		err = h.loadLowBalanceScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetScenarios wipes all data without loading anything.
func (h *Handler) ResetScenarios(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seedMerchant registers a merchant with the demo password.
func (h *Handler) seedMerchant(ctx context.Context, username, email string) (merchant.Merchant, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return merchant.Merchant{}, err
	}
	return h.Merchants.Register(ctx, username, email, string(hash))
}

func (h *Handler) loadDemoMerchantsScenario(ctx context.Context) error {
	// techstore_owner: a recharged merchant with an active ecommerce ad.
	tech, err := h.seedMerchant(ctx, "techstore_owner", "owner@techstore.example")
	if err != nil {
		return err
	}
	if _, err := h.Merchants.Recharge(ctx, tech.ID, 400); err != nil {
		return err
	}
	techAd, err := h.Ads.Create(ctx, tech.ID, ads.CreateInput{
		Title:     "Summer Electronics Sale",
		Type:      ads.TypeEcommerce,
		TargetURL: "https://techstore.example/sale",
	})
	if err != nil {
		return err
	}
	if _, _, err := h.Ads.Activate(ctx, tech.ID, techAd.ID); err != nil {
		return err
	}

	// app_developer: active app ad plus a draft.
	dev, err := h.seedMerchant(ctx, "app_developer", "dev@apps.example")
	if err != nil {
		return err
	}
	if _, err := h.Merchants.Recharge(ctx, dev.ID, 200); err != nil {
		return err
	}
	devAd, err := h.Ads.Create(ctx, dev.ID, ads.CreateInput{
		Title:       "Fitness Tracker Pro",
		Type:        ads.TypeApp,
		AppStoreURL: "https://apps.example/fitness-tracker",
	})
	if err != nil {
		return err
	}
	if _, _, err := h.Ads.Activate(ctx, dev.ID, devAd.ID); err != nil {
		return err
	}
	if _, err := h.Ads.Create(ctx, dev.ID, ads.CreateInput{
		Title:         "Recipe Finder",
		Type:          ads.TypeApp,
		GooglePlayURL: "https://play.example/recipe-finder",
	}); err != nil {
		return err
	}

	// fashion_brand: a paused banner campaign.
	fashion, err := h.seedMerchant(ctx, "fashion_brand", "marketing@fashion.example")
	if err != nil {
		return err
	}
	if _, err := h.Merchants.Recharge(ctx, fashion.ID, 300); err != nil {
		return err
	}
	bannerAd, err := h.Ads.Create(ctx, fashion.ID, ads.CreateInput{
		Title:          "Autumn Collection",
		Type:           ads.TypeBanner,
		TargetURL:      "https://fashion.example/autumn",
		BannerImageURL: "https://cdn.fashion.example/autumn-banner.jpg",
	})
	if err != nil {
		return err
	}
	if _, _, err := h.Ads.Activate(ctx, fashion.ID, bannerAd.ID); err != nil {
		return err
	}
	if _, _, err := h.Ads.Pause(ctx, fashion.ID, bannerAd.ID); err != nil {
		return err
	}

	// admin_user: admin role for manual adjustments.
	admin, err := h.seedMerchant(ctx, "admin_user", "admin@adboost.example")
	if err != nil {
		return err
	}
	return h.Store.SetMerchantRole(ctx, admin.ID, merchant.RoleAdmin)
}

func (h *Handler) loadCampaignLifecycleScenario(ctx context.Context) error {
	m, err := h.seedMerchant(ctx, "lifecycle_demo", "lifecycle@adboost.example")
	if err != nil {
		return err
	}
	if _, err := h.Merchants.Recharge(ctx, m.ID, 500); err != nil {
		return err
	}

	ad, err := h.Ads.Create(ctx, m.ID, ads.CreateInput{
		Title:     "Lifecycle Walkthrough",
		Type:      ads.TypeEcommerce,
		TargetURL: "https://shop.example/featured",
	})
	if err != nil {
		return err
	}
	if _, _, err := h.Ads.Activate(ctx, m.ID, ad.ID); err != nil {
		return err
	}
	if _, _, err := h.Ads.Pause(ctx, m.ID, ad.ID); err != nil {
		return err
	}
	if _, _, err := h.Ads.Resume(ctx, m.ID, ad.ID); err != nil {
		return err
	}
	return nil
}

func (h *Handler) loadLowBalanceScenario(ctx context.Context) error {
	m, err := h.seedMerchant(ctx, "low_balance", "low@adboost.example")
	if err != nil {
		return err
	}

	// Banner costs 20/day. Welcome bonus 100; activation debits 20,
	// leaving 80. Burn down to under one more day via admin adjustment.
	ad, err := h.Ads.Create(ctx, m.ID, ads.CreateInput{
		Title:          "Running On Fumes",
		Type:           ads.TypeBanner,
		TargetURL:      "https://example.com",
		BannerImageURL: "https://cdn.example.com/banner.png",
	})
	if err != nil {
		return err
	}
	if _, _, err := h.Ads.Activate(ctx, m.ID, ad.ID); err != nil {
		return err
	}
	_, err = h.Merchants.Adjust(ctx, m.ID, -65, "Demo: drain balance below one daily debit")
	return err
}
