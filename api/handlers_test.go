package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/adboost/ledger"
	"github.com/warp/adboost/merchant"
	"github.com/warp/adboost/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type apiFixture struct {
	t       *testing.T
	server  *httptest.Server
	handler *Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := NewHandler(store, zap.NewNop())
	server := httptest.NewServer(NewRouter(handler, RouterOptions{}))
	t.Cleanup(server.Close)

	return &apiFixture{t: t, server: server, handler: handler}
}

// do performs a JSON request, attaching the session cookie if present.
func (f *apiFixture) do(method, path string, body any, cookie *http.Cookie) (*http.Response, []byte) {
	f.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(f.t, err)
	return resp, out.Bytes()
}

// register creates a merchant and returns its session cookie.
func (f *apiFixture) register(username string) (*http.Cookie, MerchantDTO) {
	f.t.Helper()
	resp, body := f.do(http.MethodPost, "/api/register", RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	}, nil)
	require.Equal(f.t, http.StatusOK, resp.StatusCode, "register: %s", body)

	var m MerchantDTO
	require.NoError(f.t, json.Unmarshal(body, &m))

	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			return c, m
		}
	}
	f.t.Fatal("no session cookie on register response")
	return nil, m
}

func (f *apiFixture) createAd(cookie *http.Cookie, req CreateAdRequest) AdDTO {
	f.t.Helper()
	resp, body := f.do(http.MethodPost, "/api/ads", req, cookie)
	require.Equal(f.t, http.StatusOK, resp.StatusCode, "create ad: %s", body)
	var ad AdDTO
	require.NoError(f.t, json.Unmarshal(body, &ad))
	return ad
}

// =============================================================================
// AUTH FLOW TESTS
// =============================================================================

func TestAPI_Register_ReturnsMerchantWithBonus(t *testing.T) {
	f := newAPIFixture(t)

	_, m := f.register("newstore")
	assert.Equal(t, "newstore", m.Username)
	assert.Equal(t, int64(100), m.Credits)
	assert.Equal(t, "merchant", m.Role)
}

func TestAPI_Register_DuplicateUsername_Conflict(t *testing.T) {
	f := newAPIFixture(t)
	f.register("taken")

	resp, _ := f.do(http.MethodPost, "/api/register", RegisterRequest{
		Username: "taken", Email: "other@example.com", Password: "secret123",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_LoginLogout_Flow(t *testing.T) {
	f := newAPIFixture(t)
	f.register("comeback")

	resp, body := f.do(http.MethodPost, "/api/login", LoginRequest{
		Username: "comeback", Password: "secret123",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%s", body)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	resp, _ = f.do(http.MethodGet, "/api/user", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(http.MethodPost, "/api/logout", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(http.MethodGet, "/api/user", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "session must be dead after logout")
}

func TestAPI_Login_WrongPassword_Unauthorized(t *testing.T) {
	f := newAPIFixture(t)
	f.register("secure")

	resp, _ := f.do(http.MethodPost, "/api/login", LoginRequest{
		Username: "secure", Password: "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_ProtectedRoutes_RequireSession(t *testing.T) {
	f := newAPIFixture(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/user"},
		{http.MethodGet, "/api/ads"},
		{http.MethodPost, "/api/recharge"},
		{http.MethodGet, "/api/transactions"},
	} {
		resp, _ := f.do(route.method, route.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", route.method, route.path)
	}
}

// =============================================================================
// AD LIFECYCLE TESTS (over HTTP)
// =============================================================================

func TestAPI_AdLifecycle_ActivateClickPause(t *testing.T) {
	// Full walk: create -> activate (debits) -> click (public) -> pause.

	f := newAPIFixture(t)
	cookie, _ := f.register("walker")

	ad := f.createAd(cookie, CreateAdRequest{
		Title: "Walkthrough", Type: "ECOMMERCE", TargetURL: "https://shop.example/w",
	})
	assert.Equal(t, "draft", ad.Status)
	assert.Equal(t, int64(10), ad.CostPerDay)

	resp, body := f.do(http.MethodPost, fmt.Sprintf("/api/ads/%s/activate", ad.ID), nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%s", body)
	var activated struct {
		Ad         AdDTO `json:"ad"`
		NewBalance int64 `json:"newBalance"`
	}
	require.NoError(t, json.Unmarshal(body, &activated))
	assert.Equal(t, "active", activated.Ad.Status)
	assert.Equal(t, int64(90), activated.NewBalance)

	// Click is public: no cookie.
	resp, body = f.do(http.MethodPost, fmt.Sprintf("/api/ads/%s/click", ad.ID), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%s", body)
	var click ClickResponse
	require.NoError(t, json.Unmarshal(body, &click))
	assert.Equal(t, "https://shop.example/w", click.RedirectURL)
	assert.Equal(t, "Walkthrough", click.AdData.Title)

	resp, body = f.do(http.MethodPost, fmt.Sprintf("/api/ads/%s/pause", ad.ID), nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%s", body)
	require.NoError(t, json.Unmarshal(body, &activated))
	assert.Equal(t, "paused", activated.Ad.Status)
	assert.Equal(t, int64(90), activated.NewBalance, "same-day pause refunds nothing")
}

func TestAPI_Activate_InsufficientCredits_BadRequest(t *testing.T) {
	f := newAPIFixture(t)
	cookie, m := f.register("poor")

	// Drain to 15 via direct admin service access.
	_, err := f.handler.Merchants.Adjust(context.Background(), mID(m), -85, "drain")
	require.NoError(t, err)

	ad := f.createAd(cookie, CreateAdRequest{
		Title: "Pricey", Type: "BANNER", TargetURL: "https://x.example",
		BannerImageURL: "https://x.example/b.png",
	})

	resp, body := f.do(http.MethodPost, fmt.Sprintf("/api/ads/%s/activate", ad.ID), nil, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s", body)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.NotEmpty(t, errResp.Error)
}

func TestAPI_ActivateTwice_Conflict(t *testing.T) {
	f := newAPIFixture(t)
	cookie, _ := f.register("eager")
	ad := f.createAd(cookie, CreateAdRequest{
		Title: "Once", Type: "ECOMMERCE", TargetURL: "https://x.example",
	})

	resp, _ := f.do(http.MethodPost, fmt.Sprintf("/api/ads/%s/activate", ad.ID), nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(http.MethodPost, fmt.Sprintf("/api/ads/%s/activate", ad.ID), nil, cookie)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_Click_DraftAd_NotFound(t *testing.T) {
	f := newAPIFixture(t)
	cookie, _ := f.register("quiet")
	ad := f.createAd(cookie, CreateAdRequest{
		Title: "Hidden", Type: "ECOMMERCE", TargetURL: "https://x.example",
	})

	resp, _ := f.do(http.MethodPost, fmt.Sprintf("/api/ads/%s/click", ad.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_DeleteAd_ForeignAd_NotFound(t *testing.T) {
	f := newAPIFixture(t)
	ownerCookie, _ := f.register("owner")
	intruderCookie, _ := f.register("intruder")

	ad := f.createAd(ownerCookie, CreateAdRequest{
		Title: "Mine", Type: "ECOMMERCE", TargetURL: "https://x.example",
	})

	resp, _ := f.do(http.MethodDelete, "/api/ads/"+ad.ID, nil, intruderCookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// CREDIT TESTS (over HTTP)
// =============================================================================

func TestAPI_RechargeAndTransactions(t *testing.T) {
	f := newAPIFixture(t)
	cookie, _ := f.register("saver")

	resp, body := f.do(http.MethodPost, "/api/recharge", RechargeRequest{Amount: 300}, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%s", body)
	var bal BalanceResponse
	require.NoError(t, json.Unmarshal(body, &bal))
	assert.Equal(t, int64(400), bal.NewBalance)

	resp, body = f.do(http.MethodGet, "/api/transactions", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var txs []TransactionDTO
	require.NoError(t, json.Unmarshal(body, &txs))
	require.Len(t, txs, 2)
	// Newest first: recharge, then bonus.
	assert.Equal(t, "CREDIT_RECHARGE", txs[0].Type)
	assert.Equal(t, int64(300), txs[0].Amount)
	assert.Equal(t, int64(400), txs[0].BalanceAfter)
	assert.Equal(t, int64(100), txs[1].BalanceAfter)
}

func TestAPI_Recharge_ZeroAmount_BadRequest(t *testing.T) {
	f := newAPIFixture(t)
	cookie, _ := f.register("zero")

	resp, _ := f.do(http.MethodPost, "/api/recharge", RechargeRequest{Amount: 0}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// ADMIN TESTS (over HTTP)
// =============================================================================

func TestAPI_AdminRoutes_RequireAdminRole(t *testing.T) {
	f := newAPIFixture(t)
	cookie, _ := f.register("civilian")

	resp, _ := f.do(http.MethodPost, "/api/admin/tick", nil, cookie)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_AdminAdjust_AndTick(t *testing.T) {
	f := newAPIFixture(t)
	_, target := f.register("target")

	adminCookie, admin := f.register("admin")
	require.NoError(t, f.handler.Store.SetMerchantRole(context.Background(), mID(admin), merchant.RoleAdmin))
	// Re-login so the session carries the admin role.
	resp, _ := f.do(http.MethodPost, "/api/login", LoginRequest{
		Username: "admin", Password: "secret123",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			adminCookie = c
		}
	}

	resp, body := f.do(http.MethodPost, "/api/admin/adjustments", AdjustRequest{
		MerchantID: target.ID, Amount: -25, Note: "correction",
	}, adminCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%s", body)
	var bal BalanceResponse
	require.NoError(t, json.Unmarshal(body, &bal))
	assert.Equal(t, int64(75), bal.NewBalance)

	resp, body = f.do(http.MethodPost, "/api/admin/tick", nil, adminCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tick TickResponse
	require.NoError(t, json.Unmarshal(body, &tick))
	assert.Equal(t, 0, tick.Charged, "nothing active to charge")
}

func TestAPI_AdminSuspend_BlocksLogin(t *testing.T) {
	f := newAPIFixture(t)
	_, victim := f.register("victim")

	_, admin := f.register("boss")
	require.NoError(t, f.handler.Store.SetMerchantRole(context.Background(), mID(admin), merchant.RoleAdmin))
	resp, _ := f.do(http.MethodPost, "/api/login", LoginRequest{
		Username: "boss", Password: "secret123",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var adminCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			adminCookie = c
		}
	}

	resp, _ = f.do(http.MethodPost, "/api/admin/merchants/"+victim.ID+"/suspend", nil, adminCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(http.MethodPost, "/api/login", LoginRequest{
		Username: "victim", Password: "secret123",
	}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "suspended accounts must not log in")
}

// =============================================================================
// SCENARIO TESTS (over HTTP)
// =============================================================================

func TestAPI_Scenarios_ListAndLoad(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(http.MethodGet, "/api/scenarios", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []ScenarioDTO
	require.NoError(t, json.Unmarshal(body, &list))
	assert.NotEmpty(t, list)

	resp, body = f.do(http.MethodPost, "/api/scenarios/load",
		map[string]string{"scenario_id": "demo-merchants"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%s", body)

	// Seeded accounts can log in with the demo password.
	resp, _ = f.do(http.MethodPost, "/api/login", LoginRequest{
		Username: "techstore_owner", Password: demoPassword,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Scenarios_UnknownID_BadRequest(t *testing.T) {
	f := newAPIFixture(t)
	resp, _ := f.do(http.MethodPost, "/api/scenarios/load",
		map[string]string{"scenario_id": "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// RATE LIMITING TESTS
// =============================================================================

func TestAPI_ClickRateLimit_Throttles(t *testing.T) {
	// GIVEN: A router with a 1 rps / burst 2 click limiter
	// WHEN: Firing 5 immediate clicks
	// THEN: At most 2 pass, the rest get 429

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	handler := NewHandler(store, zap.NewNop())
	server := httptest.NewServer(NewRouter(handler, RouterOptions{
		ClickRatePerSecond: 1, ClickBurst: 2,
	}))
	t.Cleanup(server.Close)
	f := &apiFixture{t: t, server: server, handler: handler}

	cookie, _ := f.register("clicky")
	ad := f.createAd(cookie, CreateAdRequest{
		Title: "Hot", Type: "ECOMMERCE", TargetURL: "https://x.example",
	})
	resp, _ := f.do(http.MethodPost, fmt.Sprintf("/api/ads/%s/activate", ad.ID), nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	throttled := 0
	for i := 0; i < 5; i++ {
		resp, _ := f.do(http.MethodPost, fmt.Sprintf("/api/ads/%s/click", ad.ID), nil, nil)
		if resp.StatusCode == http.StatusTooManyRequests {
			throttled++
		}
	}
	assert.GreaterOrEqual(t, throttled, 3)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)
	resp, body := f.do(http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")
}

// mID converts a DTO id back to the domain type.
func mID(m MerchantDTO) ledger.MerchantID {
	return ledger.MerchantID(m.ID)
}
