/*
server.go - HTTP router setup and middleware

PURPOSE:
  Wires the chi router: CORS, panic recovery, request metrics, the
  click-rate limiter, and all API routes.

MIDDLEWARE ORDER:
  1. RequestID / RealIP
  2. Recoverer (panics become 500s, not crashes)
  3. CORS
  4. Request duration metrics
  Per-route: session auth, admin check, click rate limiting.

SEE ALSO:
  - handlers.go: Handler implementations
  - session.go: Auth middleware
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/warp/adboost/metrics"
)

// RouterOptions tunes request handling.
type RouterOptions struct {
	// ClickRatePerSecond caps public click traffic. Zero disables the limiter.
	ClickRatePerSecond float64
	ClickBurst         int
}

// NewRouter builds the chi router with all routes registered.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(requestMetrics)

	r.Get("/api/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Auth
	r.Post("/api/register", h.Register)
	r.Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)

	// Public click endpoint, rate limited.
	click := http.HandlerFunc(h.ClickAd)
	if opts.ClickRatePerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.ClickRatePerSecond), opts.ClickBurst)
		r.Post("/api/ads/{id}/click", throttle(limiter, click))
	} else {
		r.Post("/api/ads/{id}/click", click)
	}

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(h.Sessions.RequireAuth)

		r.Get("/api/user", h.CurrentUser)

		r.Get("/api/ads", h.ListAds)
		r.Post("/api/ads", h.CreateAd)
		r.Post("/api/ads/{id}/activate", h.ActivateAd)
		r.Post("/api/ads/{id}/pause", h.PauseAd)
		r.Post("/api/ads/{id}/resume", h.ResumeAd)
		r.Post("/api/ads/{id}/cancel", h.CancelAd)
		r.Delete("/api/ads/{id}", h.DeleteAd)

		r.Post("/api/recharge", h.Recharge)
		r.Get("/api/transactions", h.ListTransactions)
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(h.Sessions.RequireAuth)
		r.Use(RequireAdmin)

		r.Post("/api/admin/adjustments", h.AdminAdjust)
		r.Post("/api/admin/merchants/{id}/suspend", h.AdminSuspendMerchant)
		r.Delete("/api/admin/merchants/{id}", h.AdminDeleteMerchant)
		r.Post("/api/admin/tick", h.AdminTick)
	})

	// Demo scenarios
	r.Get("/api/scenarios", h.ListScenarios)
	r.Post("/api/scenarios/load", h.LoadScenario)
	r.Post("/api/scenarios/reset", h.ResetScenarios)

	return r
}

// throttle rejects requests over the limiter's budget with 429.
func throttle(limiter *rate.Limiter, next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			metrics.ClicksThrottled.Inc()
			writeError(w, http.StatusTooManyRequests, "Too many clicks, slow down", nil)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// requestMetrics records per-route request durations.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
