/*
session.go - Cookie sessions and the authentication middleware

PURPOSE:
  A session identifies a merchant. Tokens are opaque random IDs held in
  an HTTP-only cookie and mapped to the merchant in memory. The
  middleware resolves the session and carries the authenticated merchant
  id through the request context - core operations take it as a
  parameter, never from process-wide state.
*/
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/adboost/ledger"
	"github.com/warp/adboost/merchant"
)

const (
	sessionCookie = "adboost_session"
	sessionTTL    = 24 * time.Hour
)

// =============================================================================
// SESSION STORE
// =============================================================================

type session struct {
	MerchantID ledger.MerchantID
	Role       merchant.Role
	ExpiresAt  time.Time
}

type Sessions struct {
	mu      sync.RWMutex
	entries map[string]session
}

func NewSessions() *Sessions {
	return &Sessions{entries: make(map[string]session)}
}

// Create issues a new session token for a merchant.
func (s *Sessions) Create(merchantID ledger.MerchantID, role merchant.Role) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.entries[token] = session{
		MerchantID: merchantID,
		Role:       role,
		ExpiresAt:  time.Now().Add(sessionTTL),
	}
	s.mu.Unlock()
	return token
}

// Destroy invalidates a session token.
func (s *Sessions) Destroy(token string) {
	s.mu.Lock()
	delete(s.entries, token)
	s.mu.Unlock()
}

func (s *Sessions) lookup(token string) (session, bool) {
	s.mu.RLock()
	sess, ok := s.entries[token]
	s.mu.RUnlock()
	if !ok {
		return session{}, false
	}
	if time.Now().After(sess.ExpiresAt) {
		s.Destroy(token)
		return session{}, false
	}
	return sess, true
}

// =============================================================================
// REQUEST CONTEXT
// =============================================================================

type contextKey int

const (
	merchantIDKey contextKey = iota
	roleKey
)

// MerchantIDFrom returns the authenticated merchant id from the request
// context, if any.
func MerchantIDFrom(ctx context.Context) (ledger.MerchantID, bool) {
	id, ok := ctx.Value(merchantIDKey).(ledger.MerchantID)
	return id, ok
}

func roleFrom(ctx context.Context) merchant.Role {
	role, _ := ctx.Value(roleKey).(merchant.Role)
	return role
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// RequireAuth resolves the session cookie and injects the merchant id into
// the request context. Unauthenticated requests get a 401.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		sess, ok := s.lookup(cookie.Value)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		ctx := context.WithValue(r.Context(), merchantIDKey, sess.MerchantID)
		ctx = context.WithValue(ctx, roleKey, sess.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin allows only admin sessions through. Must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if roleFrom(r.Context()) != merchant.RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
