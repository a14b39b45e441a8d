package router

import (
	"net/http"
	"time"

	"github.com/creditshare/creditshare/internal/handler"
	"github.com/creditshare/creditshare/internal/middleware"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, authn middleware.Authenticator, guard middleware.AdminAuthorizer) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (no auth required)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"CreditShare API v1","version":"` + handler.Version + `"}`))
	})

	// Request-level limiter in front of the per-address login throttle
	loginRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Name:   "login",
		Limit:  20,
		Window: 15 * time.Minute,
		KeyFn:  middleware.IPKey,
	})
	mux.Handle("POST /api/v1/auth/login", loginRateLimit(http.HandlerFunc(h.Login)))

	authMw := mw.Auth(authn)
	mux.Handle("POST /api/v1/auth/logout", authMw(http.HandlerFunc(h.Logout)))
	mux.Handle("GET /api/v1/users/me", authMw(http.HandlerFunc(h.GetCurrentUser)))

	// Admin routes: every request passes the privileged access guard
	adminMw := mw.RequireAdmin(guard)
	adminRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Name:   "admin",
		Limit:  60,
		Window: time.Minute,
		KeyFn:  middleware.IPKey,
	})
	admin := func(fn http.HandlerFunc) http.Handler {
		return adminRateLimit(adminMw(fn))
	}

	mux.Handle("GET /api/v1/admin/sessions", admin(h.AdminListSessions))
	mux.Handle("DELETE /api/v1/admin/sessions/{id}", admin(h.AdminForceLogout))
	mux.Handle("POST /api/v1/admin/sessions/cleanup", admin(h.AdminCleanupSessions))
	mux.Handle("POST /api/v1/admin/alerts/test", admin(h.AdminTestAlerts))
	mux.Handle("GET /api/v1/admin/audit-logs", admin(h.AdminAuditLogs))
	mux.Handle("GET /api/v1/admin/users", admin(h.AdminListUsers))
	mux.Handle("GET /api/v1/admin/users/{id}/activity", admin(h.AdminUserActivity))
	mux.Handle("PUT /api/v1/admin/users/{id}/credits", admin(h.AdminAdjustCredits))

	// Apply middleware stack
	var handler http.Handler = mux

	handler = mw.CORS(handler)

	// Security headers
	handler = mw.SecurityHeaders(handler)

	// Request logging
	handler = mw.Logger(handler)

	// Client address resolution; headers are honoured only from trusted proxies
	handler = mw.RealIP(handler)

	// Request ID
	handler = mw.RequestID(handler)

	// Panic recovery (outermost)
	handler = mw.Recover(handler)

	return handler
}
