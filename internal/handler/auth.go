package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/creditshare/creditshare/internal/middleware"
	"github.com/creditshare/creditshare/internal/security"
	"github.com/creditshare/creditshare/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Email and password are required")
		return
	}

	meta := middleware.RequestMeta(r)
	resp, err := h.authSvc.Login(r.Context(), service.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: meta.SourceAddress,
		UserAgent: meta.ClientAgent,
	})
	if err != nil {
		var rateErr *security.RateLimitError
		switch {
		case errors.As(err, &rateErr):
			minutes := int(math.Ceil(rateErr.RetryAfter.Minutes()))
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate_limited",
				fmt.Sprintf("Too many failed login attempts. Please try again in %d minutes.", minutes))
		case errors.Is(err, service.ErrInvalidCredentials):
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Incorrect email or password")
		case errors.Is(err, service.ErrAccountInactive):
			writeError(w, http.StatusForbidden, "account_inactive", "Your account is not active.")
		default:
			h.log.Error().Err(err).Msg("login failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	h.authSvc.Logout(r.Context(), account, middleware.RequestMeta(r))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logged out successfully",
	})
}

// GetCurrentUser handles GET /api/v1/users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, account)
}
