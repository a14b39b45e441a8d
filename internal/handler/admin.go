package handler

import (
	"errors"
	"net/http"

	"github.com/creditshare/creditshare/internal/middleware"
	"github.com/creditshare/creditshare/internal/model"
	"github.com/creditshare/creditshare/internal/repository"
	"github.com/creditshare/creditshare/internal/security"
	"github.com/creditshare/creditshare/internal/service"
)

// actor builds the audited caller of an admin endpoint. RequireAdmin has
// already placed the account in the context.
func actor(r *http.Request) service.Actor {
	return service.Actor{
		Account: middleware.GetAccount(r.Context()),
		Meta:    middleware.RequestMeta(r),
	}
}

// pagination reads limit and offset, writing a 400 on malformed values
func pagination(w http.ResponseWriter, r *http.Request, defaultLimit int) (int, int, bool) {
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
		return 0, 0, false
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "offset must be a non-negative integer")
		return 0, 0, false
	}
	return limit, offset, true
}

// AdminListUsers handles GET /api/v1/admin/users
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r, 100)
	if !ok {
		return
	}

	users, err := h.adminSvc.ListUsers(r.Context(), actor(r), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

type adjustCreditsRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// AdminAdjustCredits handles PUT /api/v1/admin/users/{id}/credits
func (h *Handler) AdminAdjustCredits(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req adjustCreditsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	account, err := h.adminSvc.AdjustCredits(r.Context(), actor(r), userID, req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "validation_error", "Amount must be non-zero")
		case errors.Is(err, repository.ErrInsufficientCredits):
			writeError(w, http.StatusBadRequest, "insufficient_credits", "Adjustment would make the balance negative")
		case errors.Is(err, security.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "User not found")
		default:
			h.log.Error().Err(err).Str("user_id", userID).Msg("failed to adjust credits")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to adjust credits")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Credits updated successfully",
		"user_id":    account.ID,
		"newBalance": account.Credits,
	})
}

// AdminListSessions handles GET /api/v1/admin/sessions
func (h *Handler) AdminListSessions(w http.ResponseWriter, r *http.Request) {
	views := h.adminSvc.ActiveSessions(r.Context(), actor(r))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"activeSessions": len(views),
		"sessions":       views,
	})
}

// AdminForceLogout handles DELETE /api/v1/admin/sessions/{id}
func (h *Handler) AdminForceLogout(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	if err := h.adminSvc.ForceLogout(r.Context(), actor(r), accountID); err != nil {
		if errors.Is(err, security.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Admin session not found")
			return
		}
		h.log.Error().Err(err).Str("account_id", accountID).Msg("failed to force logout")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to end session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Admin session ended",
		"account_id": accountID,
	})
}

// AdminCleanupSessions handles POST /api/v1/admin/sessions/cleanup
func (h *Handler) AdminCleanupSessions(w http.ResponseWriter, r *http.Request) {
	removed := h.adminSvc.CleanupSessions(r.Context(), actor(r))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Expired sessions cleaned up",
		"removed": removed,
	})
}

// AdminTestAlerts handles POST /api/v1/admin/alerts/test
func (h *Handler) AdminTestAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.adminSvc.TestAlerts(r.Context(), actor(r)))
}

// AdminAuditLogs handles GET /api/v1/admin/audit-logs
func (h *Handler) AdminAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r, 100)
	if !ok {
		return
	}
	filter := model.AuditFilter{
		ActorID: r.URL.Query().Get("user_id"),
		Action:  r.URL.Query().Get("action"),
	}

	entries, err := h.adminSvc.AuditLogs(r.Context(), actor(r), filter, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to query audit logs")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to query audit logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":   entries,
		"count":  len(entries),
		"limit":  limit,
		"offset": offset,
	})
}

// AdminUserActivity handles GET /api/v1/admin/users/{id}/activity
func (h *Handler) AdminUserActivity(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	hours, err := queryInt(r, "hours", 24)
	if err != nil || hours < 1 {
		writeError(w, http.StatusBadRequest, "validation_error", "hours must be a positive integer")
		return
	}

	entries, err := h.adminSvc.UserActivity(r.Context(), actor(r), userID, hours)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to load user activity")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load user activity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    userID,
		"hours":      hours,
		"activities": entries,
	})
}
