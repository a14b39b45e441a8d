package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/creditshare/creditshare/internal/config"
	"github.com/creditshare/creditshare/internal/logger"
	"github.com/creditshare/creditshare/internal/model"
	"github.com/creditshare/creditshare/internal/service"
	"github.com/creditshare/creditshare/internal/session"
)

// AuthAPI is the login surface. Implemented by service.AuthService.
type AuthAPI interface {
	Login(ctx context.Context, req service.LoginRequest) (*service.LoginResponse, error)
	Logout(ctx context.Context, account *model.Account, meta session.RequestMeta)
}

// AdminAPI is the administrative surface. Implemented by service.AdminService.
type AdminAPI interface {
	ListUsers(ctx context.Context, actor service.Actor, limit, offset int) ([]*model.Account, error)
	AdjustCredits(ctx context.Context, actor service.Actor, userID string, amount int, reason string) (*model.Account, error)
	ActiveSessions(ctx context.Context, actor service.Actor) []session.SessionView
	ForceLogout(ctx context.Context, actor service.Actor, accountID string) error
	CleanupSessions(ctx context.Context, actor service.Actor) int
	TestAlerts(ctx context.Context, actor service.Actor) *service.AlertTestResult
	AuditLogs(ctx context.Context, actor service.Actor, filter model.AuditFilter, limit, offset int) ([]*model.AuditLog, error)
	UserActivity(ctx context.Context, actor service.Actor, userID string, hours int) ([]*model.AuditLog, error)
}

// HealthChecker is a dependency probed by the health endpoints
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependency is a named health check. Required dependencies gate readiness.
type Dependency struct {
	Name     string
	Checker  HealthChecker
	Required bool
}

// Handler holds all HTTP handlers
type Handler struct {
	log      *logger.Logger
	cfg      *config.Config
	authSvc  AuthAPI
	adminSvc AdminAPI
	deps     []Dependency
}

// New creates a new Handler instance
func New(log *logger.Logger, cfg *config.Config, authSvc AuthAPI, adminSvc AdminAPI, deps ...Dependency) *Handler {
	return &Handler{
		log:      log.WithComponent("handler"),
		cfg:      cfg,
		authSvc:  authSvc,
		adminSvc: adminSvc,
		deps:     deps,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
