package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/creditshare/creditshare/internal/alert"
	"github.com/creditshare/creditshare/internal/audit"
	"github.com/creditshare/creditshare/internal/auth"
	"github.com/creditshare/creditshare/internal/logger"
	"github.com/creditshare/creditshare/internal/model"
	"github.com/creditshare/creditshare/internal/repository"
	"github.com/creditshare/creditshare/internal/security"
	"github.com/creditshare/creditshare/internal/session"
)

// Common service errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is deactivated")
)

// AccountStore is the account persistence used by the services.
// Implemented by repository.AccountRepository.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	List(ctx context.Context, limit, offset int) ([]*model.Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	AdjustCredits(ctx context.Context, id string, amount int, txType, description string) (*model.Account, error)
}

// LoginNotifier sends the out-of-band admin login notification.
// Implemented by alert.AdminLoginNotifier.
type LoginNotifier interface {
	Notify(accountEmail, ipAddress string)
}

// AuthService handles login and logout
type AuthService struct {
	accounts AccountStore
	tokens   *auth.TokenService
	throttle *security.LoginThrottle
	detector *security.SuspiciousLoginDetector
	registry *session.Registry
	guard    *session.Guard
	alerts   session.Alerter
	notifier LoginNotifier
	trail    *audit.Trail
	log      *logger.Logger
}

// AuthDeps groups the collaborators of AuthService
type AuthDeps struct {
	Accounts AccountStore
	Tokens   *auth.TokenService
	Throttle *security.LoginThrottle
	Detector *security.SuspiciousLoginDetector
	Registry *session.Registry
	Guard    *session.Guard
	Alerts   session.Alerter
	Notifier LoginNotifier
	Trail    *audit.Trail
}

// NewAuthService creates a new AuthService
func NewAuthService(deps AuthDeps, log *logger.Logger) *AuthService {
	return &AuthService{
		accounts: deps.Accounts,
		tokens:   deps.Tokens,
		throttle: deps.Throttle,
		detector: deps.Detector,
		registry: deps.Registry,
		guard:    deps.Guard,
		alerts:   deps.Alerts,
		notifier: deps.Notifier,
		trail:    deps.Trail,
		log:      log.WithComponent("auth_service"),
	}
}

// LoginRequest contains the data for logging in
type LoginRequest struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	*auth.AccessToken
	Account *model.Account `json:"user"`
}

// Login authenticates an account. A throttled address is rejected with a
// *security.RateLimitError before the credentials are looked at.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.throttle.Check(req.IPAddress); err != nil {
		s.log.SecurityEvent("login_throttled", req.Email, req.IPAddress)
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load account: %w", err)
		}
		return nil, s.loginFailed(ctx, &model.Account{Email: email}, req, "unknown_email")
	}

	match, err := auth.VerifyPassword(req.Password, account.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", account.ID).Msg("failed to verify password")
	}
	if !match {
		return nil, s.loginFailed(ctx, account, req, "invalid_password")
	}

	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	if err := s.throttle.RecordAttempt(req.IPAddress, true); err != nil {
		return nil, err
	}

	if auth.NeedsRehash(account.PasswordHash) {
		s.rehash(ctx, account, req.Password)
	}

	newAddress := s.detector.RecordAndCheck(email, req.IPAddress)

	if s.guard.IsSuperAdmin(account) {
		s.registry.Start(account.ID, req.IPAddress, req.UserAgent)

		kind := alert.KindAdminLogin
		if newAddress {
			kind = alert.KindAdminLoginNewIP
		}
		s.alerts.Dispatch(kind, map[string]interface{}{
			"admin_email": account.Email,
			"ip_address":  req.IPAddress,
			"new_ip":      newAddress,
		})
		s.notifier.Notify(account.Email, req.IPAddress)
	} else if newAddress {
		s.log.SecurityEvent("suspicious_login", account.Email, req.IPAddress)
	}

	token, err := s.tokens.GenerateAccessToken(account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	s.trail.Record(ctx, audit.Entry{
		Actor:        account,
		Action:       model.AuditActionLogin,
		ResourceType: "user",
		ResourceID:   account.ID,
		Details:      map[string]interface{}{"suspicious": newAddress},
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	})
	s.log.Info().Str("user_id", account.ID).Str("ip_address", req.IPAddress).Msg("user logged in")

	return &LoginResponse{AccessToken: token, Account: account}, nil
}

// loginFailed records a failed attempt and returns the error for the
// caller. The attempt that reaches the failure threshold raises an alert.
func (s *AuthService) loginFailed(ctx context.Context, actor *model.Account, req LoginRequest, reason string) error {
	if err := s.throttle.RecordAttempt(req.IPAddress, false); err != nil {
		return err
	}

	failures := s.throttle.RecentFailures(req.IPAddress)
	if failures == s.throttle.MaxFailures() {
		s.alerts.Dispatch(alert.KindFailedLogin, map[string]interface{}{
			"email":           actor.Email,
			"ip_address":      req.IPAddress,
			"failed_attempts": failures,
		})
	}

	s.log.SecurityEvent("login_failed", actor.Email, req.IPAddress)
	s.trail.Record(ctx, audit.Entry{
		Actor:     actor,
		Action:    model.AuditActionLoginFailed,
		Details:   map[string]interface{}{"reason": reason, "failed_attempts": failures},
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	return ErrInvalidCredentials
}

func (s *AuthService) rehash(ctx context.Context, account *model.Account, password string) {
	hash, err := auth.HashPassword(password, nil)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", account.ID).Msg("failed to rehash password")
		return
	}
	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		s.log.Error().Err(err).Str("user_id", account.ID).Msg("failed to store rehashed password")
		return
	}
	account.PasswordHash = hash
}

// Logout ends the caller's admin session, if any, and audits the logout.
func (s *AuthService) Logout(ctx context.Context, account *model.Account, meta session.RequestMeta) {
	if account.IsAdmin() {
		s.registry.ForceLogout(account.ID)
	}
	s.trail.Record(ctx, audit.Entry{
		Actor:        account,
		Action:       model.AuditActionLogout,
		ResourceType: "user",
		ResourceID:   account.ID,
		IPAddress:    meta.SourceAddress,
		UserAgent:    meta.ClientAgent,
	})
}

// Authenticate resolves a bearer credential to its account
func (s *AuthService) Authenticate(ctx context.Context, credential string) (*model.Account, error) {
	identity, err := s.tokens.ResolveIdentity(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", security.ErrUnauthenticated, err)
	}
	account, err := s.accounts.GetByID(ctx, identity.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: account not found", security.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if !account.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", security.ErrUnauthenticated)
	}
	return account, nil
}
