package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creditshare/creditshare/internal/logger"
	"github.com/creditshare/creditshare/internal/model"
	"github.com/creditshare/creditshare/internal/repository"
	"github.com/creditshare/creditshare/internal/security"
)

// Identity is what a bearer credential resolves to.
type Identity struct {
	AccountID string
	Email     string
	IssuedAt  time.Time
}

// IdentityResolver resolves a bearer credential. Implemented by auth.TokenService.
type IdentityResolver interface {
	ResolveIdentity(credential string) (*Identity, error)
}

// AccountLookup loads accounts by id. Implemented by repository.AccountRepository.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*model.Account, error)
}

// Alerter receives security-relevant events. Implemented by alert.Dispatcher.
type Alerter interface {
	Dispatch(kind string, fields map[string]interface{})
}

// RequestMeta carries the client details of a privileged request.
type RequestMeta struct {
	SourceAddress string
	ClientAgent   string
}

// Guard is the authorization check run by every administrative endpoint.
type Guard struct {
	resolver   IdentityResolver
	accounts   AccountLookup
	registry   *Registry
	alerter    Alerter
	superAdmin string
	log        *logger.Logger
}

// NewGuard creates a Guard. superAdminEmail is the only identity that may
// ever exercise administrative capability.
func NewGuard(resolver IdentityResolver, accounts AccountLookup, registry *Registry, alerter Alerter, superAdminEmail string, log *logger.Logger) *Guard {
	return &Guard{
		resolver:   resolver,
		accounts:   accounts,
		registry:   registry,
		alerter:    alerter,
		superAdmin: normalizeEmail(superAdminEmail),
		log:        log.WithComponent("admin_guard"),
	}
}

// IsSuperAdmin reports whether account is the allow-listed administrator.
// Both the administrative role and the allow-listed identity are required.
func (g *Guard) IsSuperAdmin(account *model.Account) bool {
	return account.IsAdmin() && g.superAdmin != "" && normalizeEmail(account.Email) == g.superAdmin
}

// AuthorizeAdmin resolves the credential, enforces the admin role, the
// single-admin allow-list and the inactivity timeout, then refreshes the
// session. Errors match security.ErrUnauthenticated (including
// ErrSessionExpired) or security.ErrForbidden.
func (g *Guard) AuthorizeAdmin(ctx context.Context, credential string, meta RequestMeta) (*model.Account, error) {
	identity, err := g.resolver.ResolveIdentity(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", security.ErrUnauthenticated, err)
	}

	account, err := g.accounts.GetByID(ctx, identity.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: account not found", security.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if !account.IsAdmin() {
		return nil, security.ErrForbidden
	}

	if !g.IsSuperAdmin(account) {
		g.log.SecurityEvent("unauthorized_admin_access", account.Email, meta.SourceAddress)
		if g.alerter != nil {
			g.alerter.Dispatch("unauthorized_admin_access", map[string]interface{}{
				"email":      account.Email,
				"ip_address": meta.SourceAddress,
			})
		}
		return nil, security.ErrForbidden
	}

	if _, err := g.registry.Touch(account.ID, identity.IssuedAt, meta.SourceAddress, meta.ClientAgent); err != nil {
		g.log.Warn().Str("user_id", account.ID).Msg("admin session timed out")
		return nil, err
	}

	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
