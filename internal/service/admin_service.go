package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creditshare/creditshare/internal/audit"
	"github.com/creditshare/creditshare/internal/model"
	"github.com/creditshare/creditshare/internal/repository"
	"github.com/creditshare/creditshare/internal/security"
	"github.com/creditshare/creditshare/internal/session"
)

// ErrInvalidAmount is returned for a zero credit adjustment
var ErrInvalidAmount = errors.New("credit adjustment must be non-zero")

// AlertTester runs the channel diagnostics. Implemented by alert.Dispatcher.
type AlertTester interface {
	TestAll(ctx context.Context) map[string]string
}

// AdminService implements the administrative operations. Callers must
// have passed session.Guard; every operation is audited.
type AdminService struct {
	accounts AccountStore
	registry *session.Registry
	alerts   AlertTester
	trail    *audit.Trail
	now      func() time.Time
}

// NewAdminService creates a new AdminService
func NewAdminService(accounts AccountStore, registry *session.Registry, alerts AlertTester, trail *audit.Trail) *AdminService {
	return &AdminService{
		accounts: accounts,
		registry: registry,
		alerts:   alerts,
		trail:    trail,
		now:      time.Now,
	}
}

// Actor identifies the administrator performing an operation
type Actor struct {
	Account *model.Account
	Meta    session.RequestMeta
}

func (s *AdminService) audit(ctx context.Context, actor Actor, action, resourceType, resourceID string, details map[string]interface{}) {
	s.trail.Record(ctx, audit.Entry{
		Actor:        actor.Account,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    actor.Meta.SourceAddress,
		UserAgent:    actor.Meta.ClientAgent,
	})
}

// ListUsers returns a page of accounts
func (s *AdminService) ListUsers(ctx context.Context, actor Actor, limit, offset int) ([]*model.Account, error) {
	accounts, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, model.AuditActionViewUsers, "", "", map[string]interface{}{"count": len(accounts)})
	return accounts, nil
}

// AdjustCredits adds amount to a user's balance
func (s *AdminService) AdjustCredits(ctx context.Context, actor Actor, userID string, amount int, reason string) (*model.Account, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if reason == "" {
		reason = "Admin adjustment"
	}

	account, err := s.accounts.AdjustCredits(ctx, userID, amount, model.TransactionAdminAdjustment, reason)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", security.ErrNotFound, userID)
		}
		return nil, err
	}

	s.audit(ctx, actor, model.AuditActionUpdateCredits, "user", userID, map[string]interface{}{
		"amount":      amount,
		"reason":      reason,
		"new_balance": account.Credits,
	})
	return account, nil
}

// ActiveSessions returns the inspection view of live admin sessions
func (s *AdminService) ActiveSessions(ctx context.Context, actor Actor) []session.SessionView {
	views := s.registry.Active()
	s.audit(ctx, actor, model.AuditActionViewSessions, "", "", map[string]interface{}{"count": len(views)})
	return views
}

// ForceLogout ends the admin session of accountID
func (s *AdminService) ForceLogout(ctx context.Context, actor Actor, accountID string) error {
	if !s.registry.ForceLogout(accountID) {
		return fmt.Errorf("%w: no active session for %s", security.ErrNotFound, accountID)
	}
	s.audit(ctx, actor, model.AuditActionForceLogout, "admin_session", accountID, nil)
	return nil
}

// CleanupSessions evicts idle sessions and returns how many were removed
func (s *AdminService) CleanupSessions(ctx context.Context, actor Actor) int {
	removed := s.registry.CleanupExpired()
	s.audit(ctx, actor, model.AuditActionCleanupSessions, "", "", map[string]interface{}{"removed": removed})
	return removed
}

// AlertTestResult is the outcome of an alert channel diagnostic
type AlertTestResult struct {
	Channels  map[string]string `json:"channels"`
	Timestamp time.Time         `json:"timestamp"`
}

// TestAlerts sends a test event on every alert channel
func (s *AdminService) TestAlerts(ctx context.Context, actor Actor) *AlertTestResult {
	result := &AlertTestResult{
		Channels:  s.alerts.TestAll(ctx),
		Timestamp: s.now().UTC(),
	}
	details := make(map[string]interface{}, len(result.Channels))
	for name, outcome := range result.Channels {
		details[name] = outcome
	}
	s.audit(ctx, actor, model.AuditActionTestAlerts, "", "", details)
	return result
}

// AuditLogs queries the audit trail
func (s *AdminService) AuditLogs(ctx context.Context, actor Actor, filter model.AuditFilter, limit, offset int) ([]*model.AuditLog, error) {
	entries, err := s.trail.Query(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, model.AuditActionViewAuditLogs, "", "", map[string]interface{}{
		"user_id": filter.ActorID,
		"action":  filter.Action,
		"count":   len(entries),
	})
	return entries, nil
}

// UserActivity returns a user's audit entries from the trailing window
func (s *AdminService) UserActivity(ctx context.Context, actor Actor, userID string, hours int) ([]*model.AuditLog, error) {
	entries, err := s.trail.RecentActivity(ctx, userID, hours)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, model.AuditActionViewUserActivity, "user", userID, map[string]interface{}{
		"hours": hours,
		"count": len(entries),
	})
	return entries, nil
}
