// Package audit records and queries the append-only trail of privileged actions.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/creditshare/creditshare/internal/logger"
	"github.com/creditshare/creditshare/internal/model"
	"github.com/creditshare/creditshare/internal/repository"
	"github.com/creditshare/creditshare/internal/security"
)

const (
	// DefaultLimit is used when a query does not set a positive limit
	DefaultLimit = 100
	// MaxLimit caps a single page of results
	MaxLimit = 1000
)

// Store is the durable backing for audit entries. Implemented by
// repository.AuditRepository.
type Store interface {
	Create(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter model.AuditFilter, limit, offset int) ([]*model.AuditLog, error)
}

// Entry describes a privileged action about to be recorded
type Entry struct {
	Actor        *model.Account
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]interface{}
	IPAddress    string
	UserAgent    string
}

// Trail writes audit entries best-effort and serves newest-first queries.
type Trail struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

// NewTrail creates a Trail over store
func NewTrail(store Store, log *logger.Logger) *Trail {
	return &Trail{
		store: store,
		log:   log.WithComponent("audit"),
		now:   time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (t *Trail) WithClock(now func() time.Time) *Trail {
	t.now = now
	return t
}

// Record persists e. A failed write is logged as a persistence failure and
// never reaches the caller: the action being audited has already happened.
func (t *Trail) Record(ctx context.Context, e Entry) {
	entry := t.build(e)

	if err := t.write(ctx, entry); err != nil {
		t.log.Error().
			Err(err).
			Str("failure", "persistence_failure").
			Str("action", entry.Action).
			Str("actor_id", entry.ActorID).
			Msg("failed to write audit log")
	}

	t.log.AuditLog(entry.ActorEmail, entry.ActorRole, entry.Action, e.ResourceType, e.ResourceID, entry.IPAddress, entry.Details)
}

func (t *Trail) write(ctx context.Context, entry *model.AuditLog) error {
	if err := t.store.Create(ctx, entry); err != nil {
		return fmt.Errorf("%w: %v", security.ErrPersistenceFailure, err)
	}
	return nil
}

func (t *Trail) build(e Entry) *model.AuditLog {
	entry := &model.AuditLog{
		ID:        repository.NewID("aud"),
		Action:    e.Action,
		Details:   e.Details,
		IPAddress: e.IPAddress,
		Timestamp: t.now().UTC(),
	}
	if e.Actor != nil {
		entry.ActorID = e.Actor.ID
		entry.ActorEmail = e.Actor.Email
		entry.ActorRole = string(e.Actor.Role)
	}
	if e.ResourceType != "" {
		entry.ResourceType = &e.ResourceType
	}
	if e.ResourceID != "" {
		entry.ResourceID = &e.ResourceID
	}
	if e.UserAgent != "" {
		entry.UserAgent = &e.UserAgent
	}
	return entry
}

// Query returns entries matching filter, newest first
func (t *Trail) Query(ctx context.Context, filter model.AuditFilter, limit, offset int) ([]*model.AuditLog, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := t.store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	return entries, nil
}

// RecentActivity returns the entries for accountID within the trailing
// window of the given number of hours.
func (t *Trail) RecentActivity(ctx context.Context, accountID string, hours int) ([]*model.AuditLog, error) {
	if hours <= 0 {
		hours = 24
	}
	since := t.now().Add(-time.Duration(hours) * time.Hour)

	return t.Query(ctx, model.AuditFilter{ActorID: accountID, Since: &since}, MaxLimit, 0)
}
