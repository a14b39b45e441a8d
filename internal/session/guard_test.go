package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditshare/creditshare/internal/logger"
	"github.com/creditshare/creditshare/internal/model"
	"github.com/creditshare/creditshare/internal/repository"
	"github.com/creditshare/creditshare/internal/security"
)

type stubResolver struct {
	identities map[string]*Identity
}

func (s *stubResolver) ResolveIdentity(credential string) (*Identity, error) {
	id, ok := s.identities[credential]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return id, nil
}

type stubAccounts struct {
	accounts map[string]*model.Account
	err      error
}

func (s *stubAccounts) GetByID(_ context.Context, id string) (*model.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

type recordedAlert struct {
	kind   string
	fields map[string]interface{}
}

type stubAlerter struct {
	mu     sync.Mutex
	alerts []recordedAlert
}

func (s *stubAlerter) Dispatch(kind string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, recordedAlert{kind: kind, fields: fields})
}

type guardFixture struct {
	clock    *fakeClock
	registry *Registry
	alerter  *stubAlerter
	resolver *stubResolver
	guard    *Guard
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()

	clock := newFakeClock()
	registry := newTestRegistry(clock)
	alerter := &stubAlerter{}
	resolver := &stubResolver{identities: map[string]*Identity{
		"admin-token":  {AccountID: "acc-admin", Email: "root@example.com", IssuedAt: clock.Now()},
		"user-token":   {AccountID: "acc-user", Email: "user@example.com", IssuedAt: clock.Now()},
		"rogue-token":  {AccountID: "acc-rogue", Email: "rogue@example.com", IssuedAt: clock.Now()},
		"orphan-token": {AccountID: "acc-missing", Email: "gone@example.com", IssuedAt: clock.Now()},
	}}
	accounts := &stubAccounts{accounts: map[string]*model.Account{
		"acc-admin": {ID: "acc-admin", Email: "Root@Example.com", Role: model.RoleAdmin, IsActive: true},
		"acc-user":  {ID: "acc-user", Email: "user@example.com", Role: model.RoleUser, IsActive: true},
		"acc-rogue": {ID: "acc-rogue", Email: "rogue@example.com", Role: model.RoleAdmin, IsActive: true},
	}}

	return &guardFixture{
		clock:    clock,
		registry: registry,
		alerter:  alerter,
		resolver: resolver,
		guard:    NewGuard(resolver, accounts, registry, alerter, "root@example.com", logger.NewNop()),
	}
}

var adminMeta = RequestMeta{SourceAddress: "10.0.0.1", ClientAgent: "firefox"}

func TestGuard_AuthorizeAdmin(t *testing.T) {
	f := newGuardFixture(t)

	account, err := f.guard.AuthorizeAdmin(context.Background(), "admin-token", adminMeta)
	require.NoError(t, err)
	assert.Equal(t, "acc-admin", account.ID)

	sess, ok := f.registry.Get("acc-admin")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", sess.SourceAddress)
	assert.Empty(t, f.alerter.alerts)
}

func TestGuard_RejectsBadCredentials(t *testing.T) {
	f := newGuardFixture(t)

	_, err := f.guard.AuthorizeAdmin(context.Background(), "garbage", adminMeta)
	assert.ErrorIs(t, err, security.ErrUnauthenticated)
	assert.NotErrorIs(t, err, security.ErrSessionExpired)

	_, err = f.guard.AuthorizeAdmin(context.Background(), "orphan-token", adminMeta)
	assert.ErrorIs(t, err, security.ErrUnauthenticated)
}

func TestGuard_LookupFailureIsNotAuthFailure(t *testing.T) {
	f := newGuardFixture(t)
	dbErr := errors.New("connection refused")
	f.guard.accounts = &stubAccounts{err: dbErr}

	_, err := f.guard.AuthorizeAdmin(context.Background(), "admin-token", adminMeta)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, security.ErrUnauthenticated)
	assert.NotErrorIs(t, err, security.ErrForbidden)
}

func TestGuard_RejectsNonAdminRole(t *testing.T) {
	f := newGuardFixture(t)

	_, err := f.guard.AuthorizeAdmin(context.Background(), "user-token", adminMeta)
	assert.ErrorIs(t, err, security.ErrForbidden)
	assert.Empty(t, f.alerter.alerts)
	assert.Equal(t, 0, f.registry.Len())
}

func TestGuard_RejectsAdminOutsideAllowList(t *testing.T) {
	f := newGuardFixture(t)

	_, err := f.guard.AuthorizeAdmin(context.Background(), "rogue-token", adminMeta)
	require.ErrorIs(t, err, security.ErrForbidden)

	require.Len(t, f.alerter.alerts, 1)
	assert.Equal(t, "unauthorized_admin_access", f.alerter.alerts[0].kind)
	assert.Equal(t, "rogue@example.com", f.alerter.alerts[0].fields["email"])
	assert.Equal(t, "10.0.0.1", f.alerter.alerts[0].fields["ip_address"])
	assert.Equal(t, 0, f.registry.Len())
}

func TestGuard_IdleSessionExpires(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	_, err := f.guard.AuthorizeAdmin(ctx, "admin-token", adminMeta)
	require.NoError(t, err)

	f.clock.Advance(29 * time.Minute)
	_, err = f.guard.AuthorizeAdmin(ctx, "admin-token", adminMeta)
	require.NoError(t, err)

	f.clock.Advance(31 * time.Minute)
	_, err = f.guard.AuthorizeAdmin(ctx, "admin-token", adminMeta)
	require.ErrorIs(t, err, security.ErrSessionExpired)
	_, ok := f.registry.Get("acc-admin")
	assert.False(t, ok)

	// Still rejected until a new credential is issued.
	_, err = f.guard.AuthorizeAdmin(ctx, "admin-token", adminMeta)
	require.ErrorIs(t, err, security.ErrSessionExpired)

	f.clock.Advance(time.Second)
	f.resolver.identities["fresh-token"] = &Identity{AccountID: "acc-admin", Email: "root@example.com", IssuedAt: f.clock.Now()}
	_, err = f.guard.AuthorizeAdmin(ctx, "fresh-token", adminMeta)
	require.NoError(t, err)
}

func TestGuard_IsSuperAdmin(t *testing.T) {
	f := newGuardFixture(t)

	tests := []struct {
		name    string
		account *model.Account
		want    bool
	}{
		{"allow-listed admin", &model.Account{Email: " ROOT@example.com", Role: model.RoleAdmin}, true},
		{"allow-listed email without role", &model.Account{Email: "root@example.com", Role: model.RoleUser}, false},
		{"other admin", &model.Account{Email: "other@example.com", Role: model.RoleAdmin}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.guard.IsSuperAdmin(tt.account))
		})
	}

	empty := NewGuard(f.resolver, &stubAccounts{}, f.registry, nil, "", logger.NewNop())
	assert.False(t, empty.IsSuperAdmin(&model.Account{Email: "", Role: model.RoleAdmin}))
}
