package session

import (
	"sort"
	"sync"
	"time"

	"github.com/creditshare/creditshare/internal/security"
)

// AdminSession is the activity record of one authenticated administrator.
type AdminSession struct {
	AccountID      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	// SourceAddress and ClientAgent hold the most recent request's values.
	// Sessions are not pinned to the login address, so an administrator can
	// roam between networks at the cost of some hijack resistance.
	SourceAddress string
	ClientAgent   string
}

// SessionView is the operator-facing projection of an AdminSession.
type SessionView struct {
	AccountID            string    `json:"accountId"`
	IPAddress            string    `json:"ipAddress"`
	UserAgent            string    `json:"userAgent"`
	CreatedAt            time.Time `json:"createdAt"`
	LastActivity         time.Time `json:"lastActivity"`
	MinutesSinceActivity int       `json:"minutesSinceActivity"`
	MinutesUntilExpiry   int       `json:"expiresInMinutes"`
}

// slot holds the state of one account. endedAt records when the last
// session ended by expiry or forced logout; credentials issued before it
// cannot lazily reopen a session.
type slot struct {
	mu      sync.Mutex
	session *AdminSession
	endedAt time.Time
	// dead is set once the slot has been dropped from the table.
	dead bool
}

// Registry is the in-memory table of live administrative sessions.
//
// The table lock covers slot lookup only. Every read or write of a
// session happens under the owning slot's lock, so work for distinct
// accounts proceeds in parallel.
type Registry struct {
	mu    sync.Mutex
	slots map[string]*slot

	timeout time.Duration
	// tombstoneTTL bounds how long endedAt markers are retained; it should
	// match the bearer credential lifetime.
	tombstoneTTL time.Duration
	now          func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry(timeout, tombstoneTTL time.Duration) *Registry {
	return &Registry{
		slots:        make(map[string]*slot),
		timeout:      timeout,
		tombstoneTTL: tombstoneTTL,
		now:          time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Timeout returns the inactivity timeout
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

func (r *Registry) slotFor(accountID string) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[accountID]
	if !ok {
		s = &slot{}
		r.slots[accountID] = s
	}
	return s
}

// lock returns the live slot for accountID with its lock held.
func (r *Registry) lock(accountID string) *slot {
	for {
		s := r.slotFor(accountID)
		s.mu.Lock()
		if !s.dead {
			return s
		}
		s.mu.Unlock()
	}
}

func (r *Registry) snapshot() map[string]*slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*slot, len(r.slots))
	for id, s := range r.slots {
		out[id] = s
	}
	return out
}

// Start opens a fresh session for accountID, replacing any existing one.
// Called on successful administrative login.
func (r *Registry) Start(accountID, sourceAddress, clientAgent string) {
	s := r.lock(accountID)
	defer s.mu.Unlock()

	now := r.now()
	s.session = &AdminSession{
		AccountID:      accountID,
		CreatedAt:      now,
		LastActivityAt: now,
		SourceAddress:  sourceAddress,
		ClientAgent:    clientAgent,
	}
	s.endedAt = time.Time{}
}

// Touch validates and refreshes the session for accountID on a privileged
// request. An idle-expired session is evicted and ErrSessionExpired is
// returned. A missing session is created lazily, unless the caller's
// credential was issued before the previous session ended.
func (r *Registry) Touch(accountID string, credentialIssuedAt time.Time, sourceAddress, clientAgent string) (*AdminSession, error) {
	s := r.lock(accountID)
	defer s.mu.Unlock()

	now := r.now()

	if s.session != nil && r.expired(s.session, now) {
		s.session = nil
		s.endedAt = now
		return nil, security.ErrSessionExpired
	}

	if s.session == nil {
		if !s.endedAt.IsZero() && !credentialIssuedAt.After(s.endedAt) {
			return nil, security.ErrSessionExpired
		}
		s.session = &AdminSession{
			AccountID: accountID,
			CreatedAt: now,
		}
		s.endedAt = time.Time{}
	}

	s.session.LastActivityAt = now
	s.session.SourceAddress = sourceAddress
	s.session.ClientAgent = clientAgent

	clone := *s.session
	return &clone, nil
}

// Get returns a copy of the live session for accountID. An expired
// session is evicted and reported as absent.
func (r *Registry) Get(accountID string) (*AdminSession, bool) {
	s := r.lock(accountID)
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, false
	}
	now := r.now()
	if r.expired(s.session, now) {
		s.session = nil
		s.endedAt = now
		return nil, false
	}
	clone := *s.session
	return &clone, true
}

// ForceLogout removes the session for accountID unconditionally. It
// reports whether a session was present.
func (r *Registry) ForceLogout(accountID string) bool {
	s := r.lock(accountID)
	defer s.mu.Unlock()

	existed := s.session != nil
	s.session = nil
	s.endedAt = r.now()
	return existed
}

// CleanupExpired evicts every session idle beyond the timeout and returns
// how many were removed. End markers older than the tombstone TTL are
// dropped along with their slots.
func (r *Registry) CleanupExpired() int {
	removed := 0

	for id, s := range r.snapshot() {
		s.mu.Lock()
		now := r.now()
		if s.session != nil && r.expired(s.session, now) {
			s.session = nil
			s.endedAt = now
			removed++
		}
		reclaim := s.session == nil && now.Sub(s.endedAt) > r.tombstoneTTL
		s.mu.Unlock()

		if reclaim {
			r.reclaim(id, s)
		}
	}

	return removed
}

// reclaim drops an idle slot from the table. Lock order is table then
// slot; the slot state is checked again since it may have been reused.
func (r *Registry) reclaim(accountID string, s *slot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slots[accountID] != s {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil && r.now().Sub(s.endedAt) > r.tombstoneTTL {
		s.dead = true
		delete(r.slots, accountID)
	}
}

// Len returns the number of live (possibly not yet evicted) sessions
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.snapshot() {
		s.mu.Lock()
		if s.session != nil {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// Active returns the inspection view of all sessions still within the
// timeout, ordered by most recent activity. Expired entries are evicted.
func (r *Registry) Active() []SessionView {
	views := make([]SessionView, 0)

	for _, s := range r.snapshot() {
		s.mu.Lock()
		now := r.now()
		if s.session != nil && r.expired(s.session, now) {
			s.session = nil
			s.endedAt = now
		}
		if s.session != nil {
			idle := now.Sub(s.session.LastActivityAt)
			minutesIdle := int(idle / time.Minute)
			views = append(views, SessionView{
				AccountID:            s.session.AccountID,
				IPAddress:            s.session.SourceAddress,
				UserAgent:            s.session.ClientAgent,
				CreatedAt:            s.session.CreatedAt,
				LastActivity:         s.session.LastActivityAt,
				MinutesSinceActivity: minutesIdle,
				MinutesUntilExpiry:   max(0, int(r.timeout/time.Minute)-minutesIdle),
			})
		}
		s.mu.Unlock()
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].LastActivity.After(views[j].LastActivity)
	})
	return views
}

func (r *Registry) expired(sess *AdminSession, now time.Time) bool {
	return now.Sub(sess.LastActivityAt) > r.timeout
}
