package security

import (
	"sync"
	"time"

	"github.com/creditshare/creditshare/internal/config"
)

type loginAttempt struct {
	at      time.Time
	success bool
}

// attemptLog is the attempt history of one client address.
type attemptLog struct {
	mu       sync.Mutex
	attempts []loginAttempt
}

// LoginThrottle tracks authentication attempts per client address and
// rejects an address once it has too many recent failures.
//
// The table lock only guards lookup of the per-address log; pruning,
// counting and appending happen under that address's own lock, so
// different addresses never wait on each other.
type LoginThrottle struct {
	mu   sync.Mutex
	logs map[string]*attemptLog

	maxFailures   int
	failureWindow time.Duration
	retention     time.Duration
	now           func() time.Time
}

// NewLoginThrottle creates a throttle from configuration
func NewLoginThrottle(cfg config.ThrottleConfig) *LoginThrottle {
	return &LoginThrottle{
		logs:          make(map[string]*attemptLog),
		maxFailures:   cfg.MaxFailures,
		failureWindow: cfg.FailureWindow,
		retention:     cfg.Retention,
		now:           time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (t *LoginThrottle) WithClock(now func() time.Time) *LoginThrottle {
	t.now = now
	return t
}

func (t *LoginThrottle) logFor(address string) *attemptLog {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.logs[address]
	if !ok {
		l = &attemptLog{}
		t.logs[address] = l
	}
	return l
}

// existing looks up the log for address without creating one.
func (t *LoginThrottle) existing(address string) (*attemptLog, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.logs[address]
	return l, ok
}

// Check returns a *RateLimitError if the address is currently blocked.
// It records nothing and is meant to run before credentials are verified.
func (t *LoginThrottle) Check(address string) error {
	l, ok := t.existing(address)
	if !ok {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := t.now()
	l.prune(now, t.retention)
	return t.blocked(l, now)
}

// RecordAttempt records the outcome of an authentication attempt. If the
// address is already blocked the attempt is not recorded and a
// *RateLimitError is returned.
func (t *LoginThrottle) RecordAttempt(address string, success bool) error {
	l := t.logFor(address)
	l.mu.Lock()
	defer l.mu.Unlock()

	now := t.now()
	l.prune(now, t.retention)
	if err := t.blocked(l, now); err != nil {
		return err
	}

	l.attempts = append(l.attempts, loginAttempt{at: now, success: success})
	return nil
}

// RecentFailures returns the number of failures inside the failure window.
func (t *LoginThrottle) RecentFailures(address string) int {
	l, ok := t.existing(address)
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	failures, _ := l.failuresSince(t.now().Add(-t.failureWindow))
	return failures
}

// MaxFailures returns the failure threshold
func (t *LoginThrottle) MaxFailures() int {
	return t.maxFailures
}

// blocked must be called with l.mu held.
func (t *LoginThrottle) blocked(l *attemptLog, now time.Time) error {
	failures, times := l.failuresSince(now.Add(-t.failureWindow))
	if failures < t.maxFailures {
		return nil
	}

	// The block lifts once enough of the oldest in-window failures age out.
	release := times[failures-t.maxFailures].Add(t.failureWindow)
	return &RateLimitError{
		Failures:   failures,
		RetryAfter: release.Sub(now),
	}
}

// prune drops attempts older than the retention period; l.mu must be held.
func (l *attemptLog) prune(now time.Time, retention time.Duration) {
	cutoff := now.Add(-retention)
	i := 0
	for i < len(l.attempts) && !l.attempts[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		l.attempts = append(l.attempts[:0], l.attempts[i:]...)
	}
}

// failuresSince counts failures strictly after since, oldest first; l.mu must be held.
func (l *attemptLog) failuresSince(since time.Time) (int, []time.Time) {
	var times []time.Time
	for _, a := range l.attempts {
		if !a.success && a.at.After(since) {
			times = append(times, a.at)
		}
	}
	return len(times), times
}
