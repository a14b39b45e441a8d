package security

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditshare/creditshare/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestThrottle(clock *fakeClock) *LoginThrottle {
	return NewLoginThrottle(config.ThrottleConfig{
		MaxFailures:   5,
		FailureWindow: 15 * time.Minute,
		Retention:     time.Hour,
	}).WithClock(clock.Now)
}

func TestLoginThrottle_SixthAttemptRejectedAfterFiveFailures(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	th := newTestThrottle(clock)

	for i := 0; i < 5; i++ {
		require.NoError(t, th.Check("10.0.0.1"))
		require.NoError(t, th.RecordAttempt("10.0.0.1", false))
		clock.Advance(time.Minute)
	}

	err := th.Check("10.0.0.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 5, rl.Failures)
	// First failure was 5 minutes ago, so the block lifts in 10 minutes.
	assert.Equal(t, 10*time.Minute, rl.RetryAfter)

	// Recording while blocked fails and adds nothing.
	require.ErrorIs(t, th.RecordAttempt("10.0.0.1", true), ErrRateLimited)
	assert.Equal(t, 5, th.RecentFailures("10.0.0.1"))
}

func TestLoginThrottle_LookupsDoNotCreateEntries(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	th := newTestThrottle(clock)

	for i := 0; i < 100; i++ {
		addr := fmt.Sprintf("198.51.100.%d", i)
		assert.NoError(t, th.Check(addr))
		assert.Zero(t, th.RecentFailures(addr))
	}
	assert.Empty(t, th.logs)

	require.NoError(t, th.RecordAttempt("10.0.0.1", false))
	assert.Len(t, th.logs, 1)
	assert.Equal(t, 1, th.RecentFailures("10.0.0.1"))
}

func TestLoginThrottle_FailureOutsideWindowNotRejected(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	th := newTestThrottle(clock)

	require.NoError(t, th.RecordAttempt("10.0.0.1", false))
	clock.Advance(11 * time.Minute)
	for i := 0; i < 4; i++ {
		require.NoError(t, th.RecordAttempt("10.0.0.1", false))
		clock.Advance(time.Minute)
	}

	// 15 minutes after the first failure: it has left the window.
	require.NoError(t, th.Check("10.0.0.1"))
	require.NoError(t, th.RecordAttempt("10.0.0.1", false))
}

func TestLoginThrottle_SuccessesDoNotCount(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	th := newTestThrottle(clock)

	for i := 0; i < 4; i++ {
		require.NoError(t, th.RecordAttempt("10.0.0.1", false))
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, th.RecordAttempt("10.0.0.1", true))
	}
	assert.NoError(t, th.Check("10.0.0.1"))
	assert.Equal(t, 4, th.RecentFailures("10.0.0.1"))
}

func TestLoginThrottle_AddressesAreIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	th := newTestThrottle(clock)

	for i := 0; i < 5; i++ {
		require.NoError(t, th.RecordAttempt("10.0.0.1", false))
	}
	assert.ErrorIs(t, th.Check("10.0.0.1"), ErrRateLimited)
	assert.NoError(t, th.Check("10.0.0.2"))
}

func TestLoginThrottle_PrunesAfterRetention(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	th := newTestThrottle(clock)

	for i := 0; i < 5; i++ {
		require.NoError(t, th.RecordAttempt("10.0.0.1", false))
	}
	clock.Advance(time.Hour)
	require.NoError(t, th.Check("10.0.0.1"))

	l := th.logFor("10.0.0.1")
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.attempts)
}

func TestLoginThrottle_ConcurrentSameAddress(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	th := newTestThrottle(clock)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if th.RecordAttempt("10.0.0.9", false) == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Prune, check and append are atomic per address, so exactly the
	// threshold is recorded.
	assert.Equal(t, 5, accepted)
	assert.Equal(t, 5, th.RecentFailures("10.0.0.9"))
}

func TestLoginThrottle_ConcurrentDistinctAddresses(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	th := newTestThrottle(clock)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			addr := fmt.Sprintf("192.168.0.%d", n)
			for j := 0; j < 3; j++ {
				assert.NoError(t, th.RecordAttempt(addr, false))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		assert.Equal(t, 3, th.RecentFailures(fmt.Sprintf("192.168.0.%d", i)))
	}
}
