package session

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/creditshare/creditshare/internal/logger"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSweeper_Sweep(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)
	sweeper := NewSweeper(reg, time.Minute, logger.NewNop())

	reg.Start("admin-1", "10.0.0.1", "ua")
	reg.Start("admin-2", "10.0.0.1", "ua")
	clock.Advance(15 * time.Minute)
	reg.Start("admin-3", "10.0.0.1", "ua")

	assert.Equal(t, 0, sweeper.Sweep())

	clock.Advance(16 * time.Minute)
	assert.Equal(t, 2, sweeper.Sweep())
	assert.Equal(t, 1, reg.Len())
}

func TestSweeper_StartStop(t *testing.T) {
	reg := NewRegistry(30*time.Minute, time.Hour)
	sweeper := NewSweeper(reg, time.Second, logger.NewNop())

	sweeper.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sweeper.Stop(ctx)
	assert.NoError(t, ctx.Err())
}

func TestSweeper_RecoversFromPanickingTick(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)
	reg.Start("admin-1", "10.0.0.1", "ua")
	clock.Advance(31 * time.Minute)

	out := &syncBuffer{}
	var calls atomic.Int32
	sweeper := NewSweeper(reg, time.Second, &logger.Logger{Logger: zerolog.New(out)}).
		WithSweepFunc(func() int {
			if calls.Add(1) == 1 {
				panic("sweep exploded")
			}
			return reg.CleanupExpired()
		})

	sweeper.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		sweeper.Stop(ctx)
	}()

	assert.Eventually(t, func() bool {
		return calls.Load() >= 2 && reg.Len() == 0
	}, 5*time.Second, 50*time.Millisecond)

	logged := out.String()
	assert.Contains(t, logged, `"message":"panic"`)
	assert.Contains(t, logged, "sweep exploded")
	assert.Contains(t, logged, "cleaned up expired admin sessions")
}
