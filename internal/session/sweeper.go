package session

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/creditshare/creditshare/internal/logger"
)

// Sweeper periodically evicts idle admin sessions. Lazy checks in Touch
// keep expiry correct between sweeps; the sweep bounds memory.
type Sweeper struct {
	registry *Registry
	cron     *cron.Cron
	log      *logger.Logger
	sweep    func() int
}

// NewSweeper schedules a sweep every interval. A panicking sweep is
// recovered and logged; the schedule keeps running.
func NewSweeper(registry *Registry, interval time.Duration, log *logger.Logger) *Sweeper {
	s := &Sweeper{
		registry: registry,
		log:      log.WithComponent("session_sweeper"),
		sweep:    registry.CleanupExpired,
	}

	cl := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() { s.Sweep() }))

	return s
}

// WithSweepFunc replaces the eviction pass run on each tick. Intended for tests.
func (s *Sweeper) WithSweepFunc(fn func() int) *Sweeper {
	s.sweep = fn
	return s
}

// Start begins the schedule in its own goroutine
func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info().Msg("admin session sweeper started")
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info().Msg("admin session sweeper stopped")
}

// Sweep runs one eviction pass and returns the number of sessions removed.
func (s *Sweeper) Sweep() int {
	removed := s.sweep()
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("cleaned up expired admin sessions")
	}
	return removed
}

// cronLogger adapts the component logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
