package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/creditshare/creditshare/internal/config"
	"github.com/creditshare/creditshare/internal/logger"
	"github.com/creditshare/creditshare/internal/security"
)

// Outcomes reported by TestAll
const (
	OutcomeOK            = "ok"
	OutcomeNotConfigured = "not configured"
)

// Dispatcher sends every event to all configured channels. Delivery is
// best-effort: a failing channel is logged and never affects the others
// or the caller.
type Dispatcher struct {
	channels     []Channel
	unconfigured []string
	timeout      time.Duration
	log          *logger.Logger
	now          func() time.Time

	inflight sync.WaitGroup
}

// NewDispatcher creates a Dispatcher over channels. unconfigured names
// channel types that are known but disabled; they are reported by TestAll.
func NewDispatcher(channels []Channel, unconfigured []string, timeout time.Duration, log *logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		channels:     channels,
		unconfigured: unconfigured,
		timeout:      timeout,
		log:          log.WithComponent("alerts"),
		now:          time.Now,
	}
}

// NewDispatcherFromConfig builds the Discord, Slack and Redis channels that
// have a destination configured. pub may be nil when Redis is unavailable.
func NewDispatcherFromConfig(cfg config.AlertsConfig, appName string, pub Publisher, log *logger.Logger) *Dispatcher {
	var channels []Channel
	var unconfigured []string

	if cfg.DiscordWebhookURL != "" {
		channels = append(channels, NewDiscordChannel(cfg.DiscordWebhookURL, appName, cfg.Timeout))
	} else {
		unconfigured = append(unconfigured, "discord")
	}
	if cfg.SlackWebhookURL != "" {
		channels = append(channels, NewSlackChannel(cfg.SlackWebhookURL, appName, cfg.Timeout))
	} else {
		unconfigured = append(unconfigured, "slack")
	}
	if cfg.RedisChannel != "" && pub != nil {
		channels = append(channels, NewRedisChannel(pub, cfg.RedisChannel))
	} else {
		unconfigured = append(unconfigured, "redis")
	}

	return NewDispatcher(channels, unconfigured, cfg.Timeout, log)
}

// WithClock replaces the time source. Intended for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Channels returns the names of the configured channels
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Dispatch renders the event and delivers it to every channel in the
// background, each bounded by the delivery timeout. It never blocks on
// the network and never fails.
func (d *Dispatcher) Dispatch(kind string, details map[string]interface{}) {
	event := NewEvent(kind, details, d.now())

	d.log.Info().Str("kind", kind).Interface("details", details).Msg("security alert raised")

	for _, ch := range d.channels {
		d.inflight.Add(1)
		go func(ch Channel) {
			defer d.inflight.Done()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			d.send(ctx, ch, event)
		}(ch)
	}
}

// Deliver sends the event to every channel concurrently and waits for all
// of them. The result maps each channel name to its error, nil on success.
func (d *Dispatcher) Deliver(ctx context.Context, kind string, details map[string]interface{}) map[string]error {
	event := NewEvent(kind, details, d.now())

	var mu sync.Mutex
	results := make(map[string]error, len(d.channels))

	var g errgroup.Group
	for _, ch := range d.channels {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			err := d.send(sendCtx, ch, event)
			mu.Lock()
			results[ch.Name()] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// TestAll sends a test event to every channel and reports the outcome per
// channel: "ok", "failed: <reason>" or "not configured".
func (d *Dispatcher) TestAll(ctx context.Context) map[string]string {
	outcomes := make(map[string]string, len(d.channels)+len(d.unconfigured))
	for _, name := range d.unconfigured {
		outcomes[name] = OutcomeNotConfigured
	}

	details := map[string]interface{}{"status": "Testing"}
	for name, err := range d.Deliver(ctx, KindTest, details) {
		if err != nil {
			outcomes[name] = "failed: " + err.Error()
			continue
		}
		outcomes[name] = OutcomeOK
	}
	return outcomes
}

// Wait blocks until background deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, event Event) error {
	if err := ch.Send(ctx, event); err != nil {
		d.log.Error().
			Err(fmt.Errorf("%w: %v", security.ErrDeliveryFailure, err)).
			Str("failure", "delivery_failure").
			Str("channel", ch.Name()).
			Str("kind", event.Kind).
			Msg("alert delivery failed")
		return err
	}
	d.log.Debug().Str("channel", ch.Name()).Str("kind", event.Kind).Msg("alert delivered")
	return nil
}
