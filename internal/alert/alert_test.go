package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditshare/creditshare/internal/config"
	"github.com/creditshare/creditshare/internal/email"
	"github.com/creditshare/creditshare/internal/logger"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []map[string]interface{}
	status   int
}

func newWebhookServer(t *testing.T, status int) (*httptest.Server, *webhookRecorder) {
	t.Helper()
	rec := &webhookRecorder{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		_ = json.Unmarshal(body, &payload)

		rec.mu.Lock()
		rec.payloads = append(rec.payloads, payload)
		rec.mu.Unlock()

		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(rec.status)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func (r *webhookRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

type failingChannel struct {
	calls atomic.Int32
}

func (c *failingChannel) Name() string { return "broken" }

func (c *failingChannel) Send(context.Context, Event) error {
	c.calls.Add(1)
	return errors.New("connection refused")
}

type fakePublisher struct {
	mu       sync.Mutex
	channel  string
	messages [][]byte
}

func (p *fakePublisher) Publish(_ context.Context, channel string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channel = channel
	p.messages = append(p.messages, message.([]byte))
	return nil
}

func TestNewEvent_KnownKind(t *testing.T) {
	event := NewEvent(KindAdminLoginNewIP, map[string]interface{}{
		"ip_address":  "10.0.0.4",
		"admin_email": "root@example.com",
		"new_ip":      true,
	}, fixedNow)

	assert.Equal(t, "🔐 Admin Login from New IP", event.Title)
	assert.Equal(t, SeverityWarning, event.Severity)
	require.Len(t, event.Fields, 4)
	assert.Equal(t, Field{Name: "Admin Email", Value: "root@example.com", Inline: true}, event.Fields[0])
	assert.Equal(t, Field{Name: "Ip Address", Value: "10.0.0.4", Inline: true}, event.Fields[1])
	assert.Equal(t, Field{Name: "New Ip", Value: "true", Inline: true}, event.Fields[2])
	assert.Equal(t, Field{Name: "Timestamp", Value: "2026-03-01 12:00:00 UTC"}, event.Fields[3])
}

func TestNewEvent_UnknownKindUsesGenericTemplate(t *testing.T) {
	event := NewEvent("quota_exhausted", nil, fixedNow)

	assert.Equal(t, "🔔 Security Event: quota_exhausted", event.Title)
	assert.Equal(t, "Security event detected", event.Description)
	assert.Len(t, event.Fields, 1)
}

func TestDiscordChannel_Send(t *testing.T) {
	srv, rec := newWebhookServer(t, http.StatusNoContent)
	ch := NewDiscordChannel(srv.URL, "CreditShare", time.Second)

	err := ch.Send(context.Background(), NewEvent(KindAdminLogin, map[string]interface{}{"ip_address": "10.0.0.1"}, fixedNow))
	require.NoError(t, err)

	require.Equal(t, 1, rec.count())
	embeds := rec.payloads[0]["embeds"].([]interface{})
	embed := embeds[0].(map[string]interface{})
	assert.Equal(t, "👑 Admin Login", embed["title"])
	assert.Equal(t, float64(0x00FF00), embed["color"])
	assert.Equal(t, "CreditShare Security Alert", embed["footer"].(map[string]interface{})["text"])
	assert.Equal(t, "2026-03-01T12:00:00Z", embed["timestamp"])
}

func TestSlackChannel_Send(t *testing.T) {
	srv, rec := newWebhookServer(t, http.StatusOK)
	ch := NewSlackChannel(srv.URL, "CreditShare", time.Second)

	err := ch.Send(context.Background(), NewEvent(KindFailedLogin, map[string]interface{}{"failed_attempts": 5}, fixedNow))
	require.NoError(t, err)

	require.Equal(t, 1, rec.count())
	payload := rec.payloads[0]
	assert.Equal(t, "🚨 CreditShare Security Alert", payload["text"])
	attachment := payload["attachments"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "danger", attachment["color"])
	assert.Contains(t, attachment["text"], "*Failed Attempts:* 5")
}

func TestWebhookChannel_NonSuccessStatus(t *testing.T) {
	srv, _ := newWebhookServer(t, http.StatusInternalServerError)
	ch := NewSlackChannel(srv.URL, "CreditShare", time.Second)

	err := ch.Send(context.Background(), NewEvent(KindTest, nil, fixedNow))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "slack", statusErr.Channel)
}

func TestWebhookChannel_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	ch := NewDiscordChannel(srv.URL, "CreditShare", 50*time.Millisecond)
	start := time.Now()
	err := ch.Send(context.Background(), NewEvent(KindTest, nil, fixedNow))

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRedisChannel_Send(t *testing.T) {
	pub := &fakePublisher{}
	ch := NewRedisChannel(pub, "security-alerts")

	require.NoError(t, ch.Send(context.Background(), NewEvent(KindAdminLogin, nil, fixedNow)))

	assert.Equal(t, "security-alerts", pub.channel)
	require.Len(t, pub.messages, 1)
	var event Event
	require.NoError(t, json.Unmarshal(pub.messages[0], &event))
	assert.Equal(t, KindAdminLogin, event.Kind)
}

func TestDispatcher_DispatchSurvivesFailingChannel(t *testing.T) {
	discordSrv, discord := newWebhookServer(t, http.StatusNoContent)
	slackSrv, slack := newWebhookServer(t, http.StatusOK)
	broken := &failingChannel{}

	d := NewDispatcher([]Channel{
		broken,
		NewDiscordChannel(discordSrv.URL, "CreditShare", time.Second),
		NewSlackChannel(slackSrv.URL, "CreditShare", time.Second),
	}, nil, time.Second, logger.NewNop())

	assert.NotPanics(t, func() {
		d.Dispatch(KindFailedLogin, map[string]interface{}{"ip_address": "10.0.0.1"})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	assert.Equal(t, int32(1), broken.calls.Load())
	assert.Equal(t, 1, discord.count())
	assert.Equal(t, 1, slack.count())
}

func TestDispatcher_DispatchWithoutChannels(t *testing.T) {
	d := NewDispatcher(nil, []string{"discord", "slack"}, time.Second, logger.NewNop())

	d.Dispatch("anything", nil)
	assert.NoError(t, d.Wait(context.Background()))
}

func TestDispatcher_Deliver(t *testing.T) {
	srv, _ := newWebhookServer(t, http.StatusOK)
	d := NewDispatcher([]Channel{
		&failingChannel{},
		NewSlackChannel(srv.URL, "CreditShare", time.Second),
	}, nil, time.Second, logger.NewNop())

	results := d.Deliver(context.Background(), KindTest, nil)

	require.Len(t, results, 2)
	assert.NoError(t, results["slack"])
	assert.EqualError(t, results["broken"], "connection refused")
}

func TestDispatcher_TestAll(t *testing.T) {
	discordSrv, _ := newWebhookServer(t, http.StatusNoContent)
	slackSrv, _ := newWebhookServer(t, http.StatusForbidden)

	d := NewDispatcherFromConfig(config.AlertsConfig{
		DiscordWebhookURL: discordSrv.URL,
		SlackWebhookURL:   slackSrv.URL,
		RedisChannel:      "security-alerts",
		Timeout:           time.Second,
	}, "CreditShare", nil, logger.NewNop())

	outcomes := d.TestAll(context.Background())

	assert.Equal(t, OutcomeOK, outcomes["discord"])
	assert.Equal(t, "failed: slack webhook returned status 403", outcomes["slack"])
	assert.Equal(t, OutcomeNotConfigured, outcomes["redis"])
}

func TestNewDispatcherFromConfig_NothingConfigured(t *testing.T) {
	d := NewDispatcherFromConfig(config.AlertsConfig{}, "CreditShare", &fakePublisher{}, logger.NewNop())

	assert.Empty(t, d.Channels())
	assert.Equal(t, map[string]string{
		"discord": OutcomeNotConfigured,
		"slack":   OutcomeNotConfigured,
		"redis":   OutcomeNotConfigured,
	}, d.TestAll(context.Background()))
}

type recordingSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func TestAdminLoginNotifier_Notify(t *testing.T) {
	sender := &recordingSender{}
	n := NewAdminLoginNotifier(sender, "root@example.com", "CreditShare", time.Second, logger.NewNop())

	n.Notify("root@example.com", "10.0.0.1")
	require.NoError(t, n.Wait(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "root@example.com", sender.sent[0].To)
	assert.Equal(t, "🔐 Admin Login Alert - CreditShare", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].TextBody, "IP Address: 10.0.0.1")
}

func TestAdminLoginNotifier_SendFailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("quota exceeded")}
	n := NewAdminLoginNotifier(sender, "root@example.com", "CreditShare", time.Second, logger.NewNop())

	n.Notify("root@example.com", "10.0.0.1")
	assert.NoError(t, n.Wait(context.Background()))
}

func TestAdminLoginNotifier_DisabledWithoutSender(t *testing.T) {
	n := NewAdminLoginNotifier(nil, "root@example.com", "CreditShare", time.Second, logger.NewNop())

	assert.False(t, n.Enabled())
	n.Notify("root@example.com", "10.0.0.1")
	assert.NoError(t, n.Wait(context.Background()))
}
