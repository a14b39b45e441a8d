package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Channel delivers a rendered event to one external destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// StatusError is returned when a webhook answers with a non-2xx status
type StatusError struct {
	Channel    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s webhook returned status %d", e.Channel, e.StatusCode)
	}
	return fmt.Sprintf("%s webhook returned status %d: %s", e.Channel, e.StatusCode, e.Body)
}

func postJSON(ctx context.Context, client *http.Client, channel, url string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s webhook request failed: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &StatusError{Channel: channel, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

// DiscordChannel posts events as Discord embeds
type DiscordChannel struct {
	url    string
	footer string
	client *http.Client
}

// NewDiscordChannel creates a Discord webhook channel
func NewDiscordChannel(url, appName string, timeout time.Duration) *DiscordChannel {
	return &DiscordChannel{
		url:    url,
		footer: appName + " Security Alert",
		client: &http.Client{Timeout: timeout},
	}
}

func (c *DiscordChannel) Name() string { return "discord" }

func (c *DiscordChannel) Send(ctx context.Context, event Event) error {
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       event.Title,
				"description": event.Description,
				"color":       event.Color,
				"fields":      event.Fields,
				"footer":      map[string]string{"text": c.footer},
				"timestamp":   event.Timestamp.Format(time.RFC3339),
			},
		},
	}
	return postJSON(ctx, c.client, c.Name(), c.url, payload)
}

// SlackChannel posts events as Slack message attachments
type SlackChannel struct {
	url     string
	heading string
	client  *http.Client
}

// NewSlackChannel creates a Slack incoming-webhook channel
func NewSlackChannel(url, appName string, timeout time.Duration) *SlackChannel {
	return &SlackChannel{
		url:     url,
		heading: "🚨 " + appName + " Security Alert",
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Send(ctx context.Context, event Event) error {
	var text strings.Builder
	text.WriteString(event.Title + "\n" + event.Description + "\n")
	for _, f := range event.Fields {
		fmt.Fprintf(&text, "*%s:* %s\n", f.Name, f.Value)
	}

	payload := map[string]interface{}{
		"text": c.heading,
		"attachments": []map[string]interface{}{
			{
				"color": slackColor(event.Severity),
				"text":  text.String(),
				"ts":    event.Timestamp.Unix(),
			},
		},
	}
	return postJSON(ctx, c.client, c.Name(), c.url, payload)
}

func slackColor(s Severity) string {
	switch s {
	case SeverityCritical:
		return "danger"
	case SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}

// Publisher publishes a message on a pub/sub channel. Implemented by
// database.Redis.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// RedisChannel publishes events as JSON on a Redis pub/sub channel, for
// in-house consumers such as a SIEM forwarder.
type RedisChannel struct {
	pub     Publisher
	channel string
}

// NewRedisChannel creates a Redis pub/sub channel
func NewRedisChannel(pub Publisher, channel string) *RedisChannel {
	return &RedisChannel{pub: pub, channel: channel}
}

func (c *RedisChannel) Name() string { return "redis" }

func (c *RedisChannel) Send(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := c.pub.Publish(ctx, c.channel, data); err != nil {
		return fmt.Errorf("redis publish to %s failed: %w", c.channel, err)
	}
	return nil
}
