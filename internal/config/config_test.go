package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Admin.SessionTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Admin.SessionTimeoutDuration())
	assert.Equal(t, 5*time.Minute, cfg.Admin.SweepInterval)
	assert.Equal(t, 5, cfg.Throttle.MaxFailures)
	assert.Equal(t, 15*time.Minute, cfg.Throttle.FailureWindow)
	assert.Equal(t, time.Hour, cfg.Throttle.Retention)
	assert.Equal(t, 3, cfg.Detector.MaxDistinctAddresses)
	assert.Equal(t, 10*time.Second, cfg.Alerts.Timeout)
	assert.Empty(t, cfg.Alerts.DiscordWebhookURL)
	assert.Empty(t, cfg.Alerts.SlackWebhookURL)
	assert.False(t, cfg.Email.Gmail.Configured())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CREDITSHARE_ADMIN_SESSION_TIMEOUT", "45")
	t.Setenv("CREDITSHARE_ADMIN_EMAIL", "root@example.com")
	t.Setenv("CREDITSHARE_ALERTS_SLACK_WEBHOOK_URL", "https://hooks.slack.test/x")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Admin.SessionTimeout)
	assert.Equal(t, "root@example.com", cfg.Admin.Email)
	assert.Equal(t, "https://hooks.slack.test/x", cfg.Alerts.SlackWebhookURL)
}

func TestLoad_RejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("CREDITSHARE_ADMIN_SESSION_TIMEOUT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_timeout")
}

func TestGmailConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  GmailEmailConfig
		want bool
	}{
		{"empty", GmailEmailConfig{}, false},
		{"sender only", GmailEmailConfig{SenderAddress: "a@b.c"}, false},
		{"service account", GmailEmailConfig{SenderAddress: "a@b.c", CredentialsJSON: "{}"}, true},
		{"refresh token", GmailEmailConfig{SenderAddress: "a@b.c", ClientID: "id", ClientSecret: "s", RefreshToken: "r"}, true},
		{"partial oauth", GmailEmailConfig{SenderAddress: "a@b.c", ClientID: "id"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Configured())
		})
	}
}

func TestLoad_TrustedProxies(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Server.TrustedProxies)

	t.Setenv("CREDITSHARE_SERVER_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.7")
	cfg, err = Load()
	require.NoError(t, err)

	nets, err := cfg.Server.TrustedProxyNets()
	require.NoError(t, err)
	require.Len(t, nets, 2)
	assert.Equal(t, "10.0.0.0/8", nets[0].String())
	assert.Equal(t, "192.0.2.7/32", nets[1].String())

	t.Setenv("CREDITSHARE_SERVER_TRUSTED_PROXIES", "not-an-ip")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trusted_proxies")
}
