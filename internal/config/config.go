package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Detector DetectorConfig `mapstructure:"detector"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Email    EmailConfig    `mapstructure:"email"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	// TrustedProxies lists the CIDRs (or bare IPs) whose X-Forwarded-For
	// header is honoured. Empty means the socket peer is always the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// TrustedProxyNets parses TrustedProxies. A bare IP is a single-host network.
func (c ServerConfig) TrustedProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("server.trusted_proxies: invalid address %q", entry)
			}
			bits := 8 * net.IPv6len
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 8*net.IPv4len
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Tokens       TokenConfig        `mapstructure:"tokens"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
}

// TokenConfig holds JWT token configuration
type TokenConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
}

// RateLimitingConfig holds the Redis request limiter configuration
type RateLimitingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AdminConfig holds administrative session configuration
type AdminConfig struct {
	// Email is the single allow-listed super-admin identity.
	Email string `mapstructure:"email"`
	// SessionTimeout is the inactivity timeout in minutes.
	SessionTimeout int `mapstructure:"session_timeout"`
	// SweepInterval is how often idle sessions are evicted eagerly.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SessionTimeoutDuration returns the inactivity timeout as a duration
func (c AdminConfig) SessionTimeoutDuration() time.Duration {
	return time.Duration(c.SessionTimeout) * time.Minute
}

// ThrottleConfig holds login attempt throttling configuration
type ThrottleConfig struct {
	MaxFailures   int           `mapstructure:"max_failures"`
	FailureWindow time.Duration `mapstructure:"failure_window"`
	Retention     time.Duration `mapstructure:"retention"`
}

// DetectorConfig holds suspicious login detection configuration
type DetectorConfig struct {
	MaxDistinctAddresses int `mapstructure:"max_distinct_addresses"`
}

// AlertsConfig holds the external alert channels. Empty values disable a channel.
type AlertsConfig struct {
	DiscordWebhookURL string        `mapstructure:"discord_webhook_url"`
	SlackWebhookURL   string        `mapstructure:"slack_webhook_url"`
	RedisChannel      string        `mapstructure:"redis_channel"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// EmailConfig holds email sending configuration
type EmailConfig struct {
	// AppName is the application name shown in emails
	AppName string `mapstructure:"app_name"`
	// Gmail holds Gmail-specific configuration
	Gmail GmailEmailConfig `mapstructure:"gmail"`
}

// GmailEmailConfig holds Gmail API configuration
type GmailEmailConfig struct {
	// CredentialsJSON is the service account credentials JSON content
	CredentialsJSON string `mapstructure:"credentials_json"`
	// ClientID for OAuth2 token-based auth (alternative to service account)
	ClientID string `mapstructure:"client_id"`
	// ClientSecret for OAuth2 token-based auth
	ClientSecret string `mapstructure:"client_secret"`
	// RefreshToken for OAuth2 token-based auth
	RefreshToken string `mapstructure:"refresh_token"`
	// SenderAddress is the "From" email address
	SenderAddress string `mapstructure:"sender_address"`
	// SenderName is the display name for the sender
	SenderName string `mapstructure:"sender_name"`
}

// Configured reports whether enough credentials are present to send mail.
func (c GmailEmailConfig) Configured() bool {
	if c.SenderAddress == "" {
		return false
	}
	return c.CredentialsJSON != "" || (c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "")
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/creditshare")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("CREDITSHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	if _, err := c.Server.TrustedProxyNets(); err != nil {
		return err
	}
	if c.Admin.SessionTimeout <= 0 {
		return fmt.Errorf("admin.session_timeout must be positive, got %d", c.Admin.SessionTimeout)
	}
	if c.Admin.SweepInterval < time.Second {
		return fmt.Errorf("admin.sweep_interval must be at least 1s, got %s", c.Admin.SweepInterval)
	}
	if c.Throttle.MaxFailures <= 0 {
		return fmt.Errorf("throttle.max_failures must be positive, got %d", c.Throttle.MaxFailures)
	}
	if c.Throttle.Retention < c.Throttle.FailureWindow {
		return fmt.Errorf("throttle.retention (%s) must cover throttle.failure_window (%s)",
			c.Throttle.Retention, c.Throttle.FailureWindow)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173", "http://127.0.0.1:3000"})
	v.SetDefault("server.trusted_proxies", []string{})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "creditshare")
	v.SetDefault("database.user", "creditshare")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Security defaults
	v.SetDefault("security.tokens.secret", "")
	v.SetDefault("security.tokens.access_token_ttl", "30m")
	v.SetDefault("security.tokens.issuer", "creditshare")
	v.SetDefault("security.rate_limiting.enabled", true)

	// Admin defaults
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.session_timeout", 30)
	v.SetDefault("admin.sweep_interval", "5m")

	// Login throttle defaults
	v.SetDefault("throttle.max_failures", 5)
	v.SetDefault("throttle.failure_window", "15m")
	v.SetDefault("throttle.retention", "1h")

	v.SetDefault("detector.max_distinct_addresses", 3)

	// Alert defaults
	v.SetDefault("alerts.discord_webhook_url", "")
	v.SetDefault("alerts.slack_webhook_url", "")
	v.SetDefault("alerts.redis_channel", "")
	v.SetDefault("alerts.timeout", "10s")

	// Email defaults
	v.SetDefault("email.app_name", "CreditShare")
	v.SetDefault("email.gmail.credentials_json", "")
	v.SetDefault("email.gmail.client_id", "")
	v.SetDefault("email.gmail.client_secret", "")
	v.SetDefault("email.gmail.refresh_token", "")
	v.SetDefault("email.gmail.sender_address", "")
	v.SetDefault("email.gmail.sender_name", "CreditShare Security")
}
