package creditshare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds the configuration for the CreditShare client.
type Config struct {
	// BaseURL is the root URL of the CreditShare server.
	// The "/api/v1" suffix is appended automatically if missing.
	BaseURL string

	// CacheTTL controls how long resolved tokens are cached in memory.
	// Set to a negative value to disable caching. Default: 1 minute
	CacheTTL time.Duration

	// HTTPClient is an optional custom HTTP client.
	// If nil, a default client with 10s timeout is used.
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if !strings.HasSuffix(c.BaseURL, "/api/v1") {
		c.BaseURL = c.BaseURL + "/api/v1"
	}
}

// Client calls the CreditShare auth and admin APIs.
type Client struct {
	cfg   Config
	cache *tokenCache
}

// NewClient creates a new CreditShare client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:   cfg,
		cache: newTokenCache(),
	}
}

// Login exchanges credentials for an access token. A throttled client gets
// an *APIError matching ErrRateLimited with RetryAfter set.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout ends the session of token and drops it from the cache.
func (c *Client) Logout(ctx context.Context, token string) error {
	c.cache.delete(token)
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// CurrentUser resolves token to its account. Results are cached for CacheTTL.
func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if user, ok := c.cache.get(token); ok {
		return user, nil
	}

	var user User
	if err := c.do(ctx, http.MethodGet, "/users/me", token, nil, &user); err != nil {
		return nil, err
	}
	if c.cfg.CacheTTL > 0 {
		c.cache.set(token, &user, c.cfg.CacheTTL)
	}
	return &user, nil
}

// ActiveSessions lists live admin sessions.
func (c *Client) ActiveSessions(ctx context.Context, token string) ([]AdminSession, error) {
	var resp struct {
		Sessions []AdminSession `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/sessions", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// ForceLogout ends the admin session of accountID.
func (c *Client) ForceLogout(ctx context.Context, token, accountID string) error {
	return c.do(ctx, http.MethodDelete, "/admin/sessions/"+url.PathEscape(accountID), token, nil, nil)
}

// CleanupSessions evicts idle admin sessions and returns how many were removed.
func (c *Client) CleanupSessions(ctx context.Context, token string) (int, error) {
	var resp struct {
		Removed int `json:"removed"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/sessions/cleanup", token, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// TestAlerts runs the alert channel diagnostics.
func (c *Client) TestAlerts(ctx context.Context, token string) (*AlertTestResult, error) {
	var resp AlertTestResult
	if err := c.do(ctx, http.MethodPost, "/admin/alerts/test", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AuditLogs queries the audit trail.
func (c *Client) AuditLogs(ctx context.Context, token string, q AuditQuery) ([]AuditLog, error) {
	params := url.Values{}
	if q.UserID != "" {
		params.Set("user_id", q.UserID)
	}
	if q.Action != "" {
		params.Set("action", q.Action)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/admin/audit-logs"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Logs []AuditLog `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// UserActivity returns a user's audit entries from the last hours.
func (c *Client) UserActivity(ctx context.Context, token, userID string, hours int) ([]AuditLog, error) {
	path := fmt.Sprintf("/admin/users/%s/activity?hours=%d", url.PathEscape(userID), hours)
	var resp struct {
		Activities []AuditLog `json:"activities"`
	}
	if err := c.do(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Activities, nil
}

// do sends a request to the CreditShare API and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path, token string, payload, out interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("creditshare: failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creditshare: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("creditshare: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("creditshare: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			c.cache.delete(token)
		}
		return parseAPIError(resp, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("creditshare: failed to parse response: %w", err)
	}
	return nil
}

// tokenCache holds resolved users per token. Expired entries are dropped on read.
type tokenCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	user      *User
	expiresAt time.Time
}

func newTokenCache() *tokenCache {
	return &tokenCache{entries: make(map[string]cacheEntry)}
}

func (tc *tokenCache) get(token string) (*User, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	entry, ok := tc.entries[token]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(tc.entries, token)
		return nil, false
	}
	return entry.user, true
}

func (tc *tokenCache) set(token string, user *User, ttl time.Duration) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.entries[token] = cacheEntry{user: user, expiresAt: time.Now().Add(ttl)}
}

func (tc *tokenCache) delete(token string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	delete(tc.entries, token)
}
