package creditshare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}

type fakeServer struct {
	meCalls atomic.Int32
	srv     *httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] == "throttled" {
			w.Header().Set("Retry-After", "900")
			writeEnvelope(w, http.StatusTooManyRequests, "rate_limited", "Too many failed login attempts. Please try again in 15 minutes.")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"accessToken": "admin-token",
			"tokenType":   "Bearer",
			"expiresIn":   3600,
			"user":        map[string]string{"id": "acc-admin", "role": "admin"},
		})
	})
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		f.meCalls.Add(1)
		switch r.Header.Get("Authorization") {
		case "Bearer admin-token":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "acc-admin", "role": "admin"})
		case "Bearer user-token":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "acc-user", "role": "user"})
		default:
			writeEnvelope(w, http.StatusUnauthorized, "unauthorized", "Could not validate credentials")
		}
	})
	mux.HandleFunc("GET /api/v1/admin/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer idle-token" {
			writeEnvelope(w, http.StatusUnauthorized, "session_expired", "Admin session expired due to inactivity. Please login again.")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"activeSessions": 1,
			"sessions":       []map[string]interface{}{{"accountId": "acc-admin", "expiresInMinutes": 25}},
		})
	})
	mux.HandleFunc("DELETE /api/v1/admin/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, "not_found", "Admin session not found")
	})
	mux.HandleFunc("GET /api/v1/admin/audit-logs", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"logs": []map[string]string{{"id": "aud_1", "action": q.Get("action"), "actorId": q.Get("user_id")}},
		})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func TestClient_Login(t *testing.T) {
	f := newFakeServer(t)
	client := NewClient(Config{BaseURL: f.srv.URL})

	resp, err := client.Login(context.Background(), "root@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "admin-token", resp.AccessToken)
	require.NotNil(t, resp.User)
	assert.True(t, resp.User.IsAdmin())

	_, err = client.Login(context.Background(), "root@example.com", "throttled")
	require.ErrorIs(t, err, ErrRateLimited)
	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, apiErr.RetryAfter)
}

func TestClient_SessionExpiredIsDistinguishable(t *testing.T) {
	f := newFakeServer(t)
	client := NewClient(Config{BaseURL: f.srv.URL + "/api/v1/"})

	sessions, err := client.ActiveSessions(context.Background(), "admin-token")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 25, sessions[0].ExpiresInMinutes)

	_, err = client.ActiveSessions(context.Background(), "idle-token")
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_ForceLogoutNotFound(t *testing.T) {
	f := newFakeServer(t)
	client := NewClient(Config{BaseURL: f.srv.URL})

	err := client.ForceLogout(context.Background(), "admin-token", "acc-9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_AuditLogsQuery(t *testing.T) {
	f := newFakeServer(t)
	client := NewClient(Config{BaseURL: f.srv.URL})

	logs, err := client.AuditLogs(context.Background(), "admin-token", AuditQuery{UserID: "acc-1", Action: "user_login", Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "user_login", logs[0].Action)
	assert.Equal(t, "acc-1", logs[0].ActorID)
}

func TestClient_CurrentUserIsCached(t *testing.T) {
	f := newFakeServer(t)
	client := NewClient(Config{BaseURL: f.srv.URL})

	for i := 0; i < 3; i++ {
		user, err := client.CurrentUser(context.Background(), "admin-token")
		require.NoError(t, err)
		assert.Equal(t, "acc-admin", user.ID)
	}
	assert.Equal(t, int32(1), f.meCalls.Load())

	_, err := client.CurrentUser(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestEchoAuth(t *testing.T) {
	f := newFakeServer(t)
	client := NewClient(Config{BaseURL: f.srv.URL, CacheTTL: -1})

	e := echo.New()
	e.GET("/ops", func(c echo.Context) error {
		return c.String(http.StatusOK, GetUser(c).ID)
	}, client.EchoAuth(MiddlewareConfig{RequireAdmin: true}))

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"admin", "admin-token", http.StatusOK},
		{"non-admin", "user-token", http.StatusForbidden},
		{"invalid", "garbage", http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ops", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
