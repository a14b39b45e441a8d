package creditshare

import "time"

// User represents a CreditShare account returned by the API.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Credits      int       `json:"credits"`
	ReferralCode string    `json:"referralCode"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the account carries the administrative role.
// The server still decides whether admin endpoints are reachable.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

// LoginResponse is returned on successful authentication.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
	User        *User  `json:"user"`
}

// AdminSession is one entry of the live admin session view.
type AdminSession struct {
	AccountID            string    `json:"accountId"`
	IPAddress            string    `json:"ipAddress"`
	UserAgent            string    `json:"userAgent"`
	CreatedAt            time.Time `json:"createdAt"`
	LastActivity         time.Time `json:"lastActivity"`
	MinutesSinceActivity int       `json:"minutesSinceActivity"`
	ExpiresInMinutes     int       `json:"expiresInMinutes"`
}

// AlertTestResult reports the outcome per alert channel:
// "ok", "failed: <reason>" or "not configured".
type AlertTestResult struct {
	Channels  map[string]string `json:"channels"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditQuery narrows an audit log query. Zero values are omitted.
type AuditQuery struct {
	UserID string
	Action string
	Limit  int
	Offset int
}

// AuditLog is a persisted audit trail entry.
type AuditLog struct {
	ID           string                 `json:"id"`
	ActorID      string                 `json:"actorId"`
	ActorEmail   string                 `json:"actorEmail"`
	ActorRole    string                 `json:"actorRole"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resourceType,omitempty"`
	ResourceID   string                 `json:"resourceId,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	IPAddress    string                 `json:"ipAddress"`
	UserAgent    string                 `json:"userAgent,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}
