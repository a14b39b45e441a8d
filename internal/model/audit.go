package model

import "time"

// AuditLog represents a write-once record of a privileged action
type AuditLog struct {
	ID           string                 `json:"id"`
	ActorID      string                 `json:"actorId"`
	ActorEmail   string                 `json:"actorEmail"`
	ActorRole    string                 `json:"actorRole"`
	Action       string                 `json:"action"`
	ResourceType *string                `json:"resourceType,omitempty"`
	ResourceID   *string                `json:"resourceId,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	IPAddress    string                 `json:"ipAddress"`
	UserAgent    *string                `json:"userAgent,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// AuditFilter narrows an audit query. Empty fields match everything.
type AuditFilter struct {
	ActorID string
	Action  string
	Since   *time.Time
}

// Audit action constants
const (
	AuditActionLogin            = "user_login"
	AuditActionLoginFailed      = "user_login_failed"
	AuditActionLogout           = "user_logout"
	AuditActionViewUsers        = "view_users"
	AuditActionUpdateCredits    = "update_credits"
	AuditActionViewSessions     = "view_admin_sessions"
	AuditActionForceLogout      = "force_admin_logout"
	AuditActionCleanupSessions  = "cleanup_admin_sessions"
	AuditActionTestAlerts       = "test_alert_channels"
	AuditActionViewAuditLogs    = "view_audit_logs"
	AuditActionViewUserActivity = "view_user_activity"
)
