// Package alert fans security events out to external notification channels.
package alert

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Event kinds raised by the service
const (
	KindFailedLogin             = "failed_login"
	KindSuspiciousUpload        = "suspicious_upload"
	KindAdminLoginNewIP         = "admin_login_new_ip"
	KindAdminLogin              = "admin_login"
	KindDatabaseBackup          = "database_backup"
	KindUnauthorizedAdminAccess = "unauthorized_admin_access"
	KindTest                    = "test"
)

// Severity ranks an event for channel formatting
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Field is one labelled detail line of an event
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Event is a rendered alert, ready for any channel
type Event struct {
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Color       int       `json:"color"`
	Fields      []Field   `json:"fields"`
	Timestamp   time.Time `json:"timestamp"`
}

type template struct {
	title       string
	description string
	severity    Severity
	color       int
}

var templates = map[string]template{
	KindFailedLogin: {
		title:       "🚫 Failed Login Attempt",
		description: "Multiple failed login attempts detected",
		severity:    SeverityCritical,
		color:       0xFF4444,
	},
	KindSuspiciousUpload: {
		title:       "⚠️ Suspicious File Upload",
		description: "Potentially malicious file upload detected",
		severity:    SeverityWarning,
		color:       0xFFAA00,
	},
	KindAdminLoginNewIP: {
		title:       "🔐 Admin Login from New IP",
		description: "Admin logged in from a new IP address",
		severity:    SeverityWarning,
		color:       0x0099FF,
	},
	KindAdminLogin: {
		title:       "👑 Admin Login",
		description: "Admin user has logged into the system",
		severity:    SeverityInfo,
		color:       0x00FF00,
	},
	KindDatabaseBackup: {
		title:       "💾 Database Backup",
		description: "Database backup operation completed",
		severity:    SeverityInfo,
		color:       0x888888,
	},
	KindUnauthorizedAdminAccess: {
		title:       "⛔ Unauthorized Admin Access",
		description: "An administrative account outside the allow-list attempted privileged access",
		severity:    SeverityCritical,
		color:       0xD32F2F,
	},
	KindTest: {
		title:       "🧪 Test Alert",
		description: "Testing alert channel integration",
		severity:    SeverityInfo,
		color:       0x00FF00,
	},
}

func lookupTemplate(kind string) template {
	if t, ok := templates[kind]; ok {
		return t
	}
	return template{
		title:       fmt.Sprintf("🔔 Security Event: %s", kind),
		description: "Security event detected",
		severity:    SeverityCritical,
		color:       0xFF0000,
	}
}

// NewEvent renders kind and details into an Event. Unknown kinds use a
// generic template. Detail fields are sorted by key and followed by a
// timestamp field.
func NewEvent(kind string, details map[string]interface{}, now time.Time) Event {
	t := lookupTemplate(kind)
	now = now.UTC()

	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys)+1)
	for _, k := range keys {
		fields = append(fields, Field{
			Name:   fieldName(k),
			Value:  fmt.Sprint(details[k]),
			Inline: true,
		})
	}
	fields = append(fields, Field{
		Name:  "Timestamp",
		Value: now.Format("2006-01-02 15:04:05 UTC"),
	})

	return Event{
		Kind:        kind,
		Title:       t.title,
		Description: t.description,
		Severity:    t.severity,
		Color:       t.color,
		Fields:      fields,
		Timestamp:   now,
	}
}

// fieldName turns "ip_address" into "Ip Address".
func fieldName(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
