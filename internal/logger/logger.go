package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with application-specific methods
type Logger struct {
	zerolog.Logger
}

// New creates a new Logger instance
func New(level string, format string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	if format == "text" || format == "console" {
		// Human-readable output for development
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return &Logger{Logger: zerolog.New(out).With().Timestamp().Caller().Logger()}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithRequestID returns a new logger with the request ID attached
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With().Str("request_id", requestID).Logger(),
	}
}

// WithComponent returns a new logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With().Str("component", component).Logger(),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, statusCode int, duration time.Duration, clientIP string) {
	l.Info().
		Str("method", method).
		Str("path", path).
		Int("status", statusCode).
		Dur("duration", duration).
		Str("client_ip", clientIP).
		Msg("HTTP request")
}

// AuditLog mirrors a persisted audit entry into the log stream
func (l *Logger) AuditLog(actorEmail, actorRole, action, resourceType, resourceID, ipAddress string, details map[string]interface{}) {
	event := l.Info().
		Str("audit", "true").
		Str("actor_email", actorEmail).
		Str("actor_role", actorRole).
		Str("action", action).
		Str("ip_address", ipAddress)

	if resourceType != "" && resourceID != "" {
		event.Str("resource", resourceType+":"+resourceID)
	}
	if details != nil {
		event.Interface("details", details)
	}

	event.Msg("audit log")
}

// SecurityEvent logs a security-relevant event at warn level
func (l *Logger) SecurityEvent(event, email, ipAddress string) {
	l.Warn().
		Str("security_event", event).
		Str("email", email).
		Str("ip_address", ipAddress).
		Msg("security event")
}
