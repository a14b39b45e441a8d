package creditshare

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Context keys for storing auth data in Echo context.
const (
	// UserContextKey is the key used to store the authenticated User in echo.Context.
	UserContextKey = "creditshare_user"

	// TokenContextKey is the key used to store the raw access token in echo.Context.
	TokenContextKey = "creditshare_token"
)

// MiddlewareConfig configures the Echo authentication middleware.
type MiddlewareConfig struct {
	// Skipper defines a function to skip this middleware for certain requests.
	Skipper func(c echo.Context) bool

	// SkipPaths is a list of path prefixes that do not require authentication.
	SkipPaths []string

	// RequireAdmin rejects accounts without the administrative role (HTTP 403).
	RequireAdmin bool

	// ErrorHandler is an optional custom error handler for authentication failures.
	ErrorHandler func(c echo.Context, err error) error
}

// EchoAuth returns Echo middleware that resolves the bearer token against
// the CreditShare server and stores the account in the Echo context.
//
// Retrieve the user in handlers with GetUser(c).
func (client *Client) EchoAuth(cfgs ...MiddlewareConfig) echo.MiddlewareFunc {
	cfg := MiddlewareConfig{}
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			path := c.Request().URL.Path
			for _, p := range cfg.SkipPaths {
				if strings.HasPrefix(path, p) {
					return next(c)
				}
			}

			token := bearerToken(c)
			if token == "" {
				return handleAuthError(c, cfg, ErrNoToken)
			}

			user, err := client.CurrentUser(c.Request().Context(), token)
			if err != nil {
				return handleAuthError(c, cfg, err)
			}
			if cfg.RequireAdmin && !user.IsAdmin() {
				return handleAuthError(c, cfg, ErrForbidden)
			}

			c.Set(UserContextKey, user)
			c.Set(TokenContextKey, token)

			return next(c)
		}
	}
}

// GetUser retrieves the authenticated user from the Echo context.
// Returns nil if the middleware was not applied or was skipped.
func GetUser(c echo.Context) *User {
	if user, ok := c.Get(UserContextKey).(*User); ok {
		return user
	}
	return nil
}

// GetToken retrieves the raw access token from the Echo context.
func GetToken(c echo.Context) string {
	if token, ok := c.Get(TokenContextKey).(string); ok {
		return token
	}
	return ""
}

func bearerToken(c echo.Context) string {
	scheme, token, ok := strings.Cut(c.Request().Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func handleAuthError(c echo.Context, cfg MiddlewareConfig, err error) error {
	if cfg.ErrorHandler != nil {
		return cfg.ErrorHandler(c, err)
	}

	status := http.StatusUnauthorized
	code := "unauthorized"
	message := "Authentication required"

	switch {
	case errors.Is(err, ErrSessionExpired):
		code = "session_expired"
		message = "Admin session expired due to inactivity. Please login again."
	case errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
		code = "forbidden"
		message = "Not enough permissions"
	case errors.Is(err, ErrUnauthorized):
		message = "Invalid or expired token"
	case errors.Is(err, ErrNoToken):
	default:
		status = http.StatusBadGateway
		code = "upstream_error"
		message = "Could not reach the authentication server"
	}

	return c.JSON(status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
