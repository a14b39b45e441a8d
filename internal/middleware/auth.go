package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/creditshare/creditshare/internal/model"
	"github.com/creditshare/creditshare/internal/security"
	"github.com/creditshare/creditshare/internal/session"
)

// AccountKey holds the authenticated *model.Account
const AccountKey contextKey = "account"

// Authenticator resolves a bearer token to an account. Implemented by
// service.AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*model.Account, error)
}

// AdminAuthorizer runs the privileged access check. Implemented by
// session.Guard.
type AdminAuthorizer interface {
	AuthorizeAdmin(ctx context.Context, credential string, meta session.RequestMeta) (*model.Account, error)
}

// Auth requires a valid bearer token and stores the account in the context
func (m *Middleware) Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}

			account, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				m.writeAuthError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), AccountKey, account)))
		})
	}
}

// RequireAdmin runs every request through the privileged access guard and
// stores the administrator's account in the context.
func (m *Middleware) RequireAdmin(guard AdminAuthorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}

			account, err := guard.AuthorizeAdmin(r.Context(), token, RequestMeta(r))
			if err != nil {
				m.writeAuthError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), AccountKey, account)))
		})
	}
}

func (m *Middleware) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, security.ErrSessionExpired):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="session expired"`)
		writeError(w, http.StatusUnauthorized, "session_expired", "Admin session expired due to inactivity. Please login again.")
	case errors.Is(err, security.ErrUnauthenticated):
		m.log.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "unauthorized", "Could not validate credentials")
	case errors.Is(err, security.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "Not enough permissions")
	default:
		m.log.Error().Err(err).Str("path", r.URL.Path).Msg("authorization check failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequestMeta extracts the client details used by the admin session
func RequestMeta(r *http.Request) session.RequestMeta {
	return session.RequestMeta{
		SourceAddress: ClientIP(r),
		ClientAgent:   r.UserAgent(),
	}
}

// GetAccount returns the authenticated account from the context
func GetAccount(ctx context.Context) *model.Account {
	account, _ := ctx.Value(AccountKey).(*model.Account)
	return account
}
