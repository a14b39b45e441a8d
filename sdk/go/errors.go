package creditshare

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Sentinel errors returned by the SDK. An *APIError matches the one that
// corresponds to its error code.
var (
	// ErrNoToken is returned when no access token is found in the request.
	ErrNoToken = errors.New("creditshare: no access token provided")

	// ErrUnauthorized is returned for a missing, invalid or expired token.
	ErrUnauthorized = errors.New("creditshare: unauthorized")

	// ErrSessionExpired is returned when the admin session timed out from
	// inactivity. The caller must log in again.
	ErrSessionExpired = errors.New("creditshare: admin session expired")

	// ErrForbidden is returned when the token is valid but lacks permission.
	ErrForbidden = errors.New("creditshare: access forbidden")

	// ErrRateLimited is returned when login attempts are throttled.
	ErrRateLimited = errors.New("creditshare: rate limited")

	// ErrNotFound is returned for a missing resource.
	ErrNotFound = errors.New("creditshare: not found")
)

// APIError represents an error response from the CreditShare API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// RetryAfter is set from the Retry-After header on 429 responses.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("creditshare: API error %d [%s]: %s", e.StatusCode, e.Code, e.Message)
}

// Is maps the API error code to the SDK sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrSessionExpired:
		return e.Code == "session_expired"
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// apiErrorWrapper matches the CreditShare API error envelope.
type apiErrorWrapper struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseAPIError(resp *http.Response, body []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Code:       "unknown",
		Message:    string(body),
	}

	var wrapper apiErrorWrapper
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Code != "" {
		apiErr.Code = wrapper.Error.Code
		apiErr.Message = wrapper.Error.Message
	}
	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(seconds) * time.Second
	}
	return apiErr
}

// IsAPIError checks whether err is an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
