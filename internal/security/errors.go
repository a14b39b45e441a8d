package security

import (
	"errors"
	"fmt"
	"time"
)

// Authorization and side-channel errors
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionExpired is an ErrUnauthenticated that asks the client to log in again.
	ErrSessionExpired     = fmt.Errorf("%w: admin session expired due to inactivity", ErrUnauthenticated)
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("too many failed login attempts")
	ErrNotFound           = errors.New("not found")
	ErrDeliveryFailure    = errors.New("alert delivery failed")
	ErrPersistenceFailure = errors.New("audit persistence failed")
)

// RateLimitError is returned by the login throttle. It matches ErrRateLimited.
type RateLimitError struct {
	Failures   int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %d failures, retry in %s", ErrRateLimited, e.Failures, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
