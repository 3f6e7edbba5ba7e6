package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRateLimited        = errors.New("too many login attempts")
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrInvalidToken            = errors.New("invalid token")
	ErrExpiredToken            = errors.New("token expired")
	ErrSessionRevokedOrExpired = errors.New("session revoked or expired")
	ErrWrongSessionType        = errors.New("wrong session type")
	ErrPrincipalInactive       = errors.New("principal inactive")

	ErrStorage       = errors.New("storage unavailable")
	ErrConfiguration = errors.New("server misconfigured")

	ErrNotFound = errors.New("not found")
)

// RateLimitedError is returned while an identifier is locked out.
type RateLimitedError struct {
	LockedUntil time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: locked until %s", ErrRateLimited, e.LockedUntil.UTC().Format(time.RFC3339))
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsUnauthorized reports whether err is one of the token or session failures
// that callers must see as a plain "unauthorized".
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrSessionRevokedOrExpired) ||
		errors.Is(err, ErrWrongSessionType) ||
		errors.Is(err, ErrPrincipalInactive)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
