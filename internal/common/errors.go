// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrInvalidCredentials is returned for every login failure. The message
	// is deliberately the same for an unknown email and a wrong password so
	// that callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid login credentials supplied")

	// Auth errors (invalid, malformed, or wrongly signed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// ErrOwnerNotFound means a refresh token references a user that no
	// longer exists.
	ErrOwnerNotFound = errors.New("token owner not found")
)
