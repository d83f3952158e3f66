// Package common defines shared constants and sentinel errors used across
// the credkeeper server, its transports and the admin CLI. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Directory errors.
	ErrDuplicateEmail = errors.New("email already registered")
	ErrUserNotFound   = errors.New("user not found")

	// Login errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotVerified = errors.New("account not verified")

	// Token lifecycle errors.
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenRevoked     = errors.New("token revoked")
	ErrTokenAlreadyUsed = errors.New("token already used")

	// ErrTokenInvalid covers signature and format failures of access tokens.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrInvalidOrExpiredToken is the only failure account verification
	// reports to callers, whatever the underlying ledger outcome was.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)
