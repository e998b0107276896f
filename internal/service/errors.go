package service

import "errors"

// Failure taxonomy surfaced to the transport layer. Login and password
// change deliberately share ErrInvalidCredentials so callers cannot tell an
// unknown email from a wrong password.
var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrAccountNotFound     = errors.New("account not found")
	ErrQuotaExceeded       = errors.New("monthly conversion limit reached")
)
