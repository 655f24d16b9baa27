package services

import "errors"

// Service-level failures surfaced to the transport layer. Login failures
// collapse into ErrInvalidCredentials so callers cannot probe which check
// failed (account enumeration).
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrAccountExists      = errors.New("account already exists")
	ErrEmailExists        = errors.New("email already bound")
	ErrValidation         = errors.New("invalid request")
)
