package models

import "errors"

var (
	// Store-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// Service-level errors.
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnavailable    = errors.New("service unavailable")
	ErrNotConfigured  = errors.New("not configured")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrSessionRevoked = errors.New("session revoked")
)
