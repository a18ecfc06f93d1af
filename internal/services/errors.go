// Package services holds the business rules behind the REST API.
package services

import (
	"errors"

	"fintrack/internal/core"
)

var (
	// ErrInvalidInput marks request problems not covered by a core sentinel.
	ErrInvalidInput = core.ErrInvalidInput

	ErrEmailRequired      = errors.New("Email is required")
	ErrPINRequired        = errors.New("PIN is required")
	ErrEmailNotRegistered = errors.New("Email not registered")
	ErrInvalidPIN         = errors.New("Invalid or expired PIN")
	ErrInvalidSession     = errors.New("Invalid or expired session")
)
