// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Contract violations. These indicate caller bugs, not bad trade data,
	// and should fail loudly and immediately.
	ErrUnknownFinding  = errors.New("unknown finding id")
	ErrBadFixAction    = errors.New("fix action index out of range")
	ErrUnknownDocument = errors.New("unknown document key")

	// Session errors.
	ErrSessionNotFound = errors.New("review session not found")
	ErrSessionComplete = errors.New("review session already complete")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
