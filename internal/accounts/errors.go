package accounts

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials never says which half of the pair was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email address is not verified")
	ErrAlreadyVerified    = errors.New("email address is already verified")
	ErrSessionExpired     = errors.New("session expired, start again")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError is a correctable problem with submitted form data.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UnverifiedError is returned by Login for accounts whose email has not been
// confirmed. A fresh verification code has been sent when possible.
type UnverifiedError struct {
	UserID int64
}

func (e *UnverifiedError) Error() string { return ErrEmailNotVerified.Error() }

func (e *UnverifiedError) Unwrap() error { return ErrEmailNotVerified }
