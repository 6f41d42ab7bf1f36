package models

import "time"

// Purpose names the lane a one-time code was issued for. Codes for different
// purposes never interfere with each other.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposePasswordReset Purpose = "password_reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeVerifyEmail, PurposePasswordReset:
		return true
	}
	return false
}

// OneTimeCode is the single active code slot for a (user, purpose) pair.
// Only the salted HMAC of the code is stored.
type OneTimeCode struct {
	UserID       int64
	Purpose      Purpose
	CodeHash     string
	Salt         string
	ExpiresAt    time.Time
	AttemptsLeft int
	LastSentAt   time.Time
	CreatedAt    time.Time
}

// Expired reports whether the code can no longer be used at now.
func (c OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
