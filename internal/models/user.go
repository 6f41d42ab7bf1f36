package models

import "time"

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the one-to-one companion of a User.
type Profile struct {
	UserID          int64     `json:"user_id"`
	IsEmailVerified bool      `json:"is_email_verified"`
	UpdatedAt       time.Time `json:"updated_at"`
}
