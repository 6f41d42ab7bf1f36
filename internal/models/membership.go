package models

import "time"

// Membership is the paid entitlement attached to every user.
type Membership struct {
	UserID    int64      `json:"user_id"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsActive reports whether the entitlement is in force at now.
func (m Membership) IsActive(now time.Time) bool {
	return m.Active && (m.ExpiresAt == nil || m.ExpiresAt.After(now))
}
