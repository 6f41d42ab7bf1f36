// Package membership computes paid entitlement periods.
package membership

import (
	"time"

	"github.com/hongminglow/storefront/internal/models"
)

// DefaultPeriodDays is the length of one paid period.
const DefaultPeriodDays = 30

// Extend adds days to m and activates it. Time is added to the current expiry
// while it is still in the future, so early renewals stack; lapsed or
// never-paid memberships, and fromNow renewals, restart at now.
func Extend(m *models.Membership, now time.Time, days int, fromNow bool) {
	base := now
	if !fromNow && m.ExpiresAt != nil && !m.ExpiresAt.Before(now) {
		base = *m.ExpiresAt
	}
	expires := base.AddDate(0, 0, days)
	m.ExpiresAt = &expires
	m.Active = true
}
