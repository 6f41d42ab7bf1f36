package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/storefront/internal/models"
	"github.com/hongminglow/storefront/internal/storage"
)

var _ storage.MembershipStore = (*MembershipRepo)(nil)

// MembershipRepo stores one membership row per user.
type MembershipRepo struct {
	db DBTX
}

// Create inserts the default inactive membership for a user.
func (r *MembershipRepo) Create(ctx context.Context, userID int64) (models.Membership, error) {
	const query = `
		INSERT INTO memberships (user_id) VALUES ($1)
		RETURNING user_id, active, expires_at, updated_at`
	return scanMembership(r.db.QueryRow(ctx, query, userID))
}

// Get fetches the membership of a user.
func (r *MembershipRepo) Get(ctx context.Context, userID int64) (models.Membership, error) {
	const query = `SELECT user_id, active, expires_at, updated_at FROM memberships WHERE user_id = $1 FOR UPDATE`
	return scanMembership(r.db.QueryRow(ctx, query, userID))
}

// GetOrCreate returns the membership, inserting the default row if missing.
func (r *MembershipRepo) GetOrCreate(ctx context.Context, userID int64) (models.Membership, error) {
	const insert = `INSERT INTO memberships (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, insert, userID); err != nil {
		return models.Membership{}, mapError(err)
	}
	return r.Get(ctx, userID)
}

// Save writes the active flag and expiry.
func (r *MembershipRepo) Save(ctx context.Context, m models.Membership) (models.Membership, error) {
	const query = `
		UPDATE memberships SET active = $2, expires_at = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING user_id, active, expires_at, updated_at`
	return scanMembership(r.db.QueryRow(ctx, query, m.UserID, m.Active, m.ExpiresAt))
}

func scanMembership(row pgx.Row) (models.Membership, error) {
	var m models.Membership
	if err := row.Scan(&m.UserID, &m.Active, &m.ExpiresAt, &m.UpdatedAt); err != nil {
		return models.Membership{}, mapError(err)
	}
	return m, nil
}
