package postgres

import (
	"context"

	"github.com/hongminglow/storefront/internal/models"
	"github.com/hongminglow/storefront/internal/storage"
)

var _ storage.OTPStore = (*OTPRepo)(nil)

// OTPRepo keeps the single code slot per (user, purpose).
type OTPRepo struct {
	db DBTX
}

// Get loads the code slot, locking it when called inside a transaction.
func (r *OTPRepo) Get(ctx context.Context, userID int64, purpose models.Purpose) (models.OneTimeCode, error) {
	const query = `
		SELECT user_id, purpose, code_hash, salt, expires_at, attempts_left, last_sent_at, created_at
		FROM one_time_codes
		WHERE user_id = $1 AND purpose = $2
		FOR UPDATE`
	var c models.OneTimeCode
	var purposeText string
	err := r.db.QueryRow(ctx, query, userID, string(purpose)).Scan(
		&c.UserID, &purposeText, &c.CodeHash, &c.Salt, &c.ExpiresAt, &c.AttemptsLeft, &c.LastSentAt, &c.CreatedAt,
	)
	if err != nil {
		return models.OneTimeCode{}, mapError(err)
	}
	c.Purpose = models.Purpose(purposeText)
	return c, nil
}

// Upsert stores a freshly issued code, replacing the previous one.
func (r *OTPRepo) Upsert(ctx context.Context, c models.OneTimeCode) error {
	const query = `
		INSERT INTO one_time_codes (user_id, purpose, code_hash, salt, expires_at, attempts_left, last_sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, purpose) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			salt = EXCLUDED.salt,
			expires_at = EXCLUDED.expires_at,
			attempts_left = EXCLUDED.attempts_left,
			last_sent_at = EXCLUDED.last_sent_at,
			created_at = EXCLUDED.created_at`
	_, err := r.db.Exec(ctx, query,
		c.UserID, string(c.Purpose), c.CodeHash, c.Salt, c.ExpiresAt, c.AttemptsLeft, c.LastSentAt, c.CreatedAt)
	return mapError(err)
}

// SetAttemptsLeft records the remaining verification attempts.
func (r *OTPRepo) SetAttemptsLeft(ctx context.Context, userID int64, purpose models.Purpose, attemptsLeft int) error {
	const query = `
		UPDATE one_time_codes SET attempts_left = GREATEST($3, 0)
		WHERE user_id = $1 AND purpose = $2`
	tag, err := r.db.Exec(ctx, query, userID, string(purpose), attemptsLeft)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
