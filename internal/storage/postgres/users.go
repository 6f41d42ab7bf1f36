package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/storefront/internal/models"
	"github.com/hongminglow/storefront/internal/storage"
)

var _ storage.UserStore = (*UserRepo)(nil)

// UserRepo stores users and their profiles.
type UserRepo struct {
	db DBTX
}

const userColumns = `id, username, email, first_name, last_name, password_hash, created_at`

// CreateUser inserts a new user row.
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (username, email, first_name, last_name, password_hash)
		VALUES ($1, lower($2), $3, $4, $5)
		RETURNING ` + userColumns
	row := r.db.QueryRow(ctx, query, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash)
	return scanUser(row)
}

// FindByID fetches a user by primary key.
func (r *UserRepo) FindByID(ctx context.Context, id int64) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// FindByUsername fetches a user by username, ignoring case.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower($1)`
	return scanUser(r.db.QueryRow(ctx, query, username))
}

// FindByEmail fetches a user by email address, ignoring case.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// FindByUsernameOrEmail fetches the first user matching the identifier as username or email.
func (r *UserRepo) FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(username) = lower($1) OR lower(email) = lower($1)
		ORDER BY (lower(username) = lower($1)) DESC
		LIMIT 1`
	return scanUser(r.db.QueryRow(ctx, query, identifier))
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateDetails changes the editable identity fields. Email is left alone.
func (r *UserRepo) UpdateDetails(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		UPDATE users SET username = $2, first_name = $3, last_name = $4
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, user.ID, user.Username, user.FirstName, user.LastName))
}

// CreateProfile inserts the unverified profile row for a user.
func (r *UserRepo) CreateProfile(ctx context.Context, userID int64) (models.Profile, error) {
	const query = `
		INSERT INTO profiles (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, is_email_verified, updated_at`
	return scanProfile(r.db.QueryRow(ctx, query, userID))
}

// GetProfile fetches the profile of a user.
func (r *UserRepo) GetProfile(ctx context.Context, userID int64) (models.Profile, error) {
	const query = `SELECT user_id, is_email_verified, updated_at FROM profiles WHERE user_id = $1`
	return scanProfile(r.db.QueryRow(ctx, query, userID))
}

// MarkEmailVerified flips the verification flag. The flag never goes back to false.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, userID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE profiles SET is_email_verified = TRUE, updated_at = NOW() WHERE user_id = $1`, userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName, &user.PasswordHash, &user.CreatedAt); err != nil {
		return models.User{}, mapError(err)
	}
	return user, nil
}

func scanProfile(row pgx.Row) (models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.UserID, &p.IsEmailVerified, &p.UpdatedAt); err != nil {
		return models.Profile{}, mapError(err)
	}
	return p, nil
}
