package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/storefront/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures persistence operations for users and their profiles.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	UpdateDetails(ctx context.Context, user models.User) (models.User, error)

	CreateProfile(ctx context.Context, userID int64) (models.Profile, error)
	GetProfile(ctx context.Context, userID int64) (models.Profile, error)
	MarkEmailVerified(ctx context.Context, userID int64) error
}

// OTPStore keeps exactly one code slot per (user, purpose).
type OTPStore interface {
	// Get returns the current code for the pair. Inside a transaction the
	// row stays locked until commit.
	Get(ctx context.Context, userID int64, purpose models.Purpose) (models.OneTimeCode, error)
	// Upsert replaces whatever code the pair held before.
	Upsert(ctx context.Context, code models.OneTimeCode) error
	SetAttemptsLeft(ctx context.Context, userID int64, purpose models.Purpose, attemptsLeft int) error
}

// MembershipStore persists membership entitlements.
type MembershipStore interface {
	Create(ctx context.Context, userID int64) (models.Membership, error)
	Get(ctx context.Context, userID int64) (models.Membership, error)
	GetOrCreate(ctx context.Context, userID int64) (models.Membership, error)
	Save(ctx context.Context, m models.Membership) (models.Membership, error)
}

// PaymentStore persists payment orders.
type PaymentStore interface {
	Create(ctx context.Context, order models.PaymentOrder) (models.PaymentOrder, error)
	GetByOrderID(ctx context.Context, orderID string) (models.PaymentOrder, error)
	// GetForUpdate loads the order and holds an exclusive lock on it for the
	// rest of the enclosing transaction.
	GetForUpdate(ctx context.Context, orderID string) (models.PaymentOrder, error)
	MarkPaid(ctx context.Context, order models.PaymentOrder) error
	MarkFailed(ctx context.Context, orderID, reason string) error
}

// Repos groups the repositories bound to one connection or transaction.
type Repos interface {
	Users() UserStore
	OTPs() OTPStore
	Memberships() MembershipStore
	Payments() PaymentStore
}

// Store is the unit-of-work entry point handed to the flows.
type Store interface {
	Repos
	// WithTx runs fn with repositories bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error
	Close()
}
