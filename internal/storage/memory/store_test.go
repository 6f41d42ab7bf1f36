package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/storefront/internal/models"
	"github.com/hongminglow/storefront/internal/storage"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx storage.Repos) error {
		u, err := tx.Users().CreateUser(ctx, models.User{Username: "asha", Email: "asha@example.com"})
		require.NoError(t, err)
		_, err = tx.Memberships().Create(ctx, u.ID)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Users().FindByUsername(ctx, "asha")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.Memberships().Get(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(ctx context.Context, tx storage.Repos) error {
			_, _ = tx.Users().CreateUser(ctx, models.User{Username: "asha", Email: "asha@example.com"})
			panic("kaboom")
		})
	})
	_, err := s.Users().FindByEmail(ctx, "asha@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUsersAreUniqueCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.Users().CreateUser(ctx, models.User{Username: "asha", Email: "Asha@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", u.Email)

	_, err = s.Users().CreateUser(ctx, models.User{Username: "other", Email: "ASHA@example.com"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	found, err := s.Users().FindByUsernameOrEmail(ctx, "asha@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = s.Users().CreateUser(ctx, models.User{Username: "ASHA", Email: "second@example.com"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	for _, name := range []string{"ASHA", "Asha"} {
		found, err = s.Users().FindByUsername(ctx, name)
		require.NoError(t, err, name)
		assert.Equal(t, u.ID, found.ID)
		found, err = s.Users().FindByUsernameOrEmail(ctx, name)
		require.NoError(t, err, name)
		assert.Equal(t, u.ID, found.ID)
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	ctx := context.Background()
	s := New()
	payments := s.Payments()

	_, err := payments.Create(ctx, models.PaymentOrder{UserID: 1, OrderID: "order_1", Receipt: "r1", Status: models.OrderCreated})
	require.NoError(t, err)
	_, err = payments.Create(ctx, models.PaymentOrder{UserID: 1, OrderID: "order_2", Receipt: "r1", Status: models.OrderCreated})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists, "receipts are unique")

	require.NoError(t, payments.MarkPaid(ctx, models.PaymentOrder{OrderID: "order_1", PaymentID: "pay_1"}))
	assert.ErrorIs(t, payments.MarkPaid(ctx, models.PaymentOrder{OrderID: "order_1", PaymentID: "pay_2"}), storage.ErrNotFound)
	assert.ErrorIs(t, payments.MarkFailed(ctx, "order_1", "late"), storage.ErrNotFound)

	o, err := payments.GetByOrderID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, o.Status)
	assert.Equal(t, "pay_1", o.PaymentID)
}
