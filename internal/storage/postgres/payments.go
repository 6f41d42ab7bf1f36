package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/storefront/internal/models"
	"github.com/hongminglow/storefront/internal/storage"
)

var _ storage.PaymentStore = (*PaymentRepo)(nil)

// PaymentRepo stores gateway orders.
type PaymentRepo struct {
	db DBTX
}

const orderColumns = `id, user_id, amount, currency, order_id, payment_id, signature, status, receipt,
	notes, callback, failure_reason, created_at, paid_at`

// Create records a freshly created gateway order.
func (r *PaymentRepo) Create(ctx context.Context, o models.PaymentOrder) (models.PaymentOrder, error) {
	const query = `
		INSERT INTO payment_orders (user_id, amount, currency, order_id, status, receipt, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + orderColumns
	row := r.db.QueryRow(ctx, query, o.UserID, o.Amount, o.Currency, o.OrderID, string(o.Status), o.Receipt, jsonOrEmpty(o.Notes))
	return scanOrder(row)
}

// GetByOrderID fetches an order by its gateway id.
func (r *PaymentRepo) GetByOrderID(ctx context.Context, orderID string) (models.PaymentOrder, error) {
	const query = `SELECT ` + orderColumns + ` FROM payment_orders WHERE order_id = $1`
	return scanOrder(r.db.QueryRow(ctx, query, orderID))
}

// GetForUpdate fetches an order and row-locks it until the transaction ends.
func (r *PaymentRepo) GetForUpdate(ctx context.Context, orderID string) (models.PaymentOrder, error) {
	const query = `SELECT ` + orderColumns + ` FROM payment_orders WHERE order_id = $1 FOR UPDATE`
	return scanOrder(r.db.QueryRow(ctx, query, orderID))
}

// MarkPaid moves a created order to paid. Orders in any other state are left untouched.
func (r *PaymentRepo) MarkPaid(ctx context.Context, o models.PaymentOrder) error {
	const query = `
		UPDATE payment_orders
		SET status = 'paid', payment_id = $2, signature = $3, callback = $4, paid_at = $5
		WHERE order_id = $1 AND status = 'created'`
	tag, err := r.db.Exec(ctx, query, o.OrderID, o.PaymentID, o.Signature, jsonOrEmpty(o.Callback), o.PaidAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkFailed moves a created order to failed.
func (r *PaymentRepo) MarkFailed(ctx context.Context, orderID, reason string) error {
	const query = `
		UPDATE payment_orders SET status = 'failed', failure_reason = $2
		WHERE order_id = $1 AND status = 'created'`
	tag, err := r.db.Exec(ctx, query, orderID, reason)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func jsonOrEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}

func scanOrder(row pgx.Row) (models.PaymentOrder, error) {
	var o models.PaymentOrder
	var status string
	var notes, callback []byte
	err := row.Scan(
		&o.ID, &o.UserID, &o.Amount, &o.Currency, &o.OrderID, &o.PaymentID, &o.Signature, &status, &o.Receipt,
		&notes, &callback, &o.FailureReason, &o.CreatedAt, &o.PaidAt,
	)
	if err != nil {
		return models.PaymentOrder{}, mapError(err)
	}
	o.Status = models.OrderStatus(status)
	o.Notes = notes
	o.Callback = callback
	return o, nil
}
