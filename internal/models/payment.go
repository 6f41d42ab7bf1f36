package models

import (
	"encoding/json"
	"time"
)

// OrderStatus is the lifecycle state of a PaymentOrder.
type OrderStatus string

const (
	OrderCreated OrderStatus = "created"
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
)

// PaymentOrder mirrors a gateway order placed by a user.
type PaymentOrder struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	OrderID       string          `json:"order_id"`
	PaymentID     string          `json:"payment_id,omitempty"`
	Signature     string          `json:"-"`
	Status        OrderStatus     `json:"status"`
	Receipt       string          `json:"receipt"`
	Notes         json.RawMessage `json:"notes,omitempty"`
	Callback      json.RawMessage `json:"-"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
}
