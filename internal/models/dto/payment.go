package dto

import "github.com/hongminglow/storefront/internal/models"

type CreateOrderResponse struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"razorpay_key_id"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type VerifyPaymentResponse struct {
	OK         bool              `json:"ok"`
	Duplicate  bool              `json:"duplicate"`
	Membership models.Membership `json:"membership"`
}

type FailOrderRequest struct {
	Reason string `json:"reason"`
}

type MembershipResponse struct {
	Membership models.Membership `json:"membership"`
	IsActive   bool              `json:"is_active"`
}
