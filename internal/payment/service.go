package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hongminglow/storefront/internal/membership"
	"github.com/hongminglow/storefront/internal/models"
	"github.com/hongminglow/storefront/internal/storage"
)

var (
	ErrSignatureRejected = errors.New("payment signature verification failed")
	ErrOrderNotFound     = errors.New("order not found")
	// ErrInvalidTransition reports a status change the order lifecycle forbids.
	ErrInvalidTransition = errors.New("order cannot change to the requested status")
)

// ValidationError reports a missing or malformed callback field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing or invalid " + e.Field
}

// Config is the membership price list.
type Config struct {
	Price      int64
	Currency   string
	KeyID      string
	PeriodDays int
}

// DefaultConfig charges 2500 paise (INR 25) for 30 days.
func DefaultConfig(keyID string) Config {
	return Config{
		Price:      2500,
		Currency:   "INR",
		KeyID:      keyID,
		PeriodDays: membership.DefaultPeriodDays,
	}
}

// Service runs the checkout flow.
type Service struct {
	store   storage.Store
	gateway Gateway
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the checkout flow.
func NewService(store storage.Store, gateway Gateway, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if cfg.PeriodDays <= 0 {
		cfg.PeriodDays = membership.DefaultPeriodDays
	}
	s := &Service{store: store, gateway: gateway, cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OrderInfo is what the browser needs to open the hosted checkout.
type OrderInfo struct {
	OrderID  string
	Amount   int64
	Currency string
	KeyID    string
}

// CreateOrder opens a gateway order for one membership period and records it.
// Nothing is persisted when the gateway call fails.
func (s *Service) CreateOrder(ctx context.Context, userID int64) (OrderInfo, error) {
	receipt := uuid.NewString()
	notes := map[string]string{
		"user_id": strconv.FormatInt(userID, 10),
		"type":    "membership_month",
	}
	orderID, err := s.gateway.CreateOrder(ctx, OrderRequest{
		Amount:   s.cfg.Price,
		Currency: s.cfg.Currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		if !errors.Is(err, ErrGateway) {
			err = fmt.Errorf("%w: %v", ErrGateway, err)
		}
		return OrderInfo{}, err
	}

	rawNotes, err := json.Marshal(notes)
	if err != nil {
		return OrderInfo{}, fmt.Errorf("marshal notes: %w", err)
	}
	order, err := s.store.Payments().Create(ctx, models.PaymentOrder{
		UserID:   userID,
		Amount:   s.cfg.Price,
		Currency: s.cfg.Currency,
		OrderID:  orderID,
		Status:   models.OrderCreated,
		Receipt:  receipt,
		Notes:    rawNotes,
	})
	if err != nil {
		return OrderInfo{}, fmt.Errorf("store order: %w", err)
	}

	s.logger.Info("payment order created",
		zap.Int64("user_id", userID),
		zap.String("order_id", order.OrderID),
		zap.Int64("amount", order.Amount))
	return OrderInfo{OrderID: order.OrderID, Amount: order.Amount, Currency: order.Currency, KeyID: s.cfg.KeyID}, nil
}

// Callback is the checkout success payload.
type Callback struct {
	OrderID   string
	PaymentID string
	Signature string
	Raw       json.RawMessage
}

// Activation is the outcome of a verified payment.
type Activation struct {
	Duplicate  bool
	Membership models.Membership
}

// VerifyAndActivate checks the callback signature and, in one transaction,
// marks the order paid and extends the owner's membership. A replay for an
// already paid order changes nothing and reports Duplicate.
func (s *Service) VerifyAndActivate(ctx context.Context, cb Callback) (Activation, error) {
	cb.OrderID = strings.TrimSpace(cb.OrderID)
	cb.PaymentID = strings.TrimSpace(cb.PaymentID)
	cb.Signature = strings.TrimSpace(cb.Signature)
	switch {
	case cb.OrderID == "":
		return Activation{}, &ValidationError{Field: "razorpay_order_id"}
	case cb.PaymentID == "":
		return Activation{}, &ValidationError{Field: "razorpay_payment_id"}
	case cb.Signature == "":
		return Activation{}, &ValidationError{Field: "razorpay_signature"}
	}

	if !s.gateway.VerifySignature(cb.OrderID, cb.PaymentID, cb.Signature) {
		s.logger.Warn("payment signature rejected",
			zap.String("order_id", cb.OrderID),
			zap.String("payment_id", cb.PaymentID))
		return Activation{}, ErrSignatureRejected
	}

	var result Activation
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Repos) error {
		order, err := tx.Payments().GetForUpdate(ctx, cb.OrderID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("load order: %w", err)
		}

		switch order.Status {
		case models.OrderPaid:
			m, err := tx.Memberships().GetOrCreate(ctx, order.UserID)
			if err != nil {
				return fmt.Errorf("load membership: %w", err)
			}
			result = Activation{Duplicate: true, Membership: m}
			return nil
		case models.OrderFailed:
			return ErrInvalidTransition
		}

		now := s.now()
		order.PaymentID = cb.PaymentID
		order.Signature = cb.Signature
		order.Callback = cb.Raw
		order.PaidAt = &now
		if err := tx.Payments().MarkPaid(ctx, order); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		m, err := tx.Memberships().GetOrCreate(ctx, order.UserID)
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}
		membership.Extend(&m, now, s.cfg.PeriodDays, false)
		m, err = tx.Memberships().Save(ctx, m)
		if err != nil {
			return fmt.Errorf("save membership: %w", err)
		}
		result = Activation{Membership: m}
		return nil
	})
	if err != nil {
		return Activation{}, err
	}

	if result.Duplicate {
		s.logger.Info("duplicate payment callback", zap.String("order_id", cb.OrderID))
	} else {
		s.logger.Info("membership activated",
			zap.Int64("user_id", result.Membership.UserID),
			zap.String("order_id", cb.OrderID),
			zap.String("payment_id", cb.PaymentID),
			zap.Timep("expires_at", result.Membership.ExpiresAt))
	}
	return result, nil
}

// MarkFailed records a checkout failure reported by the order's owner.
// Repeating it for an already failed order is a no-op.
func (s *Service) MarkFailed(ctx context.Context, userID int64, orderID, reason string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return &ValidationError{Field: "order_id"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "payment failed"
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Repos) error {
		order, err := tx.Payments().GetForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("load order: %w", err)
		}
		if order.UserID != userID {
			return ErrOrderNotFound
		}
		switch order.Status {
		case models.OrderFailed:
			return nil
		case models.OrderPaid:
			return ErrInvalidTransition
		}
		if err := tx.Payments().MarkFailed(ctx, orderID, reason); err != nil {
			return fmt.Errorf("mark order failed: %w", err)
		}
		s.logger.Info("payment order failed", zap.Int64("user_id", userID), zap.String("order_id", orderID), zap.String("reason", reason))
		return nil
	})
}

// Status returns the caller's membership and whether it is currently active.
func (s *Service) Status(ctx context.Context, userID int64) (models.Membership, bool, error) {
	m, err := s.store.Memberships().GetOrCreate(ctx, userID)
	if err != nil {
		return models.Membership{}, false, fmt.Errorf("load membership: %w", err)
	}
	return m, m.IsActive(s.now()), nil
}
