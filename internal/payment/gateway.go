// Package payment creates gateway orders for membership purchases and turns
// verified checkout callbacks into membership time.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrGateway wraps every failure talking to the payment gateway.
var ErrGateway = errors.New("payment gateway error")

// OrderRequest is what the gateway needs to open an order.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Gateway is the hosted checkout provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// DefaultBaseURL is the Razorpay API root.
const DefaultBaseURL = "https://api.razorpay.com"

// RazorpayClient talks to the Razorpay orders API.
type RazorpayClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Gateway = (*RazorpayClient)(nil)

// NewRazorpayClient returns a client for baseURL, or DefaultBaseURL when empty.
func NewRazorpayClient(baseURL, keyID, keySecret string, logger *zap.Logger) *RazorpayClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &RazorpayClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type createOrderBody struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	PaymentCapture int               `json:"payment_capture"`
	Notes          map[string]string `json:"notes,omitempty"`
}

type createOrderResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrder opens an auto-capture order and returns its gateway id.
func (c *RazorpayClient) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	payload, err := json.Marshal(createOrderBody{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Receipt:        req.Receipt,
		PaymentCapture: 1,
		Notes:          req.Notes,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal order: %v", ErrGateway, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrGateway, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("gateway order request failed", zap.String("receipt", req.Receipt), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("gateway returned non-OK status",
			zap.String("receipt", req.Receipt),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return "", fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	var result createOrderResult
	if err := json.Unmarshal(body, &result); err != nil || result.ID == "" {
		return "", fmt.Errorf("%w: unexpected order response", ErrGateway)
	}
	c.logger.Info("gateway order created", zap.String("order_id", result.ID), zap.String("receipt", req.Receipt))
	return result.ID, nil
}

// VerifySignature checks a checkout callback signature.
func (c *RazorpayClient) VerifySignature(orderID, paymentID, signature string) bool {
	return CheckSignature(c.keySecret, orderID, paymentID, signature)
}

// Sign returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// CheckSignature compares signature with the expected value in constant time.
// An empty secret never verifies.
func CheckSignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" {
		return false
	}
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
