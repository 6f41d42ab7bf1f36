package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRazorpayCreateOrder(t *testing.T) {
	var got createOrderBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "shh", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_1","status":"created"}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL+"/", "rzp_test_key", "shh", zap.NewNop())
	id, err := c.CreateOrder(context.Background(), OrderRequest{
		Amount:   2500,
		Currency: "INR",
		Receipt:  "rcpt-1",
		Notes:    map[string]string{"user_id": "7"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_1", id)
	assert.Equal(t, int64(2500), got.Amount)
	assert.Equal(t, 1, got.PaymentCapture)
	assert.Equal(t, "7", got.Notes["user_id"])
}

func TestRazorpayCreateOrderErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-2xx": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":{"code":"BAD_REQUEST_ERROR"}}`, http.StatusBadRequest)
		},
		"missing id": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			c := NewRazorpayClient(srv.URL, "k", "s", zap.NewNop())
			_, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR", Receipt: "r"})
			assert.ErrorIs(t, err, ErrGateway)
		})
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewRazorpayClient(srv.URL, "k", "s", zap.NewNop())
	_, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR", Receipt: "r"})
	assert.ErrorIs(t, err, ErrGateway, "transport errors")
}

func TestSignature(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")
	assert.Len(t, sig, 64)

	c := NewRazorpayClient("", "k", "secret", zap.NewNop())
	assert.True(t, c.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, c.VerifySignature("order_1", "pay_2", sig))
	assert.False(t, c.VerifySignature("order_1", "pay_1", Sign("other", "order_1", "pay_1")))
	assert.False(t, c.VerifySignature("order_1", "pay_1", ""))
}

func TestSignatureRequiresSecret(t *testing.T) {
	c := NewRazorpayClient("", "k", "", zap.NewNop())
	assert.False(t, c.VerifySignature("order_1", "pay_1", Sign("", "order_1", "pay_1")))
	assert.False(t, CheckSignature("", "order_1", "pay_1", Sign("", "order_1", "pay_1")))
}
