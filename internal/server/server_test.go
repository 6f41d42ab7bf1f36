package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/storefront/internal/accounts"
	"github.com/hongminglow/storefront/internal/auth"
	"github.com/hongminglow/storefront/internal/config"
	"github.com/hongminglow/storefront/internal/models"
	"github.com/hongminglow/storefront/internal/otp"
	"github.com/hongminglow/storefront/internal/payment"
	"github.com/hongminglow/storefront/internal/session"
	"github.com/hongminglow/storefront/internal/storage/memory"
)

const gatewaySecret = "rzp-secret"

type captureSender struct {
	codes map[models.Purpose]string
}

func (c *captureSender) Send(_ context.Context, _ models.User, purpose models.Purpose, code string) error {
	c.codes[purpose] = code
	return nil
}

type fakeGateway struct{ next int }

func (g *fakeGateway) CreateOrder(context.Context, payment.OrderRequest) (string, error) {
	g.next++
	return fmt.Sprintf("order_%d", g.next), nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return payment.CheckSignature(gatewaySecret, orderID, paymentID, signature)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t      *testing.T
	srv    *httptest.Server
	sender *captureSender
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.New()
	engine, err := otp.NewEngine(otp.DefaultConfig("otp-secret"))
	require.NoError(t, err)
	sender := &captureSender{codes: map[models.Purpose]string{}}
	tokens := auth.NewTokenManager("jwt-secret", "storefront-test", time.Hour)
	logger := zap.NewNop()

	deps := Deps{
		Store: store,
		Accounts: accounts.NewService(store, engine, sender, session.NewMemoryMarkers(nil), tokens, logger,
			accounts.WithHashCost(bcrypt.MinCost)),
		Payments: payment.NewService(store, &fakeGateway{}, payment.DefaultConfig("rzp_test_key"), logger),
		Tokens:   tokens,
		Logger:   logger,
	}
	cfg := config.Config{Port: "0", CORSOrigins: []string{"https://shop.example"}}
	srv := httptest.NewServer(NewRouter(cfg, deps))
	t.Cleanup(srv.Close)
	return &testAPI{t: t, srv: srv, sender: sender}
}

func (a *testAPI) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	status, env := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"status":"ok"`)
}

func TestMembershipJourney(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.do(http.MethodPost, "/api/accounts/signup", "", map[string]string{
		"username": "asha", "email": "asha@example.com",
		"password1": "s3cret-pass", "password2": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.NotContains(t, string(env.Data), "password")

	status, env = api.do(http.MethodPost, "/api/accounts/login", "", map[string]string{"identifier": "asha", "password": "s3cret-pass"})
	require.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, string(env.Data), fmt.Sprintf(`"user_id":%d`, user.ID))

	status, _ = api.do(http.MethodPost, fmt.Sprintf("/api/accounts/verify/%d", user.ID), "", map[string]string{"otp": "not-it"})
	require.Equal(t, http.StatusBadRequest, status)

	code := api.sender.codes[models.PurposeVerifyEmail]
	status, env = api.do(http.MethodPost, fmt.Sprintf("/api/accounts/verify/%d", user.ID), "", map[string]string{"otp": code})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = api.do(http.MethodPost, "/api/accounts/login", "", map[string]string{"identifier": "asha@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	token := login.Token

	status, _ = api.do(http.MethodGet, "/api/membership/content", token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = api.do(http.MethodPost, "/api/membership/orders", token, nil)
	require.Equal(t, http.StatusCreated, status, env.Message)
	var order struct {
		OrderID string `json:"order_id"`
		Amount  int64  `json:"amount"`
		KeyID   string `json:"razorpay_key_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, int64(2500), order.Amount)
	assert.Equal(t, "rzp_test_key", order.KeyID)

	callback := map[string]string{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "deadbeef",
	}
	status, _ = api.do(http.MethodPost, "/api/membership/orders/verify", token, callback)
	assert.Equal(t, http.StatusBadRequest, status)

	callback["razorpay_signature"] = payment.Sign(gatewaySecret, order.OrderID, "pay_1")
	status, env = api.do(http.MethodPost, "/api/membership/orders/verify", token, callback)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Contains(t, string(env.Data), `"duplicate":false`)

	status, env = api.do(http.MethodPost, "/api/membership/orders/verify", token, callback)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"duplicate":true`)

	status, _ = api.do(http.MethodGet, "/api/membership/content", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = api.do(http.MethodGet, "/api/membership", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"is_active":true`)

	status, _ = api.do(http.MethodPost, "/api/membership/orders/"+order.OrderID+"/fail", token, map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	status, _ := api.do(http.MethodPost, "/api/accounts/signup", "", map[string]string{
		"username": "ravi", "email": "ravi@example.com",
		"password1": "s3cret-pass", "password2": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, status)

	status, _ = api.do(http.MethodPost, "/api/accounts/password-reset", "", map[string]string{"email": "ravi@example.com"})
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodPost, "/api/accounts/password-reset", "", map[string]string{"email": "ravi@example.com"})
	require.Equal(t, http.StatusTooManyRequests, status)

	status, env := api.do(http.MethodPost, "/api/accounts/password-reset/verify", "", map[string]string{
		"email": "ravi@example.com", "otp": api.sender.codes[models.PurposePasswordReset],
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var verified struct {
		ResetToken string `json:"reset_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &verified))

	set := map[string]string{"reset_token": verified.ResetToken, "new_password1": "brand-new-pass", "new_password2": "brand-new-pass"}
	status, _ = api.do(http.MethodPost, "/api/accounts/password-reset/set", "", set)
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodPost, "/api/accounts/password-reset/set", "", set)
	assert.Equal(t, http.StatusGone, status)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/api/accounts/me", "/api/membership", "/api/membership/content"} {
		status, _ := api.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		status, _ = api.do(http.MethodGet, path, "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
	}
	status, _ := api.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)
	req, err := http.NewRequest(http.MethodOptions, api.srv.URL+"/api/accounts/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://shop.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
