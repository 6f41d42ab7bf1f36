package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hongminglow/storefront/internal/auth"
	"github.com/hongminglow/storefront/internal/logging"
	"github.com/hongminglow/storefront/internal/membership"
	"github.com/hongminglow/storefront/internal/models"
	"github.com/hongminglow/storefront/internal/storage/memory"
)

func TestRequireUser(t *testing.T) {
	tokens := auth.NewTokenManager("secret", "storefront", time.Hour)
	token, err := tokens.Generate(models.User{ID: 9, Username: "asha"})
	require.NoError(t, err)

	var seen int64
	h := RequireUser(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := map[string]struct {
		header string
		status int
	}{
		"valid":   {"Bearer " + token, http.StatusNoContent},
		"missing": {"", http.StatusUnauthorized},
		"scheme":  {"Basic " + token, http.StatusUnauthorized},
		"garbage": {"Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Equal(t, int64(9), seen)
}

func TestRequireMembership(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	h := RequireMembership(store.Memberships(), zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(userID int64) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithUserID(req.Context(), userID))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, serve(1))

	m, err := store.Memberships().GetOrCreate(ctx, 1)
	require.NoError(t, err)
	membership.Extend(&m, time.Now(), membership.DefaultPeriodDays, false)
	_, err = store.Memberships().Save(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(1))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoggingRecordsRequestAndClientIP(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var ipInHandler string
	h := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ipInHandler = logging.ClientIP(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/accounts/login", nil)
	req.RemoteAddr = "203.0.113.7:52311"
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.7", ipInHandler)
	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, "/api/accounts/login", fields["path"])
	assert.Equal(t, "203.0.113.7", fields["ip"])
}
