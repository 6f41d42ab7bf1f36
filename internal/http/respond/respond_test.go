package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopes(t *testing.T) {
	cases := map[string]struct {
		write func(w http.ResponseWriter)
		body  string
	}{
		"json": {
			func(w http.ResponseWriter) { JSON(w, http.StatusCreated, "created", map[string]int64{"id": 3}) },
			`{"code":201,"message":"created","data":{"id":3}}`,
		},
		"error": {
			func(w http.ResponseWriter) { Error(w, http.StatusGone, "session expired") },
			`{"code":410,"message":"session expired"}`,
		},
		"fail": {
			func(w http.ResponseWriter) {
				Fail(w, http.StatusTooManyRequests, "slow down", map[string]int{"retry_after_seconds": 42})
			},
			`{"code":429,"message":"slow down","data":{"retry_after_seconds":42}}`,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.write(rec)

			var env Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, env.Code, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		})
	}
}
