package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/storefront/internal/auth"
	"github.com/hongminglow/storefront/internal/http/respond"
	"github.com/hongminglow/storefront/internal/storage"
)

type ctxKey int

const userIDKey ctxKey = iota

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the id stored by RequireUser.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// RequireUser rejects requests without a valid "Bearer" session token.
func RequireUser(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				respond.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			claims, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// RequireMembership lets through only users whose membership is active. It
// must run after RequireUser.
func RequireMembership(memberships storage.MembershipStore, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserID(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			m, err := memberships.GetOrCreate(r.Context(), userID)
			if err != nil {
				logger.Error("load membership", zap.Int64("user_id", userID), zap.Error(err))
				respond.Error(w, http.StatusInternalServerError, "failed to load membership")
				return
			}
			if !m.IsActive(time.Now()) {
				respond.Error(w, http.StatusForbidden, "an active membership is required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
