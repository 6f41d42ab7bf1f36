package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hongminglow/storefront/internal/accounts"
	"github.com/hongminglow/storefront/internal/http/respond"
	"github.com/hongminglow/storefront/internal/notify"
	"github.com/hongminglow/storefront/internal/otp"
	"github.com/hongminglow/storefront/internal/payment"
	"github.com/hongminglow/storefront/internal/storage"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

// writeError maps flow errors onto the response envelope. Unknown errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		validation  *accounts.ValidationError
		payValidate *payment.ValidationError
		unverified  *accounts.UnverifiedError
		throttled   *otp.ThrottledError
		invalidCode *otp.InvalidError
	)
	switch {
	case errors.As(err, &validation):
		respond.Fail(w, http.StatusBadRequest, validation.Message, map[string]string{"field": validation.Field})
	case errors.As(err, &payValidate):
		respond.Error(w, http.StatusBadRequest, payValidate.Error())
	case errors.As(err, &unverified):
		respond.Fail(w, http.StatusForbidden, "email not verified, a new code was sent", map[string]int64{"user_id": unverified.UserID})
	case errors.As(err, &throttled):
		w.Header().Set("Retry-After", strconv.Itoa(throttled.RetrySeconds()))
		respond.Fail(w, http.StatusTooManyRequests, throttled.Error(), map[string]int{"retry_after_seconds": throttled.RetrySeconds()})
	case errors.As(err, &invalidCode):
		respond.Fail(w, http.StatusBadRequest, invalidCode.Error(), map[string]int{"attempts_left": invalidCode.AttemptsLeft})
	case errors.Is(err, accounts.ErrInvalidCredentials):
		respond.Error(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, accounts.ErrSessionExpired):
		respond.Error(w, http.StatusGone, accounts.ErrSessionExpired.Error())
	case errors.Is(err, accounts.ErrAlreadyVerified):
		respond.Error(w, http.StatusConflict, accounts.ErrAlreadyVerified.Error())
	case errors.Is(err, accounts.ErrUserNotFound):
		respond.Error(w, http.StatusNotFound, accounts.ErrUserNotFound.Error())
	case errors.Is(err, storage.ErrAlreadyExists):
		respond.Error(w, http.StatusConflict, "username or email is already in use")
	case errors.Is(err, notify.ErrDelivery):
		logger.Error("notification delivery failed", zap.Error(err))
		respond.Error(w, http.StatusBadGateway, "could not send email, try again")
	case errors.Is(err, payment.ErrGateway):
		logger.Error("payment gateway failed", zap.Error(err))
		respond.Error(w, http.StatusBadGateway, "payment provider unavailable, try again")
	case errors.Is(err, payment.ErrSignatureRejected):
		respond.Error(w, http.StatusBadRequest, payment.ErrSignatureRejected.Error())
	case errors.Is(err, payment.ErrOrderNotFound):
		respond.Error(w, http.StatusNotFound, payment.ErrOrderNotFound.Error())
	case errors.Is(err, payment.ErrInvalidTransition):
		respond.Error(w, http.StatusConflict, payment.ErrInvalidTransition.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
