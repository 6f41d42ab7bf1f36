package otp

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrThrottled = errors.New("please wait before requesting another OTP")

	ErrNotFound  = errors.New("no OTP found, please request a new one")
	ErrExpired   = errors.New("OTP has expired, request a new one")
	ErrLocked    = errors.New("too many wrong attempts, request a new OTP")
	ErrIncorrect = errors.New("incorrect OTP")
)

// ThrottledError is returned by Issue when the previous code is too recent.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s (retry in %ds)", ErrThrottled, e.RetrySeconds())
}

func (e *ThrottledError) Unwrap() error { return ErrThrottled }

// RetrySeconds rounds the wait up to whole seconds.
func (e *ThrottledError) RetrySeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// InvalidError explains why a submitted code was not accepted. Reason is one
// of ErrNotFound, ErrExpired, ErrLocked or ErrIncorrect.
type InvalidError struct {
	Reason       error
	AttemptsLeft int
}

func (e *InvalidError) Error() string {
	if errors.Is(e.Reason, ErrIncorrect) {
		return fmt.Sprintf("%s, %d attempts left", e.Reason, e.AttemptsLeft)
	}
	return e.Reason.Error()
}

func (e *InvalidError) Unwrap() error { return e.Reason }
