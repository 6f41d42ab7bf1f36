// Package otp issues and verifies short numeric one-time codes delivered by
// email. Only a salted HMAC of each code is stored; the plaintext leaves the
// engine exactly once, as the return value of Issue.
package otp

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/hongminglow/storefront/internal/models"
	"github.com/hongminglow/storefront/internal/storage"
)

// Config controls code shape and lifetime.
type Config struct {
	Length         int
	Expiry         time.Duration
	ResendInterval time.Duration
	MaxAttempts    int
	Secret         string
}

// DefaultConfig mirrors the production settings.
func DefaultConfig(secret string) Config {
	return Config{
		Length:         6,
		Expiry:         10 * time.Minute,
		ResendInterval: 60 * time.Second,
		MaxAttempts:    5,
		Secret:         secret,
	}
}

const (
	minLength = 4
	maxLength = 8
	saltBytes = 8
)

// Engine issues and checks codes against an OTPStore supplied per call, so the
// caller decides which transaction the reads and writes belong to.
type Engine struct {
	cfg      Config
	secret   []byte
	now      func() time.Time
	generate func(digits int) (string, error)
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCodeGenerator replaces the crypto/rand digit source. Tests use it to
// make issued codes predictable.
func WithCodeGenerator(gen func(digits int) (string, error)) Option {
	return func(e *Engine) { e.generate = gen }
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Length < minLength || cfg.Length > maxLength {
		return nil, fmt.Errorf("otp length must be between %d and %d", minLength, maxLength)
	}
	if cfg.Expiry <= 0 {
		return nil, errors.New("otp expiry must be positive")
	}
	if cfg.ResendInterval < 0 {
		return nil, errors.New("otp resend interval must not be negative")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("otp max attempts must be positive")
	}
	if cfg.Secret == "" {
		return nil, errors.New("otp secret is required")
	}
	e := &Engine{cfg: cfg, secret: []byte(cfg.Secret), now: time.Now, generate: randomCode}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// Issue creates a new code for (userID, purpose) unless one was sent less than
// ResendInterval ago. The returned plaintext must be delivered out of band and
// never stored.
func (e *Engine) Issue(ctx context.Context, codes storage.OTPStore, userID int64, purpose models.Purpose) (string, models.OneTimeCode, error) {
	if !purpose.Valid() {
		return "", models.OneTimeCode{}, fmt.Errorf("unknown otp purpose %q", purpose)
	}
	now := e.now()

	latest, err := codes.Get(ctx, userID, purpose)
	switch {
	case err == nil:
		if since := now.Sub(latest.LastSentAt); since < e.cfg.ResendInterval {
			return "", models.OneTimeCode{}, &ThrottledError{RetryAfter: e.cfg.ResendInterval - since}
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return "", models.OneTimeCode{}, fmt.Errorf("load otp: %w", err)
	}

	code, err := e.generate(e.cfg.Length)
	if err != nil {
		return "", models.OneTimeCode{}, fmt.Errorf("generate otp: %w", err)
	}
	salt, err := randomSalt()
	if err != nil {
		return "", models.OneTimeCode{}, fmt.Errorf("generate otp salt: %w", err)
	}

	rec := models.OneTimeCode{
		UserID:       userID,
		Purpose:      purpose,
		CodeHash:     e.hash(salt, code),
		Salt:         salt,
		ExpiresAt:    now.Add(e.cfg.Expiry),
		AttemptsLeft: e.cfg.MaxAttempts,
		LastSentAt:   now,
		CreatedAt:    now,
	}
	if err := codes.Upsert(ctx, rec); err != nil {
		return "", models.OneTimeCode{}, fmt.Errorf("store otp: %w", err)
	}
	return code, rec, nil
}

// Verify checks submitted against the current code for (userID, purpose).
// A wrong code costs one attempt. A correct code leaves the record as is; it
// stops being usable once the next code is issued or it expires.
func (e *Engine) Verify(ctx context.Context, codes storage.OTPStore, userID int64, purpose models.Purpose, submitted string) error {
	rec, err := codes.Get(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &InvalidError{Reason: ErrNotFound}
		}
		return fmt.Errorf("load otp: %w", err)
	}
	if rec.Expired(e.now()) {
		return &InvalidError{Reason: ErrExpired}
	}
	if rec.AttemptsLeft <= 0 {
		return &InvalidError{Reason: ErrLocked}
	}

	submitted = strings.TrimSpace(submitted)
	if wellFormed(submitted) && hmac.Equal([]byte(e.hash(rec.Salt, submitted)), []byte(rec.CodeHash)) {
		return nil
	}

	left := max(rec.AttemptsLeft-1, 0)
	if err := codes.SetAttemptsLeft(ctx, userID, purpose, left); err != nil {
		return fmt.Errorf("record otp attempt: %w", err)
	}
	return &InvalidError{Reason: ErrIncorrect, AttemptsLeft: left}
}

func (e *Engine) hash(salt, code string) string {
	mac := hmac.New(sha256.New, e.secret)
	mac.Write([]byte(salt + code))
	return hex.EncodeToString(mac.Sum(nil))
}

func wellFormed(code string) bool {
	if len(code) < minLength || len(code) > maxLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func randomCode(digits int) (string, error) {
	var b strings.Builder
	b.Grow(digits)
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func randomSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
