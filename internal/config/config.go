package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SecretKey   string
	JWTSecret   string
	JWTIssuer   string
	JWTTTL      time.Duration
	CORSOrigins []string

	OTP           OTPConfig
	PasswordReset time.Duration

	Redis    RedisConfig
	SMTP     SMTPConfig
	Site     SiteConfig
	Razorpay RazorpayConfig
	Price    PriceConfig
}

// OTPConfig shapes one-time codes.
type OTPConfig struct {
	Length         int
	Expiry         time.Duration
	ResendInterval time.Duration
	MaxAttempts    int
}

// RedisConfig is optional; without Addrs reset markers stay in process memory.
type RedisConfig struct {
	Addrs    []string
	Password string
}

// SMTPConfig is optional; without Host codes are only logged.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SiteConfig names the site in outgoing email.
type SiteConfig struct {
	Name   string
	Domain string
}

// RazorpayConfig holds gateway credentials.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
}

// PriceConfig is the price of one membership period in minor units.
type PriceConfig struct {
	Amount   int64
	Currency string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:        fallback(os.Getenv("PORT"), "8080"),
		Env:         fallback(os.Getenv("APP_ENV"), "production"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SecretKey:   strings.TrimSpace(os.Getenv("SECRET_KEY")),
		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:   fallback(os.Getenv("JWT_ISSUER"), "storefront"),
		JWTTTL:      minutes("JWT_TTL_MINUTES", 60),
		CORSOrigins: parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		OTP: OTPConfig{
			Length:         positiveInt("OTP_LENGTH", 6),
			Expiry:         minutes("OTP_EXPIRY_MINUTES", 10),
			ResendInterval: seconds("OTP_RESEND_INTERVAL_SECONDS", 60),
			MaxAttempts:    positiveInt("OTP_MAX_ATTEMPTS", 5),
		},
		PasswordReset: minutes("PASSWORD_RESET_TTL_MINUTES", 10),
		Redis: RedisConfig{
			Addrs:    splitCSV(os.Getenv("REDIS_ADDR")),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
			Port:     positiveInt("SMTP_PORT", 465),
			Username: strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     strings.TrimSpace(os.Getenv("DEFAULT_FROM_EMAIL")),
		},
		Site: SiteConfig{
			Name:   fallback(os.Getenv("SITE_NAME"), "Storefront"),
			Domain: fallback(os.Getenv("SITE_DOMAIN"), "localhost:8080"),
		},
		Razorpay: RazorpayConfig{
			KeyID:     strings.TrimSpace(os.Getenv("RAZORPAY_KEY_ID")),
			KeySecret: strings.TrimSpace(os.Getenv("RAZORPAY_KEY_SECRET")),
			BaseURL:   fallback(os.Getenv("RAZORPAY_BASE_URL"), "https://api.razorpay.com"),
		},
		Price: PriceConfig{
			Amount:   int64(positiveInt("MEMBERSHIP_PRICE_MINOR", 2500)),
			Currency: strings.ToUpper(fallback(os.Getenv("MEMBERSHIP_CURRENCY"), "INR")),
		},
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.SecretKey == "" {
		return Config{}, errors.New("SECRET_KEY is required")
	}
	if cfg.SMTP.Host != "" && cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Development reports whether APP_ENV selects local development behaviour.
func (c Config) Development() bool {
	switch strings.ToLower(c.Env) {
	case "development", "dev", "local":
		return true
	}
	return false
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n > 0 {
		return n
	}
	return def
}

func minutes(key string, def int) time.Duration {
	return time.Duration(positiveInt(key, def)) * time.Minute
}

func seconds(key string, def int) time.Duration {
	return time.Duration(positiveInt(key, def)) * time.Second
}

func splitCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseCSV(input string) []string {
	out := splitCSV(input)
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
