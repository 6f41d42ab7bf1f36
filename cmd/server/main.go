package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hongminglow/storefront/internal/accounts"
	"github.com/hongminglow/storefront/internal/auth"
	"github.com/hongminglow/storefront/internal/config"
	"github.com/hongminglow/storefront/internal/logging"
	"github.com/hongminglow/storefront/internal/notify"
	"github.com/hongminglow/storefront/internal/otp"
	"github.com/hongminglow/storefront/internal/payment"
	"github.com/hongminglow/storefront/internal/server"
	"github.com/hongminglow/storefront/internal/session"
	"github.com/hongminglow/storefront/internal/storage/postgres"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}
	defer store.Close()

	engine, err := otp.NewEngine(otp.Config{
		Length:         cfg.OTP.Length,
		Expiry:         cfg.OTP.Expiry,
		ResendInterval: cfg.OTP.ResendInterval,
		MaxAttempts:    cfg.OTP.MaxAttempts,
		Secret:         cfg.SecretKey,
	})
	if err != nil {
		logger.Fatal("init otp engine", zap.Error(err))
	}

	markers := resetMarkers(ctx, cfg, logger)
	sender := mailSender(cfg, logger)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	accountSvc := accounts.NewService(store, engine, sender, markers, tokens, logger.Named("accounts"),
		accounts.WithResetTTL(cfg.PasswordReset))

	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		logger.Error("RAZORPAY_KEY_ID/RAZORPAY_KEY_SECRET not set; checkout calls will fail and payment callbacks will be rejected")
	}
	gateway := payment.NewRazorpayClient(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, logger.Named("razorpay"))
	paymentCfg := payment.DefaultConfig(cfg.Razorpay.KeyID)
	paymentCfg.Price = cfg.Price.Amount
	paymentCfg.Currency = cfg.Price.Currency
	paymentSvc := payment.NewService(store, gateway, paymentCfg, logger.Named("payment"))

	srv := server.New(cfg, server.Deps{
		Store:    store,
		Accounts: accountSvc,
		Payments: paymentSvc,
		Tokens:   tokens,
		Logger:   logger,
	})

	go func() {
		logger.Info("storefront listening", zap.String("addr", cfg.HTTPAddress()), zap.String("env", cfg.Env))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown error", zap.Error(err))
	}
}

func resetMarkers(ctx context.Context, cfg config.Config, logger *zap.Logger) session.ResetMarkers {
	if len(cfg.Redis.Addrs) == 0 {
		logger.Warn("REDIS_ADDR not set; password reset markers are kept in process memory")
		return session.NewMemoryMarkers(nil)
	}
	client := session.NewRedisClient(cfg.Redis.Addrs, cfg.Redis.Password)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal("connect redis", zap.Strings("addrs", cfg.Redis.Addrs), zap.Error(err))
	}
	return session.NewRedisMarkers(client)
}

func mailSender(cfg config.Config, logger *zap.Logger) notify.Sender {
	site := notify.Site{Name: cfg.Site.Name, Domain: cfg.Site.Domain, Expiry: cfg.OTP.Expiry}
	if cfg.SMTP.Host == "" {
		logger.Warn("SMTP_HOST not set; one-time codes are not emailed")
		return notify.NewLogSender(logger.Named("mail"))
	}
	return notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     strconv.Itoa(cfg.SMTP.Port),
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  10 * time.Second,
	}, site, logger.Named("mail"))
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
