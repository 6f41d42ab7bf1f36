// Package accounts implements signup with email verification, login, and
// password reset on top of the OTP engine.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/storefront/internal/auth"
	"github.com/hongminglow/storefront/internal/logging"
	"github.com/hongminglow/storefront/internal/models"
	"github.com/hongminglow/storefront/internal/notify"
	"github.com/hongminglow/storefront/internal/otp"
	"github.com/hongminglow/storefront/internal/session"
	"github.com/hongminglow/storefront/internal/storage"
)

// DefaultResetTTL bounds how long a verified reset code authorizes a new password.
const DefaultResetTTL = 10 * time.Minute

// Service orchestrates the account flows.
type Service struct {
	store    storage.Store
	codes    *otp.Engine
	sender   notify.Sender
	markers  session.ResetMarkers
	tokens   *auth.TokenManager
	logger   *zap.Logger
	resetTTL time.Duration
	now      func() time.Time
	hashCost int

	dummyOnce sync.Once
	dummy     []byte
}

// Option customises a Service.
type Option func(*Service)

// WithResetTTL sets the lifetime of password reset markers.
func WithResetTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// NewService wires the account flows.
func NewService(store storage.Store, codes *otp.Engine, sender notify.Sender, markers session.ResetMarkers, tokens *auth.TokenManager, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		codes:    codes,
		sender:   sender,
		markers:  markers,
		tokens:   tokens,
		logger:   logger,
		resetTTL: DefaultResetTTL,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignUpInput is the signup form.
type SignUpInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Confirm   string
}

// SignUp creates the user, profile, and membership, stores a verification
// code, and emails it once everything is committed. When only the email
// fails, the created user is returned together with a notify.ErrDelivery error.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if err := validateUsername(username); err != nil {
		return models.User{}, err
	}
	if err := validateEmail(email); err != nil {
		return models.User{}, err
	}
	if err := validatePasswords("password2", in.Password, in.Confirm); err != nil {
		return models.User{}, err
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	var code string
	err = s.store.WithTx(ctx, func(ctx context.Context, tx storage.Repos) error {
		created, err := tx.Users().CreateUser(ctx, models.User{
			Username:     username,
			Email:        email,
			FirstName:    strings.TrimSpace(in.FirstName),
			LastName:     strings.TrimSpace(in.LastName),
			PasswordHash: hash,
		})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if _, err := tx.Users().CreateProfile(ctx, created.ID); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		if _, err := tx.Memberships().Create(ctx, created.ID); err != nil {
			return fmt.Errorf("create membership: %w", err)
		}
		code, _, err = s.codes.Issue(ctx, tx.OTPs(), created.ID, models.PurposeVerifyEmail)
		if err != nil {
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		return models.User{}, err
	}

	s.logger.Info("new signup", zap.Int64("user_id", user.ID), zap.String("username", user.Username), logging.IP(ctx))
	return user, s.deliver(ctx, user, models.PurposeVerifyEmail, code)
}

// VerifyEmail checks a verify_email code and marks the profile verified.
func (s *Service) VerifyEmail(ctx context.Context, userID int64, code string) error {
	if _, err := s.findUser(ctx, userID); err != nil {
		return err
	}
	err := s.verifyCode(ctx, userID, models.PurposeVerifyEmail, code, func(ctx context.Context, tx storage.Repos) error {
		return tx.Users().MarkEmailVerified(ctx, userID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("email verified", zap.Int64("user_id", userID), logging.IP(ctx))
	return nil
}

// ResendVerification issues and sends a new verify_email code.
func (s *Service) ResendVerification(ctx context.Context, userID int64) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.IsEmailVerified {
		return ErrAlreadyVerified
	}
	code, err := s.issue(ctx, userID, models.PurposeVerifyEmail)
	if err != nil {
		return err
	}
	s.logger.Info("resent verification otp", zap.Int64("user_id", userID), logging.IP(ctx))
	return s.deliver(ctx, user, models.PurposeVerifyEmail, code)
}

// LoginResult is a successful login.
type LoginResult struct {
	Token string
	User  models.User
}

// Login authenticates by username, or by email when identifier contains "@".
// Unverified accounts get a fresh verification code and an *UnverifiedError
// instead of a session token.
func (s *Service) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return LoginResult{}, invalid("", "identifier and password are required")
	}

	var user models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.store.Users().FindByEmail(ctx, identifier)
	} else {
		user, err = s.store.Users().FindByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Spend comparable time so response latency does not reveal account existence.
			_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(password))
			s.logger.Info("login failed", zap.String("reason", "unknown identifier"), logging.IP(ctx))
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("fetch user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed", zap.Int64("user_id", user.ID), zap.String("reason", "bad password"), logging.IP(ctx))
		return LoginResult{}, ErrInvalidCredentials
	}

	s.logger.Info("login attempt", zap.Int64("user_id", user.ID), logging.IP(ctx))
	profile, err := s.loadProfile(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	if !profile.IsEmailVerified {
		code, err := s.issue(ctx, user.ID, models.PurposeVerifyEmail)
		switch {
		case err == nil:
			if err := s.deliver(ctx, user, models.PurposeVerifyEmail, code); err != nil {
				s.logger.Warn("verification email on login failed", zap.Int64("user_id", user.ID), zap.Error(err))
			}
		case errors.Is(err, otp.ErrThrottled):
		default:
			s.logger.Error("issue verification otp on login", zap.Int64("user_id", user.ID), zap.Error(err))
		}
		return LoginResult{}, &UnverifiedError{UserID: user.ID}
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate token: %w", err)
	}
	return LoginResult{Token: token, User: user}, nil
}

// RequestPasswordReset sends a password_reset code. Unknown addresses get the
// same nil result as known ones.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email", logging.IP(ctx))
			return nil
		}
		return fmt.Errorf("fetch user: %w", err)
	}
	code, err := s.issue(ctx, user.ID, models.PurposePasswordReset)
	if err != nil {
		return err
	}
	s.logger.Info("password reset otp requested", zap.Int64("user_id", user.ID), logging.IP(ctx))
	return s.deliver(ctx, user, models.PurposePasswordReset, code)
}

// VerifyPasswordReset checks a password_reset code and returns a token that
// authorizes exactly one SetPassword call.
func (s *Service) VerifyPasswordReset(ctx context.Context, email, code string) (string, error) {
	user, err := s.store.Users().FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", &otp.InvalidError{Reason: otp.ErrNotFound}
		}
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if err := s.verifyCode(ctx, user.ID, models.PurposePasswordReset, code, nil); err != nil {
		return "", err
	}
	token, err := s.markers.Create(ctx, user.ID, s.resetTTL)
	if err != nil {
		return "", err
	}
	s.logger.Info("password reset otp verified", zap.Int64("user_id", user.ID), logging.IP(ctx))
	return token, nil
}

// SetPassword replaces the password of the user bound to resetToken and
// consumes the token.
func (s *Service) SetPassword(ctx context.Context, resetToken, password, confirm string) error {
	if strings.TrimSpace(resetToken) == "" {
		return ErrSessionExpired
	}
	if _, err := s.markers.Lookup(ctx, resetToken); err != nil {
		return markerError(err)
	}
	if err := validatePasswords("new_password2", password, confirm); err != nil {
		return err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	// A token changes the password at most once.
	userID, err := s.markers.Consume(ctx, resetToken)
	if err != nil {
		return markerError(err)
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx storage.Repos) error {
		return tx.Users().UpdatePassword(ctx, userID, hash)
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSessionExpired
		}
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.Info("password reset completed", zap.Int64("user_id", userID), logging.IP(ctx))
	return nil
}

func markerError(err error) error {
	if errors.Is(err, session.ErrMarkerNotFound) {
		return ErrSessionExpired
	}
	return err
}

// Dashboard is everything the account page shows.
type Dashboard struct {
	User       models.User
	Profile    models.Profile
	Membership models.Membership
	IsActive   bool
}

// Profile loads the account overview for a signed-in user.
func (s *Service) Profile(ctx context.Context, userID int64) (Dashboard, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	m, err := s.store.Memberships().GetOrCreate(ctx, userID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load membership: %w", err)
	}
	return Dashboard{User: user, Profile: profile, Membership: m, IsActive: m.IsActive(s.now())}, nil
}

// UpdateProfileInput holds the editable account fields. Email cannot change.
type UpdateProfileInput struct {
	Username  string
	FirstName string
	LastName  string
}

// UpdateProfile changes username and display names.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in UpdateProfileInput) (models.User, error) {
	username := strings.TrimSpace(in.Username)
	if err := validateUsername(username); err != nil {
		return models.User{}, err
	}
	var updated models.User
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Repos) error {
		u, err := tx.Users().UpdateDetails(ctx, models.User{
			ID:        userID,
			Username:  username,
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
		})
		if err != nil {
			return err
		}
		updated = u
		return nil
	})
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		return models.User{}, fmt.Errorf("username %q: %w", username, err)
	case errors.Is(err, storage.ErrNotFound):
		return models.User{}, ErrUserNotFound
	case err != nil:
		return models.User{}, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

func (s *Service) findUser(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("fetch user: %w", err)
	}
	return user, nil
}

// loadProfile returns the user's profile, creating the default row for accounts
// that predate profiles.
func (s *Service) loadProfile(ctx context.Context, userID int64) (models.Profile, error) {
	p, err := s.store.Users().GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		p, err = s.store.Users().CreateProfile(ctx, userID)
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (s *Service) issue(ctx context.Context, userID int64, purpose models.Purpose) (string, error) {
	var code string
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Repos) error {
		var err error
		code, _, err = s.codes.Issue(ctx, tx.OTPs(), userID, purpose)
		return err
	})
	return code, err
}

// verifyCode runs the OTP check and onSuccess in one transaction. A rejected
// code still commits so the spent attempt is recorded.
func (s *Service) verifyCode(ctx context.Context, userID int64, purpose models.Purpose, code string, onSuccess func(ctx context.Context, tx storage.Repos) error) error {
	var rejected error
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Repos) error {
		if err := s.codes.Verify(ctx, tx.OTPs(), userID, purpose, code); err != nil {
			var inv *otp.InvalidError
			if errors.As(err, &inv) {
				rejected = err
				return nil
			}
			return err
		}
		if onSuccess != nil {
			return onSuccess(ctx, tx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if rejected != nil {
		s.logger.Info("otp rejected",
			zap.Int64("user_id", userID),
			zap.String("purpose", string(purpose)),
			zap.String("reason", rejected.Error()),
			logging.IP(ctx))
	}
	return rejected
}

func (s *Service) deliver(ctx context.Context, user models.User, purpose models.Purpose, code string) error {
	if err := s.sender.Send(ctx, user, purpose, code); err != nil {
		if errors.Is(err, notify.ErrDelivery) {
			return err
		}
		return fmt.Errorf("%w: %v", notify.ErrDelivery, err)
	}
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// dummyHash is compared against when the login identifier is unknown.
func (s *Service) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummy, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.hashCost)
	})
	return s.dummy
}
