// Package memory implements storage.Store in process memory. Transactions are
// serialized and roll back by restoring a snapshot, so it is suitable for tests
// and single-process development only.
package memory

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/storefront/internal/models"
	"github.com/hongminglow/storefront/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type otpKey struct {
	userID  int64
	purpose models.Purpose
}

type state struct {
	nextUserID  int64
	nextOrderID int64
	users       map[int64]models.User
	profiles    map[int64]models.Profile
	codes       map[otpKey]models.OneTimeCode
	memberships map[int64]models.Membership
	orders      map[string]models.PaymentOrder
}

func (s state) clone() state {
	return state{
		nextUserID:  s.nextUserID,
		nextOrderID: s.nextOrderID,
		users:       maps.Clone(s.users),
		profiles:    maps.Clone(s.profiles),
		codes:       maps.Clone(s.codes),
		memberships: maps.Clone(s.memberships),
		orders:      maps.Clone(s.orders),
	}
}

// Store is an in-memory storage.Store.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state
	now  func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: state{
			users:       map[int64]models.User{},
			profiles:    map[int64]models.Profile{},
			codes:       map[otpKey]models.OneTimeCode{},
			memberships: map[int64]models.Membership{},
			orders:      map[string]models.PaymentOrder{},
		},
		now: time.Now,
	}
}

func (s *Store) Users() storage.UserStore             { return userRepo{s} }
func (s *Store) OTPs() storage.OTPStore               { return otpRepo{s} }
func (s *Store) Memberships() storage.MembershipStore { return membershipRepo{s} }
func (s *Store) Payments() storage.PaymentStore       { return paymentRepo{s} }

// Close is a no-op.
func (s *Store) Close() {}

// WithTx runs fn while holding the transaction lock. Any error returned by fn
// restores the state captured before it ran.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Repos) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(ctx, s)
}

func (s *Store) restore(snapshot state) {
	s.mu.Lock()
	s.st = snapshot
	s.mu.Unlock()
}

type userRepo struct{ s *Store }

func (r userRepo) CreateUser(_ context.Context, user models.User) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.st.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	r.s.st.nextUserID++
	user.ID = r.s.st.nextUserID
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = r.s.now()
	r.s.st.users[user.ID] = user
	return user, nil
}

func (r userRepo) FindByID(_ context.Context, id int64) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (r userRepo) find(match func(models.User) bool) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.st.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (r userRepo) FindByUsername(_ context.Context, username string) (models.User, error) {
	return r.find(func(u models.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r userRepo) FindByEmail(_ context.Context, email string) (models.User, error) {
	return r.find(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r userRepo) FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	if u, err := r.FindByUsername(ctx, identifier); err == nil {
		return u, nil
	}
	return r.FindByEmail(ctx, identifier)
}

func (r userRepo) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.PasswordHash = passwordHash
	r.s.st.users[userID] = u
	return nil
}

func (r userRepo) UpdateDetails(_ context.Context, user models.User) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.st.users[user.ID]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	for id, u := range r.s.st.users {
		if id != user.ID && strings.EqualFold(u.Username, user.Username) {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	existing.Username = user.Username
	existing.FirstName = user.FirstName
	existing.LastName = user.LastName
	r.s.st.users[user.ID] = existing
	return existing, nil
}

func (r userRepo) CreateProfile(_ context.Context, userID int64) (models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.st.profiles[userID]; ok {
		return p, nil
	}
	p := models.Profile{UserID: userID, UpdatedAt: r.s.now()}
	r.s.st.profiles[userID] = p
	return p, nil
}

func (r userRepo) GetProfile(_ context.Context, userID int64) (models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.profiles[userID]
	if !ok {
		return models.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (r userRepo) MarkEmailVerified(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.profiles[userID]
	if !ok {
		return storage.ErrNotFound
	}
	p.IsEmailVerified = true
	p.UpdatedAt = r.s.now()
	r.s.st.profiles[userID] = p
	return nil
}

type otpRepo struct{ s *Store }

func (r otpRepo) Get(_ context.Context, userID int64, purpose models.Purpose) (models.OneTimeCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.codes[otpKey{userID, purpose}]
	if !ok {
		return models.OneTimeCode{}, storage.ErrNotFound
	}
	return c, nil
}

func (r otpRepo) Upsert(_ context.Context, c models.OneTimeCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.codes[otpKey{c.UserID, c.Purpose}] = c
	return nil
}

func (r otpRepo) SetAttemptsLeft(_ context.Context, userID int64, purpose models.Purpose, attemptsLeft int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := otpKey{userID, purpose}
	c, ok := r.s.st.codes[key]
	if !ok {
		return storage.ErrNotFound
	}
	c.AttemptsLeft = max(attemptsLeft, 0)
	r.s.st.codes[key] = c
	return nil
}

type membershipRepo struct{ s *Store }

func (r membershipRepo) Create(_ context.Context, userID int64) (models.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.memberships[userID]; ok {
		return models.Membership{}, storage.ErrAlreadyExists
	}
	m := models.Membership{UserID: userID, UpdatedAt: r.s.now()}
	r.s.st.memberships[userID] = m
	return m, nil
}

func (r membershipRepo) Get(_ context.Context, userID int64) (models.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.memberships[userID]
	if !ok {
		return models.Membership{}, storage.ErrNotFound
	}
	return m, nil
}

func (r membershipRepo) GetOrCreate(_ context.Context, userID int64) (models.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.memberships[userID]
	if !ok {
		m = models.Membership{UserID: userID, UpdatedAt: r.s.now()}
		r.s.st.memberships[userID] = m
	}
	return m, nil
}

func (r membershipRepo) Save(_ context.Context, m models.Membership) (models.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.memberships[m.UserID]; !ok {
		return models.Membership{}, storage.ErrNotFound
	}
	m.UpdatedAt = r.s.now()
	r.s.st.memberships[m.UserID] = m
	return m, nil
}

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(_ context.Context, o models.PaymentOrder) (models.PaymentOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.orders[o.OrderID]; ok {
		return models.PaymentOrder{}, storage.ErrAlreadyExists
	}
	for _, existing := range r.s.st.orders {
		if existing.Receipt == o.Receipt {
			return models.PaymentOrder{}, storage.ErrAlreadyExists
		}
	}
	r.s.st.nextOrderID++
	o.ID = r.s.st.nextOrderID
	o.CreatedAt = r.s.now()
	r.s.st.orders[o.OrderID] = o
	return o, nil
}

func (r paymentRepo) GetByOrderID(_ context.Context, orderID string) (models.PaymentOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.st.orders[orderID]
	if !ok {
		return models.PaymentOrder{}, storage.ErrNotFound
	}
	return o, nil
}

// GetForUpdate relies on WithTx holding the transaction lock.
func (r paymentRepo) GetForUpdate(ctx context.Context, orderID string) (models.PaymentOrder, error) {
	return r.GetByOrderID(ctx, orderID)
}

func (r paymentRepo) MarkPaid(_ context.Context, o models.PaymentOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.st.orders[o.OrderID]
	if !ok || existing.Status != models.OrderCreated {
		return storage.ErrNotFound
	}
	existing.Status = models.OrderPaid
	existing.PaymentID = o.PaymentID
	existing.Signature = o.Signature
	existing.Callback = o.Callback
	existing.PaidAt = o.PaidAt
	r.s.st.orders[o.OrderID] = existing
	return nil
}

func (r paymentRepo) MarkFailed(_ context.Context, orderID, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.st.orders[orderID]
	if !ok || existing.Status != models.OrderCreated {
		return storage.ErrNotFound
	}
	existing.Status = models.OrderFailed
	existing.FailureReason = reason
	r.s.st.orders[orderID] = existing
	return nil
}
