package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hongminglow/storefront/internal/accounts"
	"github.com/hongminglow/storefront/internal/auth"
	"github.com/hongminglow/storefront/internal/config"
	"github.com/hongminglow/storefront/internal/http/handlers"
	"github.com/hongminglow/storefront/internal/http/respond"
	"github.com/hongminglow/storefront/internal/middleware"
	"github.com/hongminglow/storefront/internal/payment"
	"github.com/hongminglow/storefront/internal/storage"
)

// Deps are the services the HTTP surface routes to.
type Deps struct {
	Store    storage.Store
	Accounts *accounts.Service
	Payments *payment.Service
	Tokens   *auth.TokenManager
	Logger   *zap.Logger
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return &Server{inner: httpServer}
}

// NewRouter builds the routing tree.
func NewRouter(cfg config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(25 * time.Second))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	requireUser := middleware.RequireUser(deps.Tokens)
	requireMembership := middleware.RequireMembership(deps.Store.Memberships(), deps.Logger)

	handlers.NewHealthHandler(time.Now()).Register(r)
	handlers.NewAuthHandler(deps.Accounts, deps.Logger).Register(r, requireUser)
	handlers.NewMembershipHandler(deps.Payments, deps.Logger).Register(r, requireUser, requireMembership)
	return r
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
