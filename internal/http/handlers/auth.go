package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/storefront/internal/accounts"
	"github.com/hongminglow/storefront/internal/http/respond"
	"github.com/hongminglow/storefront/internal/middleware"
	"github.com/hongminglow/storefront/internal/models/dto"
	"github.com/hongminglow/storefront/internal/notify"
)

// AuthHandler owns signup, verification, login, password reset, and the
// account page.
type AuthHandler struct {
	accounts *accounts.Service
	logger   *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(svc *accounts.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: svc, logger: logger}
}

// Register attaches account routes. requireUser guards the signed-in routes.
func (h *AuthHandler) Register(r chi.Router, requireUser func(http.Handler) http.Handler) {
	r.Route("/api/accounts", func(r chi.Router) {
		r.Post("/signup", h.handleSignUp)
		r.Post("/verify/{userID}", h.handleVerify)
		r.Post("/verify/{userID}/resend", h.handleResend)
		r.Post("/login", h.handleLogin)
		r.Post("/password-reset", h.handlePasswordReset)
		r.Post("/password-reset/verify", h.handlePasswordResetVerify)
		r.Post("/password-reset/set", h.handleSetPassword)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/me", h.handleProfile)
			r.Patch("/me", h.handleUpdateProfile)
		})
	})
}

func (h *AuthHandler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.accounts.SignUp(r.Context(), accounts.SignUpInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password1,
		Confirm:   req.Password2,
	})
	if err != nil {
		if user.ID != 0 && errors.Is(err, notify.ErrDelivery) {
			h.logger.Error("signup verification email failed", zap.Int64("user_id", user.ID), zap.Error(err))
			respond.Fail(w, http.StatusBadGateway, "account created but the verification email could not be sent, request a new code",
				map[string]int64{"user_id": user.ID})
			return
		}
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "account created, check your email for the verification code", user)
}

func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	var req dto.OTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.accounts.VerifyEmail(r.Context(), userID, req.Code); err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "email verified, you can now log in", nil)
}

func (h *AuthHandler) handleResend(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if err := h.accounts.ResendVerification(r.Context(), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "a new code was sent", nil)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.accounts.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "login successful", dto.LoginResponse{Token: res.Token, User: res.User})
}

func (h *AuthHandler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "if the email is registered, a code was sent", nil)
}

func (h *AuthHandler) handlePasswordResetVerify(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, err := h.accounts.VerifyPasswordReset(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "code verified, choose a new password", dto.PasswordResetVerifyResponse{ResetToken: token})
}

func (h *AuthHandler) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.SetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.accounts.SetPassword(r.Context(), req.ResetToken, req.NewPassword1, req.NewPassword2); err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "password updated, you can now log in", nil)
}

func (h *AuthHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	dash, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.DashboardResponse{
		User:       dash.User,
		Profile:    dash.Profile,
		Membership: dash.Membership,
		IsActive:   dash.IsActive,
	})
}

func (h *AuthHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var req dto.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.accounts.UpdateProfile(r.Context(), userID, accounts.UpdateProfileInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "profile updated", user)
}

func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusNotFound, "user not found")
		return 0, false
	}
	return id, true
}
