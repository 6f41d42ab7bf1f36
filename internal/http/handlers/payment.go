package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/storefront/internal/http/respond"
	"github.com/hongminglow/storefront/internal/middleware"
	"github.com/hongminglow/storefront/internal/models/dto"
	"github.com/hongminglow/storefront/internal/payment"
)

// MembershipHandler exposes membership status, checkout, and gated content.
type MembershipHandler struct {
	payments *payment.Service
	logger   *zap.Logger
}

// NewMembershipHandler constructs the handler.
func NewMembershipHandler(svc *payment.Service, logger *zap.Logger) *MembershipHandler {
	return &MembershipHandler{payments: svc, logger: logger}
}

// Register attaches membership routes. Every route requires a signed-in user;
// the content route additionally requires an active membership.
func (h *MembershipHandler) Register(r chi.Router, requireUser, requireMembership func(http.Handler) http.Handler) {
	r.Route("/api/membership", func(r chi.Router) {
		r.Use(requireUser)
		r.Get("/", h.handleStatus)
		r.With(requireMembership).Get("/content", h.handleContent)
		r.Post("/orders", h.handleCreateOrder)
		r.Post("/orders/verify", h.handleVerify)
		r.Post("/orders/{orderID}/fail", h.handleFail)
	})
}

func (h *MembershipHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	m, active, err := h.payments.Status(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.MembershipResponse{Membership: m, IsActive: active})
}

func (h *MembershipHandler) handleContent(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, "welcome, member", map[string]bool{"member": true})
}

func (h *MembershipHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	info, err := h.payments.CreateOrder(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "order created", dto.CreateOrderResponse{
		OrderID:  info.OrderID,
		Amount:   info.Amount,
		Currency: info.Currency,
		KeyID:    info.KeyID,
	})
}

func (h *MembershipHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	var req dto.VerifyPaymentRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	act, err := h.payments.VerifyAndActivate(r.Context(), payment.Callback{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		Raw:       raw,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	message := "payment verified, membership activated"
	if act.Duplicate {
		message = "payment already processed"
	}
	respond.JSON(w, http.StatusOK, message, dto.VerifyPaymentResponse{OK: true, Duplicate: act.Duplicate, Membership: act.Membership})
}

func (h *MembershipHandler) handleFail(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var req dto.FailOrderRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if err := h.payments.MarkFailed(r.Context(), userID, chi.URLParam(r, "orderID"), req.Reason); err != nil {
		writeError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "order marked as failed", nil)
}
