package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// SignatureHeader carries the gateway's webhook HMAC.
const SignatureHeader = "X-Razorpay-Signature"

// PaymentHandler handles gateway-facing payment requests.
type PaymentHandler struct {
	payments       service.PaymentService
	maxWebhookBody int64
	logger         zerolog.Logger
}

// NewPaymentHandler creates a new payment handler. maxWebhookBody caps the
// raw webhook body read before verification.
func NewPaymentHandler(payments service.PaymentService, maxWebhookBody int64, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:       payments,
		maxWebhookBody: maxWebhookBody,
		logger:         logger.With().Str("handler", "payment").Logger(),
	}
}

// CreateOrder handles POST /payment/create-order.
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req model.GatewayOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w, r, err, h.logger)
		return
	}

	resp, err := h.payments.CreateGatewayOrder(r.Context(), &req)
	if err != nil {
		writeDomainError(w, r, err, viewGeneric, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Verify handles POST /payment/verify, locating the order by gateway
// reference alone.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w, r, err, h.logger)
		return
	}

	order, err := h.payments.VerifyPayment(r.Context(), "", &req)
	if err != nil {
		writeDomainError(w, r, err, viewGeneric, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.VerifyPaymentResponse{
		Success: true,
		Message: "Payment verified and order updated",
		Order:   order,
	})
}

// Webhook handles POST /payment/webhook. The body is read raw because the
// signature covers the exact bytes sent.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, model.ErrCodeValidation, "webhook body too large", nil, h.logger)
			return
		}
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "failed to read webhook body", nil, h.logger)
		return
	}

	result, err := h.payments.HandleWebhook(r.Context(), model.WebhookDelivery{
		Body:       body,
		Signature:  r.Header.Get(SignatureHeader),
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, model.ErrSignatureMismatch) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeSignatureMismatch, "Invalid signature", nil, h.logger)
			return
		}
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "webhook processing failed", nil, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
