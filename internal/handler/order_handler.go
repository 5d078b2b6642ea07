package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// OrderHandler handles checkout-facing order requests.
type OrderHandler struct {
	orders   service.OrderService
	payments service.PaymentService
	logger   zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orders service.OrderService, payments service.PaymentService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		payments: payments,
		logger:   logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /orders and POST /orders/create.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w, r, err, h.logger)
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), &req)
	if err != nil {
		writeDomainError(w, r, err, viewGeneric, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, model.CreateOrderResponse{
		Message: "Order created successfully",
		Order:   order,
	})
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, r, err, viewDetailed, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.OrdersResponse{Orders: nonNil(orders)})
}

// Get handles GET /orders/{orderNumber}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetByOrderNumber(r.Context(), r.PathValue("orderNumber"))
	if err != nil {
		writeDomainError(w, r, err, viewGeneric, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// ListByUser handles GET /orders/user/{userId}.
func (h *OrderHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeDomainError(w, r, err, viewGeneric, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.OrdersResponse{Orders: nonNil(orders)})
}

// Track handles GET /orders/track/{userId}.
func (h *OrderHandler) Track(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.TrackByUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeDomainError(w, r, err, viewGeneric, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.OrdersResponse{Orders: orders})
}

// Verify handles PATCH /orders/{orderNumber}/verify.
func (h *OrderHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w, r, err, h.logger)
		return
	}

	order, err := h.payments.VerifyPayment(r.Context(), r.PathValue("orderNumber"), &req)
	if err != nil {
		writeDomainError(w, r, err, viewGeneric, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.OrderResponse{
		Message: "Payment verified successfully",
		Order:   order,
	})
}

// Delete handles DELETE /orders/{orderNumber}.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), r.PathValue("orderNumber")); err != nil {
		writeDomainError(w, r, err, viewDetailed, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func nonNil(orders []model.Order) []model.Order {
	if orders == nil {
		return []model.Order{}
	}
	return orders
}
