package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// AdminHandler handles operator actions on orders.
type AdminHandler struct {
	admin  service.AdminService
	logger zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(admin service.AdminService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		logger: logger.With().Str("handler", "admin").Logger(),
	}
}

// SetStatus handles PATCH /orders/{orderNumber}/status.
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req model.StatusUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidJSON(w, r, err, h.logger)
		return
	}

	target, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		writeDomainError(w, r, err, viewDetailed, h.logger)
		return
	}

	order, err := h.admin.SetStatus(r.Context(), r.PathValue("orderNumber"), target)
	if err != nil {
		writeDomainError(w, r, err, viewDetailed, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.OrderResponse{
		Message: "Order status updated",
		Order:   order,
	})
}

// Perform handles POST /orders/{orderNumber}/{action}.
func (h *AdminHandler) Perform(w http.ResponseWriter, r *http.Request) {
	action, err := service.ParseAdminAction(r.PathValue("action"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error(), nil, h.logger)
		return
	}

	order, err := h.admin.Perform(r.Context(), r.PathValue("orderNumber"), action)
	if err != nil {
		writeDomainError(w, r, err, viewDetailed, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.OrderResponse{
		Message: "Order " + string(action) + " applied",
		Order:   order,
	})
}
