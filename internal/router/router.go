package router

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"

	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Orders   *handler.OrderHandler
	Payments *handler.PaymentHandler
	Admin    *handler.AdminHandler
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, apiKey string, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	admin := middleware.APIKeyAuth(apiKey, logger)

	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, metrics.Instrument(pattern, fn))
	}
	handleAdmin := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, metrics.Instrument(pattern, admin(fn)))
	}

	// Health check endpoint (no authentication required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Gateway callbacks and checkout
	handle("POST /payment/webhook", h.Payments.Webhook)
	handle("POST /payment/create-order", h.Payments.CreateOrder)
	handle("POST /payment/verify", h.Payments.Verify)

	handle("POST /orders", h.Orders.Create)
	handle("POST /orders/create", h.Orders.Create)
	handle("GET /orders/{orderNumber}", h.Orders.Get)
	handle("GET /orders/user/{userId}", h.Orders.ListByUser)
	handle("GET /orders/track/{userId}", h.Orders.Track)
	handle("PATCH /orders/{orderNumber}/verify", h.Orders.Verify)

	// Admin
	handleAdmin("GET /orders", h.Orders.List)
	handleAdmin("DELETE /orders/{orderNumber}", h.Orders.Delete)
	handleAdmin("PATCH /orders/{orderNumber}/status", h.Admin.SetStatus)
	handleAdmin("POST /orders/{orderNumber}/{action}", h.Admin.Perform)

	// Apply middleware in order: Recovery -> RequestID -> Logging -> CORS
	var handler http.Handler = mux
	handler = middleware.CORS(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}
