package service

import (
	"context"

	"storefront/internal/model"
)

// OrderService defines checkout-facing order operations.
type OrderService interface {
	// CreateOrder validates a checkout and stores a new pending order.
	CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.Order, error)

	// GetByOrderNumber retrieves a single order.
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	// ListAll returns every order, newest first.
	ListAll(ctx context.Context) ([]model.Order, error)

	// ListByUser returns all of a user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)

	// TrackByUser returns the user's most recent orders. Returns
	// model.ErrOrderNotFound when the user has none.
	TrackByUser(ctx context.Context, userID string) ([]model.Order, error)

	// Delete removes an order permanently.
	Delete(ctx context.Context, orderNumber string) error
}

// PaymentService reconciles gateway payments with orders.
type PaymentService interface {
	// CreateGatewayOrder asks the gateway for a payable order.
	CreateGatewayOrder(ctx context.Context, req *model.GatewayOrderRequest) (*model.GatewayOrderResponse, error)

	// VerifyPayment applies a client-reported confirmation. orderNumber may be
	// empty, in which case the order is located by gateway reference alone.
	VerifyPayment(ctx context.Context, orderNumber string, req *model.VerifyPaymentRequest) (*model.Order, error)

	// HandleWebhook verifies and dispatches a gateway webhook. Only signature
	// failures and store failures are returned as errors; everything else is
	// acknowledged with an outcome.
	HandleWebhook(ctx context.Context, delivery model.WebhookDelivery) (*model.WebhookResult, error)
}

// AdminAction is an operator-triggered order action.
type AdminAction string

const (
	ActionMarkPaid AdminAction = "mark-paid"
	ActionShip     AdminAction = "ship"
	ActionDeliver  AdminAction = "deliver"
	ActionCancel   AdminAction = "cancel"
	ActionRefund   AdminAction = "refund"
)

// ParseAdminAction validates a raw action name.
func ParseAdminAction(raw string) (AdminAction, error) {
	switch a := AdminAction(raw); a {
	case ActionMarkPaid, ActionShip, ActionDeliver, ActionCancel, ActionRefund:
		return a, nil
	}
	return "", model.NewValidationError("unknown admin action " + raw)
}

// AdminService defines operator actions on orders.
type AdminService interface {
	// Perform runs one admin action against an order.
	Perform(ctx context.Context, orderNumber string, action AdminAction) (*model.Order, error)

	// SetStatus moves an order to target through the same rules as Perform.
	SetStatus(ctx context.Context, orderNumber string, target model.OrderStatus) (*model.Order, error)
}
