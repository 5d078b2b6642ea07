// Package events publishes order lifecycle notifications for out-of-band
// consumers such as mailers and fulfilment systems.
package events

import (
	"context"
	"time"

	"storefront/internal/model"
)

// Event types emitted for orders.
const (
	TypeOrderCreated   = "order.created"
	TypeStatusChanged  = "order.status_changed"
	TypePaymentUpdated = "order.payment_updated"
	TypeOrderDeleted   = "order.deleted"
)

// OrderEvent describes one applied change to an order.
type OrderEvent struct {
	ID            string              `json:"id"`
	Type          string              `json:"type"`
	OrderNumber   string              `json:"orderNumber"`
	UserID        string              `json:"userId"`
	FromStatus    model.OrderStatus   `json:"fromStatus,omitempty"`
	ToStatus      model.OrderStatus   `json:"toStatus"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus,omitempty"`
	Action        string              `json:"action,omitempty"`
	OccurredAt    time.Time           `json:"occurredAt"`
}

// Publisher delivers order events. Implementations must not block the
// caller on broker round trips.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// noopPublisher is used when event publishing is disabled.
type noopPublisher struct{}

// NewNoopPublisher returns a Publisher that drops every event.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (noopPublisher) Close() error                              { return nil }
