package repository

import (
	"context"

	"storefront/internal/model"
)

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// Create inserts a new order. Returns model.ErrDuplicateOrderNumber when
	// the order number is already taken.
	Create(ctx context.Context, order *model.Order) error

	// GetByOrderNumber retrieves an order by its public order number.
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	// GetByGatewayOrderRef retrieves an order by the gateway order reference.
	GetByGatewayOrderRef(ctx context.Context, ref string) (*model.Order, error)

	// Update persists order only if the stored row still has the expected
	// status and the version the order was read at. A lost race returns
	// model.ErrStoreConflict. On success order.Version is advanced.
	Update(ctx context.Context, order *model.Order, expected model.OrderStatus) error

	// ListAll returns every order, newest first.
	ListAll(ctx context.Context) ([]model.Order, error)

	// ListByUser returns a user's orders, newest first. limit <= 0 means no limit.
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error)

	// Delete removes an order permanently.
	Delete(ctx context.Context, orderNumber string) error
}
