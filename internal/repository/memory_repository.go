package repository

import (
	"context"
	"sort"
	"sync"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// memoryOrderRepository is an in-process OrderRepository. The mutex is held
// only for the duration of a single call, so it gives the same per-order
// compare-and-swap semantics as the PostgreSQL store.
type memoryOrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]*model.Order
	byGateway map[string]string
	logger    zerolog.Logger
}

// NewMemoryOrderRepository creates an empty in-memory order repository.
func NewMemoryOrderRepository(logger zerolog.Logger) OrderRepository {
	return &memoryOrderRepository{
		orders:    make(map[string]*model.Order),
		byGateway: make(map[string]string),
		logger:    logger.With().Str("repository", "order-memory").Logger(),
	}
}

func (r *memoryOrderRepository) Create(ctx context.Context, order *model.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.OrderNumber]; ok {
		return model.ErrDuplicateOrderNumber
	}
	ref := order.GatewayOrderRef()
	if ref != "" {
		if _, ok := r.byGateway[ref]; ok {
			return model.NewValidationError("gateway order reference is already attached to another order")
		}
	}

	if order.Version == 0 {
		order.Version = 1
	}
	r.orders[order.OrderNumber] = order.Clone()
	if ref != "" {
		r.byGateway[ref] = order.OrderNumber
	}

	r.logger.Debug().Str("order_number", order.OrderNumber).Msg("order created")
	return nil
}

func (r *memoryOrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderNumber]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *memoryOrderRepository) GetByGatewayOrderRef(ctx context.Context, ref string) (*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	number, ok := r.byGateway[ref]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	return r.orders[number].Clone(), nil
}

func (r *memoryOrderRepository) Update(ctx context.Context, order *model.Order, expected model.OrderStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.OrderNumber]
	if !ok {
		return model.ErrOrderNotFound
	}
	if stored.Status != expected || stored.Version != order.Version {
		r.logger.Debug().
			Str("order_number", order.OrderNumber).
			Str("expected_status", string(expected)).
			Str("stored_status", string(stored.Status)).
			Msg("compare-and-swap rejected")
		return model.ErrStoreConflict
	}

	oldRef := stored.GatewayOrderRef()
	newRef := order.GatewayOrderRef()
	if newRef != oldRef {
		if owner, taken := r.byGateway[newRef]; taken && newRef != "" && owner != order.OrderNumber {
			return model.NewValidationError("gateway order reference is already attached to another order")
		}
		delete(r.byGateway, oldRef)
		if newRef != "" {
			r.byGateway[newRef] = order.OrderNumber
		}
	}

	order.Version++
	next := order.Clone()
	// Immutable fields always come from the stored copy.
	next.UserID = stored.UserID
	next.Amount = stored.Amount
	next.Currency = stored.Currency
	next.Mode = stored.Mode
	next.CartItems = stored.CartItems
	next.AddressData = stored.AddressData
	next.CreatedAt = stored.CreatedAt
	r.orders[order.OrderNumber] = next

	return nil
}

func (r *memoryOrderRepository) ListAll(ctx context.Context) ([]model.Order, error) {
	return r.list(ctx, func(*model.Order) bool { return true }, 0)
}

func (r *memoryOrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	return r.list(ctx, func(o *model.Order) bool { return o.UserID == userID }, limit)
}

func (r *memoryOrderRepository) Delete(ctx context.Context, orderNumber string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderNumber]
	if !ok {
		return model.ErrOrderNotFound
	}
	if ref := o.GatewayOrderRef(); ref != "" {
		delete(r.byGateway, ref)
	}
	delete(r.orders, orderNumber)
	return nil
}

func (r *memoryOrderRepository) list(ctx context.Context, keep func(*model.Order) bool, limit int) ([]model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	orders := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if keep(o) {
			orders = append(orders, *o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].OrderNumber < orders[j].OrderNumber
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}
