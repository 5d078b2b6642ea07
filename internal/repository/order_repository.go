package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const uniqueViolation = "23505"

const orderColumns = `
	order_number, user_id, amount, currency, mode, cart_items, address_data, status,
	gateway_order_ref, payment_method, payment_ref, payment_signature, payment_status,
	webhook_verified, paid_at, last_action, version, created_at, updated_at
`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// Create inserts a new order.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	cartItems, err := json.Marshal(order.CartItems)
	if err != nil {
		return fmt.Errorf("failed to encode cart items: %w", err)
	}
	address, err := json.Marshal(order.AddressData)
	if err != nil {
		return fmt.Errorf("failed to encode address: %w", err)
	}

	if order.Version == 0 {
		order.Version = 1
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = r.pool.Exec(ctx, query,
		order.OrderNumber,
		order.UserID,
		order.Amount,
		order.Currency,
		string(order.Mode),
		cartItems,
		address,
		string(order.Status),
		nullable(order.GatewayOrderRef()),
		nullable(string(order.Payment.Method)),
		nullable(order.Payment.RazorpayPaymentID),
		nullable(order.Payment.RazorpaySignature),
		string(order.Payment.RazorpayPaymentStatus),
		order.Payment.WebhookVerified,
		order.Payment.PaidAt,
		nullable(order.LastAction),
		order.Version,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			r.logger.Warn().
				Str("order_number", order.OrderNumber).
				Str("constraint", pgErr.ConstraintName).
				Msg("unique constraint violated on order insert")
			if pgErr.ConstraintName == "orders_gateway_order_ref_key" {
				return model.NewValidationError("gateway order reference is already attached to another order")
			}
			return model.ErrDuplicateOrderNumber
		}
		r.logger.Error().
			Err(err).
			Str("order_number", order.OrderNumber).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_number", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// GetByOrderNumber retrieves an order by its public order number.
func (r *orderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, orderNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_number", orderNumber).Msg("order not found")
			return nil, model.ErrOrderNotFound
		}
		r.logger.Error().Err(err).Str("order_number", orderNumber).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return order, nil
}

// GetByGatewayOrderRef retrieves an order by its gateway order reference.
func (r *orderRepository) GetByGatewayOrderRef(ctx context.Context, ref string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE gateway_order_ref = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("gateway_order_ref", ref).Msg("order not found for gateway reference")
			return nil, model.ErrOrderNotFound
		}
		r.logger.Error().Err(err).Str("gateway_order_ref", ref).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order by gateway reference: %w", err)
	}

	return order, nil
}

// Update persists the mutable fields of order guarded by status and version.
func (r *orderRepository) Update(ctx context.Context, order *model.Order, expected model.OrderStatus) error {
	query := `
		UPDATE orders SET
			status = $3,
			gateway_order_ref = $4,
			payment_method = $5,
			payment_ref = $6,
			payment_signature = $7,
			payment_status = $8,
			webhook_verified = $9,
			paid_at = $10,
			last_action = $11,
			updated_at = $12,
			version = version + 1
		WHERE order_number = $1 AND status = $2 AND version = $13
	`

	tag, err := r.pool.Exec(ctx, query,
		order.OrderNumber,
		string(expected),
		string(order.Status),
		nullable(order.GatewayOrderRef()),
		nullable(string(order.Payment.Method)),
		nullable(order.Payment.RazorpayPaymentID),
		nullable(order.Payment.RazorpaySignature),
		string(order.Payment.RazorpayPaymentStatus),
		order.Payment.WebhookVerified,
		order.Payment.PaidAt,
		nullable(order.LastAction),
		order.UpdatedAt,
		order.Version,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to update order")
		return fmt.Errorf("failed to update order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`, order.OrderNumber).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check order existence: %w", err)
		}
		if !exists {
			return model.ErrOrderNotFound
		}
		r.logger.Debug().
			Str("order_number", order.OrderNumber).
			Str("expected_status", string(expected)).
			Int64("version", order.Version).
			Msg("compare-and-swap rejected")
		return model.ErrStoreConflict
	}

	order.Version++
	return nil
}

// ListAll returns every order, newest first.
func (r *orderRepository) ListAll(ctx context.Context) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, order_number`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return r.collect(rows)
}

// ListByUser returns a user's orders, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, order_number`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query user orders")
		return nil, fmt.Errorf("failed to query user orders: %w", err)
	}
	return r.collect(rows)
}

// Delete removes an order permanently.
func (r *orderRepository) Delete(ctx context.Context, orderNumber string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE order_number = $1`, orderNumber)
	if err != nil {
		r.logger.Error().Err(err).Str("order_number", orderNumber).Msg("failed to delete order")
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) collect(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                                   model.Order
		mode, status, paymentStatus         string
		cartItems, address                  []byte
		gatewayRef, method, paymentRef, sig *string
		lastAction                          *string
		paidAt                              *time.Time
	)

	err := row.Scan(
		&o.OrderNumber,
		&o.UserID,
		&o.Amount,
		&o.Currency,
		&mode,
		&cartItems,
		&address,
		&status,
		&gatewayRef,
		&method,
		&paymentRef,
		&sig,
		&paymentStatus,
		&o.Payment.WebhookVerified,
		&paidAt,
		&lastAction,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(cartItems, &o.CartItems); err != nil {
		return nil, fmt.Errorf("failed to decode cart items: %w", err)
	}
	if err := json.Unmarshal(address, &o.AddressData); err != nil {
		return nil, fmt.Errorf("failed to decode address: %w", err)
	}

	o.Mode = model.PaymentMode(mode)
	o.Status = model.OrderStatus(status)
	o.Payment.RazorpayPaymentStatus = model.PaymentStatus(paymentStatus)
	o.Payment.PaidAt = paidAt
	if gatewayRef != nil {
		o.RazorpayOrder = &model.GatewayOrder{RazorpayOrderID: *gatewayRef}
	}
	if method != nil {
		o.Payment.Method = model.PaymentMethod(*method)
	}
	if paymentRef != nil {
		o.Payment.RazorpayPaymentID = *paymentRef
	}
	if sig != nil {
		o.Payment.RazorpaySignature = *sig
	}
	if lastAction != nil {
		o.LastAction = *lastAction
	}

	return &o, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
