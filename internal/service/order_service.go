package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/events"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultTrackLimit is how many recent orders tracking returns.
	DefaultTrackLimit = 5

	maxOrderNumberAttempts = 3
)

// NumberGenerator produces order numbers.
type NumberGenerator func() string

// NewOrderNumber returns "ORD-" followed by a random UUID.
func NewOrderNumber() string {
	return "ORD-" + uuid.NewString()
}

// orderService implements OrderService.
type orderService struct {
	orderRepo  repository.OrderRepository
	publisher  events.Publisher
	numbers    NumberGenerator
	trackLimit int
	now        func() time.Time
	logger     zerolog.Logger
}

// OrderServiceOption customises the order service.
type OrderServiceOption func(*orderService)

// WithNumberGenerator overrides NewOrderNumber.
func WithNumberGenerator(gen NumberGenerator) OrderServiceOption {
	return func(s *orderService) { s.numbers = gen }
}

// WithTrackLimit overrides DefaultTrackLimit.
func WithTrackLimit(limit int) OrderServiceOption {
	return func(s *orderService) {
		if limit > 0 {
			s.trackLimit = limit
		}
	}
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	publisher events.Publisher,
	logger zerolog.Logger,
	opts ...OrderServiceOption,
) OrderService {
	s := &orderService{
		orderRepo:  orderRepo,
		publisher:  publisher,
		numbers:    NewOrderNumber,
		trackLimit: DefaultTrackLimit,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With().Str("service", "order").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder validates a checkout and stores a new pending order.
func (s *orderService) CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.Order, error) {
	if err := s.validateCreateRequest(req); err != nil {
		s.logger.Warn().Err(err).Msg("invalid order request")
		return nil, err
	}

	now := s.now()
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = model.DefaultCurrency
	}

	order := &model.Order{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Currency:    currency,
		Mode:        req.Mode,
		CartItems:   append([]model.LineItem(nil), req.CartItems...),
		AddressData: *req.AddressData,
		Status:      model.StatusPending,
		LastAction:  "client:create",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if req.Mode.Online() {
		order.RazorpayOrder = &model.GatewayOrder{RazorpayOrderID: req.RazorpayOrder.RazorpayOrderID}
		order.Payment = model.Payment{
			Method:                model.MethodRazorpay,
			RazorpayPaymentStatus: model.PaymentCreated,
		}
	} else {
		order.Payment = model.Payment{
			Method:                model.MethodCOD,
			RazorpayPaymentStatus: model.PaymentCOD,
		}
	}

	var err error
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = s.numbers()
		order.Version = 0

		err = s.orderRepo.Create(ctx, order)
		if !errors.Is(err, model.ErrDuplicateOrderNumber) {
			break
		}
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Int("attempt", attempt).
			Msg("order number collision, regenerating")
	}
	if err != nil {
		if errors.Is(err, model.ErrDuplicateOrderNumber) || errors.Is(err, model.ErrValidation) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("failed to create order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("user_id", order.UserID).
		Str("mode", string(order.Mode)).
		Int64("amount", order.Amount).
		Int("item_count", len(order.CartItems)).
		Msg("order created successfully")

	s.publish(ctx, events.OrderEvent{
		Type:          events.TypeOrderCreated,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		ToStatus:      order.Status,
		PaymentStatus: order.Payment.RazorpayPaymentStatus,
		Action:        order.LastAction,
		OccurredAt:    now,
	})

	return order, nil
}

// GetByOrderNumber retrieves a single order.
func (s *orderService) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, model.NewValidationError("order number is required")
	}

	order, err := s.orderRepo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("order_number", orderNumber).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ListAll returns every order, newest first.
func (s *orderService) ListAll(ctx context.Context) ([]model.Order, error) {
	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListByUser returns all of a user's orders, newest first.
func (s *orderService) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, model.NewValidationError("userId is required")
	}

	orders, err := s.orderRepo.ListByUser(ctx, userID, 0)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list user orders")
		return nil, fmt.Errorf("failed to list user orders: %w", err)
	}
	return orders, nil
}

// TrackByUser returns the user's most recent orders.
func (s *orderService) TrackByUser(ctx context.Context, userID string) ([]model.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, model.NewValidationError("userId is required")
	}

	orders, err := s.orderRepo.ListByUser(ctx, userID, s.trackLimit)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to track user orders")
		return nil, fmt.Errorf("failed to track user orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, model.ErrOrderNotFound
	}
	return orders, nil
}

// Delete removes an order permanently.
func (s *orderService) Delete(ctx context.Context, orderNumber string) error {
	order, err := s.orderRepo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete order: %w", err)
	}

	if err := s.orderRepo.Delete(ctx, orderNumber); err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			return err
		}
		s.logger.Error().Err(err).Str("order_number", orderNumber).Msg("failed to delete order")
		return fmt.Errorf("failed to delete order: %w", err)
	}

	s.logger.Info().
		Str("order_number", orderNumber).
		Str("status", string(order.Status)).
		Msg("order deleted")

	s.publish(ctx, events.OrderEvent{
		Type:        events.TypeOrderDeleted,
		OrderNumber: orderNumber,
		UserID:      order.UserID,
		FromStatus:  order.Status,
		ToStatus:    order.Status,
		Action:      "admin:delete",
		OccurredAt:  s.now(),
	})
	return nil
}

func (s *orderService) publish(ctx context.Context, event events.OrderEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("order_number", event.OrderNumber).Msg("failed to publish order event")
	}
}

// validateCreateRequest validates the checkout payload.
func (s *orderService) validateCreateRequest(req *model.CreateOrderRequest) error {
	if req == nil {
		return model.NewValidationError("order request is required")
	}

	if strings.TrimSpace(req.UserID) == "" {
		return model.NewValidationError("userId is required")
	}

	if !req.Mode.Valid() {
		return model.NewValidationError("mode must be one of cod, upi, card")
	}

	if req.Amount <= 0 {
		return model.NewValidationError("amount must be greater than zero")
	}

	if c := strings.TrimSpace(req.Currency); c != "" && len(c) != 3 {
		return model.NewValidationError("currency must be a 3-letter code")
	}

	if len(req.CartItems) == 0 {
		return model.NewValidationError("cartItems must contain at least one item")
	}

	for i, item := range req.CartItems {
		if strings.TrimSpace(item.ProductID) == "" {
			return model.NewValidationError(fmt.Sprintf("cartItems[%d]: id is required", i))
		}
		if item.Quantity <= 0 {
			return model.NewValidationError(fmt.Sprintf("cartItems[%d]: quantity must be greater than zero", i))
		}
		if item.UnitPrice < 0 {
			return model.NewValidationError(fmt.Sprintf("cartItems[%d]: price cannot be negative", i))
		}
	}

	if req.AddressData == nil {
		return model.NewValidationError("addressData is required")
	}
	if strings.TrimSpace(req.AddressData.Phone) == "" || strings.TrimSpace(req.AddressData.Street) == "" {
		return model.NewValidationError("addressData.phone and addressData.street are required")
	}

	if req.Mode.Online() && (req.RazorpayOrder == nil || strings.TrimSpace(req.RazorpayOrder.RazorpayOrderID) == "") {
		return model.NewValidationError("razorpayOrder.razorpayOrderId is required for online payments")
	}

	return nil
}
