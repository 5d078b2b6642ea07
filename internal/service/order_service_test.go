package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"storefront/internal/events"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOrderService_CreateOrder_Online(t *testing.T) {
	env := newTestEnv(t)

	order := env.createOrder(t, model.ModeUPI, "gw_order_1")

	assert.Regexp(t, `^ORD-[0-9a-f-]{36}$`, order.OrderNumber)
	assert.Equal(t, model.StatusPending, order.Status)
	assert.Equal(t, int64(50000), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, model.MethodRazorpay, order.Payment.Method)
	assert.Equal(t, model.PaymentCreated, order.Payment.RazorpayPaymentStatus)
	assert.Equal(t, "gw_order_1", order.GatewayOrderRef())
	assert.Equal(t, "client:create", order.LastAction)
	assert.Nil(t, order.Payment.PaidAt)

	stored, err := env.orders.GetByOrderNumber(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, stored.OrderNumber)
	assert.Len(t, stored.CartItems, 2)
}

func TestOrderService_CreateOrder_COD(t *testing.T) {
	env := newTestEnv(t)

	req := validCreateRequest(model.ModeCOD, "gw_should_be_dropped")
	req.Currency = ""
	order, err := env.orders.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, order.Status)
	assert.Equal(t, model.MethodCOD, order.Payment.Method)
	assert.Equal(t, model.PaymentCOD, order.Payment.RazorpayPaymentStatus)
	assert.Equal(t, model.DefaultCurrency, order.Currency)
	assert.Empty(t, order.GatewayOrderRef())
}

func TestOrderService_CreateOrder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *model.CreateOrderRequest)
	}{
		{"missing user", func(r *model.CreateOrderRequest) { r.UserID = " " }},
		{"unknown mode", func(r *model.CreateOrderRequest) { r.Mode = "wallet" }},
		{"zero amount", func(r *model.CreateOrderRequest) { r.Amount = 0 }},
		{"bad currency", func(r *model.CreateOrderRequest) { r.Currency = "RUPEE" }},
		{"empty cart", func(r *model.CreateOrderRequest) { r.CartItems = nil }},
		{"item without id", func(r *model.CreateOrderRequest) { r.CartItems[0].ProductID = "" }},
		{"item zero quantity", func(r *model.CreateOrderRequest) { r.CartItems[1].Quantity = 0 }},
		{"missing address", func(r *model.CreateOrderRequest) { r.AddressData = nil }},
		{"address without phone", func(r *model.CreateOrderRequest) { r.AddressData.Phone = "" }},
		{"online without gateway order", func(r *model.CreateOrderRequest) { r.RazorpayOrder = nil }},
		{"online with empty gateway order", func(r *model.CreateOrderRequest) { r.RazorpayOrder.RazorpayOrderID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := validCreateRequest(model.ModeCard, "gw_order_1")
			tt.mutate(req)

			order, err := env.orders.CreateOrder(context.Background(), req)
			assert.Nil(t, order)
			assert.ErrorIs(t, err, model.ErrValidation)

			all, err := env.orders.ListAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestOrderService_CreateOrder_RetriesOrderNumberCollision(t *testing.T) {
	logger := zerolog.Nop()
	repo := repository.NewMemoryOrderRepository(logger)

	numbers := []string{"ORD-1", "ORD-1", "ORD-2"}
	next := 0
	gen := func() string {
		n := numbers[next]
		next++
		return n
	}
	svc := NewOrderService(repo, events.NewNoopPublisher(), logger, WithNumberGenerator(gen))

	first, err := svc.CreateOrder(context.Background(), validCreateRequest(model.ModeCOD, ""))
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", first.OrderNumber)

	second, err := svc.CreateOrder(context.Background(), validCreateRequest(model.ModeCOD, ""))
	require.NoError(t, err)
	assert.Equal(t, "ORD-2", second.OrderNumber)
}

func TestOrderService_CreateOrder_GivesUpOnRepeatedCollision(t *testing.T) {
	logger := zerolog.Nop()
	repo := repository.NewMemoryOrderRepository(logger)
	gen := func() string { return "ORD-SAME" }
	svc := NewOrderService(repo, events.NewNoopPublisher(), logger, WithNumberGenerator(gen))

	_, err := svc.CreateOrder(context.Background(), validCreateRequest(model.ModeCOD, ""))
	require.NoError(t, err)

	_, err = svc.CreateOrder(context.Background(), validCreateRequest(model.ModeCOD, ""))
	assert.ErrorIs(t, err, model.ErrDuplicateOrderNumber)
}

func TestOrderService_CreateOrder_PublishesEvent(t *testing.T) {
	logger := zerolog.Nop()
	repo := repository.NewMemoryOrderRepository(logger)
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e events.OrderEvent) bool {
		return e.Type == events.TypeOrderCreated && e.ToStatus == model.StatusPending && e.UserID == "user-1"
	})).Return(errors.New("broker down")).Once()

	svc := NewOrderService(repo, pub, logger)
	order, err := svc.CreateOrder(context.Background(), validCreateRequest(model.ModeUPI, "gw_1"))

	// A failed publish never fails the order.
	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderNumber)
	pub.AssertExpectations(t)
}

func TestOrderService_GetByOrderNumber_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orders.GetByOrderNumber(context.Background(), "ORD-missing")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	_, err = env.orders.GetByOrderNumber(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestOrderService_ListAndTrack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		env.createOrder(t, model.ModeUPI, fmt.Sprintf("gw_%d", i))
	}
	other := validCreateRequest(model.ModeCOD, "")
	other.UserID = "user-2"
	_, err := env.orders.CreateOrder(ctx, other)
	require.NoError(t, err)

	all, err := env.orders.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 8)

	mine, err := env.orders.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 7)
	for i := 1; i < len(mine); i++ {
		assert.False(t, mine[i].CreatedAt.After(mine[i-1].CreatedAt), "orders must be newest first")
	}

	tracked, err := env.orders.TrackByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, tracked, DefaultTrackLimit)

	_, err = env.orders.TrackByUser(ctx, "nobody")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	none, err := env.orders.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOrderService_TrackLimitOption(t *testing.T) {
	logger := zerolog.Nop()
	repo := repository.NewMemoryOrderRepository(logger)
	svc := NewOrderService(repo, events.NewNoopPublisher(), logger, WithTrackLimit(2))

	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrder(context.Background(), validCreateRequest(model.ModeCOD, ""))
		require.NoError(t, err)
	}

	tracked, err := svc.TrackByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, tracked, 2)
}

func TestOrderService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, model.ModeCOD, "")

	require.NoError(t, env.orders.Delete(ctx, order.OrderNumber))

	_, err := env.orders.GetByOrderNumber(ctx, order.OrderNumber)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	assert.ErrorIs(t, env.orders.Delete(ctx, order.OrderNumber), model.ErrOrderNotFound)
}
