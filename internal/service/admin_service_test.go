package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseAdminAction(t *testing.T) {
	for _, raw := range []string{"mark-paid", "ship", "deliver", "cancel", "refund"} {
		a, err := ParseAdminAction(raw)
		require.NoError(t, err)
		assert.Equal(t, AdminAction(raw), a)
	}

	_, err := ParseAdminAction("teleport")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestAdminService_OnlineLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createOrder(t, model.ModeUPI, "gw_order_1")
	env.verify(t, "gw_order_1", "gw_pay_1")

	shipped, err := env.admin.Perform(ctx, created.OrderNumber, ActionShip)
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, shipped.Status)
	assert.Equal(t, "admin:ship", shipped.LastAction)

	delivered, err := env.admin.Perform(ctx, created.OrderNumber, ActionDeliver)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, delivered.Status)

	env.gateway.On("RefundPayment", ctx, "gw_pay_1", int64(50000)).
		Return(&gateway.Refund{ID: "rfnd_1", PaymentID: "gw_pay_1", Amount: 50000, Status: "processed"}, nil).Once()

	refunded, err := env.admin.Perform(ctx, created.OrderNumber, ActionRefund)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, refunded.Status)
	assert.Equal(t, model.PaymentRefunded, refunded.Payment.RazorpayPaymentStatus)

	// Refunding twice is a no-op and never reaches the gateway again.
	again, err := env.admin.Perform(ctx, created.OrderNumber, ActionRefund)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, again.Status)
	assert.Equal(t, refunded.Version, again.Version)
	env.gateway.AssertNumberOfCalls(t, "RefundPayment", 1)
}

func TestAdminService_CODLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createOrder(t, model.ModeCOD, "")

	shipped, err := env.admin.Perform(ctx, created.OrderNumber, ActionShip)
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, shipped.Status)
	assert.Nil(t, shipped.Payment.PaidAt)

	delivered, err := env.admin.Perform(ctx, created.OrderNumber, ActionDeliver)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, delivered.Status)
	assert.Equal(t, model.PaymentCOD, delivered.Payment.RazorpayPaymentStatus)
	require.NotNil(t, delivered.Payment.PaidAt)

	refunded, err := env.admin.Perform(ctx, created.OrderNumber, ActionRefund)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, refunded.Status)
	env.gateway.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminService_MarkPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	online := env.createOrder(t, model.ModeCard, "gw_order_1")
	order, err := env.admin.Perform(ctx, online.OrderNumber, ActionMarkPaid)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, order.Status)
	assert.Equal(t, model.PaymentCaptured, order.Payment.RazorpayPaymentStatus)
	assert.Equal(t, "admin:mark-paid", order.LastAction)

	cod := env.createOrder(t, model.ModeCOD, "")
	order, err = env.admin.Perform(ctx, cod.OrderNumber, ActionMarkPaid)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, order.Status)
	assert.Equal(t, model.PaymentCOD, order.Payment.RazorpayPaymentStatus)
}

func TestAdminService_Cancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createOrder(t, model.ModeUPI, "gw_order_1")

	order, err := env.admin.Perform(ctx, created.OrderNumber, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, order.Status)
	assert.Equal(t, model.PaymentCancelled, order.Payment.RazorpayPaymentStatus)

	_, err = env.admin.Perform(ctx, created.OrderNumber, ActionShip)
	var terr *model.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, model.StatusCancelled, terr.Current)
	assert.Equal(t, model.StatusShipped, terr.Attempted)
}

func TestAdminService_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name   string
		mode   model.PaymentMode
		action AdminAction
	}{
		{"ship unpaid online order", model.ModeUPI, ActionShip},
		{"deliver pending order", model.ModeCOD, ActionDeliver},
		{"refund pending online order", model.ModeCard, ActionRefund},
		{"refund pending cod order", model.ModeCOD, ActionRefund},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ref := ""
			if tt.mode.Online() {
				ref = "gw_order_1"
			}
			created := env.createOrder(t, tt.mode, ref)

			_, err := env.admin.Perform(context.Background(), created.OrderNumber, tt.action)
			assert.ErrorIs(t, err, model.ErrIllegalTransition)

			stored, err := env.orders.GetByOrderNumber(context.Background(), created.OrderNumber)
			require.NoError(t, err)
			assert.Equal(t, model.StatusPending, stored.Status)
			env.gateway.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAdminService_RefundGatewayFailureLeavesOrderPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createOrder(t, model.ModeUPI, "gw_order_1")
	env.verify(t, "gw_order_1", "gw_pay_1")

	env.gateway.On("RefundPayment", ctx, "gw_pay_1", int64(50000)).
		Return(nil, &model.GatewayError{Op: "refund payment", Err: errors.New("insufficient balance")}).Once()

	_, err := env.admin.Perform(ctx, created.OrderNumber, ActionRefund)
	assert.ErrorIs(t, err, model.ErrGateway)

	stored, err := env.orders.GetByOrderNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, stored.Status)
	assert.Equal(t, model.PaymentCaptured, stored.Payment.RazorpayPaymentStatus)

	// The released order can be refunded again.
	env.gateway.On("RefundPayment", ctx, "gw_pay_1", int64(50000)).
		Return(&gateway.Refund{ID: "rfnd_1", PaymentID: "gw_pay_1", Amount: 50000, Status: "processed"}, nil).Once()

	refunded, err := env.admin.Perform(ctx, created.OrderNumber, ActionRefund)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, refunded.Status)
	assert.Equal(t, model.PaymentRefunded, refunded.Payment.RazorpayPaymentStatus)
	env.gateway.AssertNumberOfCalls(t, "RefundPayment", 2)
}

func TestAdminService_ConcurrentRefundsMoveMoneyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createOrder(t, model.ModeUPI, "gw_order_1")
	env.verify(t, "gw_order_1", "gw_pay_1")

	env.gateway.On("RefundPayment", mock.Anything, "gw_pay_1", int64(50000)).
		After(50*time.Millisecond).
		Return(&gateway.Refund{ID: "rfnd_1", PaymentID: "gw_pay_1", Amount: 50000, Status: "processed"}, nil)

	const workers = 4
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.admin.Perform(ctx, created.OrderNumber, ActionRefund)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, model.ErrRefundInProgress)
	}
	assert.GreaterOrEqual(t, succeeded, 1)
	env.gateway.AssertNumberOfCalls(t, "RefundPayment", 1)

	stored, err := env.orders.GetByOrderNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, stored.Status)
	assert.Equal(t, model.PaymentRefunded, stored.Payment.RazorpayPaymentStatus)
}

func TestAdminService_CancelDuringRefundIsRefused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createOrder(t, model.ModeCard, "gw_order_1")
	env.verify(t, "gw_order_1", "gw_pay_1")

	var cancelErr error
	env.gateway.On("RefundPayment", ctx, "gw_pay_1", int64(50000)).
		Run(func(mock.Arguments) {
			_, cancelErr = env.admin.Perform(ctx, created.OrderNumber, ActionCancel)
		}).
		Return(&gateway.Refund{ID: "rfnd_1", PaymentID: "gw_pay_1", Amount: 50000, Status: "processed"}, nil).Once()

	refunded, err := env.admin.Perform(ctx, created.OrderNumber, ActionRefund)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, refunded.Status)
	assert.Equal(t, model.PaymentRefunded, refunded.Payment.RazorpayPaymentStatus)
	assert.Equal(t, "admin:refund", refunded.LastAction)

	var terr *model.TransitionError
	require.ErrorAs(t, cancelErr, &terr)
	assert.Equal(t, model.StatusPaid, terr.Current)
	assert.Equal(t, model.StatusCancelled, terr.Attempted)
}

func TestAdminService_RefundWebhookDuringRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createOrder(t, model.ModeUPI, "gw_order_1")
	env.verify(t, "gw_order_1", "gw_pay_1")

	var outcome model.WebhookOutcome
	env.gateway.On("RefundPayment", ctx, "gw_pay_1", int64(50000)).
		Run(func(mock.Arguments) {
			res, err := env.payments.HandleWebhook(ctx, signedDelivery(webhookBody(model.EventRefundProcessed, "gw_pay_1", "gw_order_1")))
			require.NoError(t, err)
			outcome = res.Outcome
		}).
		Return(&gateway.Refund{ID: "rfnd_1", PaymentID: "gw_pay_1", Amount: 50000, Status: "processed"}, nil).Once()

	refunded, err := env.admin.Perform(ctx, created.OrderNumber, ActionRefund)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, outcome)
	assert.Equal(t, model.StatusRefunded, refunded.Status)
	assert.Equal(t, model.PaymentRefunded, refunded.Payment.RazorpayPaymentStatus)
}

func TestAdminService_SetStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createOrder(t, model.ModeCOD, "")

	order, err := env.admin.SetStatus(ctx, created.OrderNumber, model.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, order.Status)

	order, err = env.admin.SetStatus(ctx, created.OrderNumber, model.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, order.Status)
	assert.Equal(t, "admin:ship", order.LastAction)

	_, err = env.admin.SetStatus(ctx, created.OrderNumber, model.StatusPending)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	_, err = env.admin.SetStatus(ctx, created.OrderNumber, "lost")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestAdminService_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.admin.Perform(context.Background(), "ORD-missing", ActionShip)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	_, err = env.admin.SetStatus(context.Background(), "ORD-missing", model.StatusPending)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}
