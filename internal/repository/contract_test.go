package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(userID string, createdAt time.Time, gatewayRef string) *model.Order {
	o := &model.Order{
		OrderNumber: "ORD-" + uuid.NewString(),
		UserID:      userID,
		Amount:      50000,
		Currency:    model.DefaultCurrency,
		Mode:        model.ModeUPI,
		CartItems: []model.LineItem{
			{ProductID: "P001", Name: "Linen Shirt", UnitPrice: 25000, Quantity: 2, Size: "M", Color: "white"},
		},
		AddressData: model.Address{FullName: "Asha Rao", Phone: "9999999999", Street: "12 MG Road", City: "Pune", Zip: "411001"},
		Status:      model.StatusPending,
		Payment: model.Payment{
			Method:                model.MethodRazorpay,
			RazorpayPaymentStatus: model.PaymentCreated,
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if gatewayRef != "" {
		o.RazorpayOrder = &model.GatewayOrder{RazorpayOrderID: gatewayRef}
	}
	return o
}

// runOrderRepositoryContract exercises behaviour every OrderRepository must share.
func runOrderRepositoryContract(t *testing.T, newRepo func(t *testing.T) OrderRepository) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("Create and get", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-1", base, "gw_order_"+uuid.NewString())

		require.NoError(t, repo.Create(ctx, order))

		got, err := repo.GetByOrderNumber(ctx, order.OrderNumber)
		require.NoError(t, err)
		assert.Equal(t, order.OrderNumber, got.OrderNumber)
		assert.Equal(t, int64(50000), got.Amount)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.Equal(t, order.CartItems, got.CartItems)
		assert.Equal(t, order.AddressData, got.AddressData)
		assert.Equal(t, model.PaymentCreated, got.Payment.RazorpayPaymentStatus)
		assert.Equal(t, int64(1), got.Version)

		byRef, err := repo.GetByGatewayOrderRef(ctx, order.GatewayOrderRef())
		require.NoError(t, err)
		assert.Equal(t, order.OrderNumber, byRef.OrderNumber)
	})

	t.Run("Duplicate order number", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-1", base, "")
		require.NoError(t, repo.Create(ctx, order))

		dup := newTestOrder("user-2", base, "")
		dup.OrderNumber = order.OrderNumber
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, model.ErrDuplicateOrderNumber)
	})

	t.Run("Not found", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetByOrderNumber(ctx, "ORD-missing")
		assert.ErrorIs(t, err, model.ErrOrderNotFound)

		_, err = repo.GetByGatewayOrderRef(ctx, "gw_missing")
		assert.ErrorIs(t, err, model.ErrOrderNotFound)

		err = repo.Delete(ctx, "ORD-missing")
		assert.ErrorIs(t, err, model.ErrOrderNotFound)

		ghost := newTestOrder("user-1", base, "")
		err = repo.Update(ctx, ghost, model.StatusPending)
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})

	t.Run("Update with matching guard", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-1", base, "gw_order_"+uuid.NewString())
		require.NoError(t, repo.Create(ctx, order))

		current, err := repo.GetByOrderNumber(ctx, order.OrderNumber)
		require.NoError(t, err)

		paidAt := base.Add(time.Minute)
		current.Status = model.StatusPaid
		current.Payment.RazorpayPaymentID = "gw_pay_1"
		current.Payment.RazorpayPaymentStatus = model.PaymentCaptured
		current.Payment.PaidAt = &paidAt
		current.LastAction = "client:verify"
		current.UpdatedAt = paidAt

		require.NoError(t, repo.Update(ctx, current, model.StatusPending))
		assert.Equal(t, int64(2), current.Version)

		got, err := repo.GetByOrderNumber(ctx, order.OrderNumber)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPaid, got.Status)
		assert.Equal(t, "gw_pay_1", got.Payment.RazorpayPaymentID)
		assert.Equal(t, "client:verify", got.LastAction)
		require.NotNil(t, got.Payment.PaidAt)
		assert.True(t, paidAt.Equal(*got.Payment.PaidAt))
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("Update rejected on stale status or version", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-1", base, "")
		require.NoError(t, repo.Create(ctx, order))

		first, err := repo.GetByOrderNumber(ctx, order.OrderNumber)
		require.NoError(t, err)
		second, err := repo.GetByOrderNumber(ctx, order.OrderNumber)
		require.NoError(t, err)

		first.Status = model.StatusPaid
		require.NoError(t, repo.Update(ctx, first, model.StatusPending))

		second.Status = model.StatusCancelled
		err = repo.Update(ctx, second, model.StatusPending)
		assert.ErrorIs(t, err, model.ErrStoreConflict)

		got, err := repo.GetByOrderNumber(ctx, order.OrderNumber)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPaid, got.Status)
	})

	t.Run("Concurrent updates admit exactly one winner", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-1", base, "")
		require.NoError(t, repo.Create(ctx, order))

		const writers = 8
		var wins, conflicts atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				o, err := repo.GetByOrderNumber(ctx, order.OrderNumber)
				if err != nil {
					return
				}
				o.Status = model.StatusPaid
				o.Payment.RazorpayPaymentID = fmt.Sprintf("gw_pay_%d", i)
				switch err := repo.Update(ctx, o, model.StatusPending); err {
				case nil:
					wins.Add(1)
				case model.ErrStoreConflict:
					conflicts.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(writers-1), conflicts.Load())
	})

	t.Run("List newest first with limit", func(t *testing.T) {
		repo := newRepo(t)
		userID := "user-" + uuid.NewString()

		var numbers []string
		for i := 0; i < 7; i++ {
			o := newTestOrder(userID, base.Add(time.Duration(i)*time.Second), "")
			require.NoError(t, repo.Create(ctx, o))
			numbers = append(numbers, o.OrderNumber)
		}
		require.NoError(t, repo.Create(ctx, newTestOrder("someone-else", base, "")))

		all, err := repo.ListByUser(ctx, userID, 0)
		require.NoError(t, err)
		require.Len(t, all, 7)
		assert.Equal(t, numbers[6], all[0].OrderNumber)
		assert.Equal(t, numbers[0], all[6].OrderNumber)

		recent, err := repo.ListByUser(ctx, userID, 5)
		require.NoError(t, err)
		require.Len(t, recent, 5)
		assert.Equal(t, numbers[6], recent[0].OrderNumber)

		none, err := repo.ListByUser(ctx, "nobody", 5)
		require.NoError(t, err)
		assert.Empty(t, none)

		everything, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(everything), 8)
		for i := 1; i < len(everything); i++ {
			assert.False(t, everything[i].CreatedAt.After(everything[i-1].CreatedAt))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("user-1", base, "gw_order_"+uuid.NewString())
		require.NoError(t, repo.Create(ctx, order))

		require.NoError(t, repo.Delete(ctx, order.OrderNumber))

		_, err := repo.GetByOrderNumber(ctx, order.OrderNumber)
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
		_, err = repo.GetByGatewayOrderRef(ctx, order.GatewayOrderRef())
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})
}
