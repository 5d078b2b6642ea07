// Package gateway talks to the Razorpay payment gateway.
package gateway

import (
	"context"
	"fmt"

	"storefront/internal/model"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/rs/zerolog"
)

// Refund is the gateway's acknowledgement of a refund request.
type Refund struct {
	ID        string
	PaymentID string
	Amount    int64
	Status    string
}

// Client is the subset of the gateway the service depends on.
type Client interface {
	// CreateOrder creates a payable gateway order for amount minor units.
	CreateOrder(ctx context.Context, req model.GatewayOrderRequest) (*model.GatewayOrderResponse, error)

	// RefundPayment refunds amount minor units of a captured payment.
	RefundPayment(ctx context.Context, paymentID string, amount int64) (*Refund, error)
}

// orderAPI and paymentAPI narrow the SDK resources to the calls we make.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpayClient struct {
	orders   orderAPI
	payments paymentAPI
	logger   zerolog.Logger
}

// NewRazorpayClient builds a gateway client from API credentials. The SDK
// client is created once and shared by every request.
func NewRazorpayClient(keyID, keySecret string, logger zerolog.Logger) (Client, error) {
	if keyID == "" || keySecret == "" {
		return nil, fmt.Errorf("razorpay key id and secret are required")
	}

	sdk := razorpay.NewClient(keyID, keySecret)

	return &razorpayClient{
		orders:   sdk.Order,
		payments: sdk.Payment,
		logger:   logger.With().Str("component", "razorpay").Logger(),
	}, nil
}

func (c *razorpayClient) CreateOrder(ctx context.Context, req model.GatewayOrderRequest) (*model.GatewayOrderResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"payment_capture": 1,
	}
	if req.Receipt != "" {
		data["receipt"] = req.Receipt
	}

	body, err := c.orders.Create(data, nil)
	if err != nil {
		c.logger.Error().Err(err).Int64("amount", req.Amount).Str("currency", req.Currency).Msg("failed to create gateway order")
		return nil, &model.GatewayError{Op: "create order", Err: err}
	}

	id := stringField(body, "id")
	if id == "" {
		return nil, &model.GatewayError{Op: "create order", Err: fmt.Errorf("response has no order id")}
	}

	c.logger.Info().Str("gateway_order_id", id).Int64("amount", req.Amount).Msg("gateway order created")

	return &model.GatewayOrderResponse{
		ID:       id,
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Receipt:  stringField(body, "receipt"),
		Status:   stringField(body, "status"),
	}, nil
}

func (c *razorpayClient) RefundPayment(ctx context.Context, paymentID string, amount int64) (*Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := c.payments.Refund(paymentID, int(amount), nil, nil)
	if err != nil {
		c.logger.Error().Err(err).Str("payment_id", paymentID).Msg("failed to refund payment")
		return nil, &model.GatewayError{Op: "refund", Err: err}
	}

	refund := &Refund{
		ID:        stringField(body, "id"),
		PaymentID: stringField(body, "payment_id"),
		Amount:    intField(body, "amount"),
		Status:    stringField(body, "status"),
	}

	c.logger.Info().
		Str("payment_id", paymentID).
		Str("refund_id", refund.ID).
		Str("refund_status", refund.Status).
		Msg("refund requested")

	return refund, nil
}

func stringField(body map[string]interface{}, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

// intField reads a JSON number, which the SDK decodes as float64.
func intField(body map[string]interface{}, key string) int64 {
	switch v := body[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	}
	return 0
}
