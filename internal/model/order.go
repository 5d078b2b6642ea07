package model

import (
	"time"
)

// DefaultCurrency is applied when a checkout does not name a currency.
const DefaultCurrency = "INR"

// Order represents a customer order together with its payment record.
type Order struct {
	OrderNumber   string        `json:"orderNumber" db:"order_number"`
	UserID        string        `json:"userId" db:"user_id"`
	Amount        int64         `json:"amount" db:"amount"`
	Currency      string        `json:"currency" db:"currency"`
	Mode          PaymentMode   `json:"mode" db:"mode"`
	CartItems     []LineItem    `json:"cartItems" db:"cart_items"`
	AddressData   Address       `json:"addressData" db:"address_data"`
	Status        OrderStatus   `json:"status" db:"status"`
	RazorpayOrder *GatewayOrder `json:"razorpayOrder,omitempty"`
	Payment       Payment       `json:"payment"`
	LastAction    string        `json:"lastAction,omitempty" db:"last_action"`
	Version       int64         `json:"-" db:"version"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`
}

// LineItem is a snapshot of one cart entry at checkout time.
type LineItem struct {
	ProductID string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Image     string `json:"image,omitempty"`
}

// Address is the shipping address copied onto the order.
type Address struct {
	FullName     string `json:"fullName,omitempty"`
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone"`
	Street       string `json:"street"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Zip          string `json:"zip,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// GatewayOrder links an order to the gateway-side order object.
type GatewayOrder struct {
	RazorpayOrderID string `json:"razorpayOrderId"`
}

// Payment is the payment sub-record of an order.
type Payment struct {
	Method                PaymentMethod `json:"method,omitempty" db:"payment_method"`
	RazorpayPaymentID     string        `json:"razorpayPaymentId,omitempty" db:"payment_ref"`
	RazorpaySignature     string        `json:"razorpaySignature,omitempty" db:"payment_signature"`
	RazorpayPaymentStatus PaymentStatus `json:"razorpayPaymentStatus" db:"payment_status"`
	WebhookVerified       bool          `json:"webhookVerified" db:"webhook_verified"`
	PaidAt                *time.Time    `json:"paidAt,omitempty" db:"paid_at"`
}

// GatewayOrderRef returns the gateway order reference, or "" when none is set.
func (o *Order) GatewayOrderRef() string {
	if o.RazorpayOrder == nil {
		return ""
	}
	return o.RazorpayOrder.RazorpayOrderID
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	if o.CartItems != nil {
		c.CartItems = make([]LineItem, len(o.CartItems))
		copy(c.CartItems, o.CartItems)
	}
	if o.RazorpayOrder != nil {
		ref := *o.RazorpayOrder
		c.RazorpayOrder = &ref
	}
	if o.Payment.PaidAt != nil {
		paidAt := *o.Payment.PaidAt
		c.Payment.PaidAt = &paidAt
	}
	return &c
}

// CreateOrderRequest represents the checkout payload for creating an order.
type CreateOrderRequest struct {
	UserID        string        `json:"userId"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency,omitempty"`
	Mode          PaymentMode   `json:"mode"`
	CartItems     []LineItem    `json:"cartItems"`
	AddressData   *Address      `json:"addressData"`
	RazorpayOrder *GatewayOrder `json:"razorpayOrder,omitempty"`
}

// CreateOrderResponse is returned after a successful checkout.
type CreateOrderResponse struct {
	Message string `json:"message"`
	Order   *Order `json:"order"`
}

// OrdersResponse wraps order listings.
type OrdersResponse struct {
	Orders []Order `json:"orders"`
}

// OrderResponse wraps a single order.
type OrderResponse struct {
	Message string `json:"message,omitempty"`
	Order   *Order `json:"order"`
}

// StatusUpdateRequest is the admin payload for a direct status change.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}
