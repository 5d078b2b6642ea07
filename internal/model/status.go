package model

import "fmt"

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
	StatusRefunded  OrderStatus = "refunded"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusPaid,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
	StatusRefunded,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s OrderStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

func (s OrderStatus) String() string {
	return string(s)
}

// ParseOrderStatus converts a raw string into an OrderStatus.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if !s.Valid() {
		return "", NewValidationError(fmt.Sprintf("unknown order status %q", raw))
	}
	return s, nil
}

// PaymentStatus mirrors the gateway-side state of the payment.
type PaymentStatus string

const (
	PaymentCreated   PaymentStatus = "created"
	PaymentCaptured  PaymentStatus = "captured"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentDisputed  PaymentStatus = "disputed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCOD       PaymentStatus = "cod"
	// PaymentRefundPending marks an order whose refund has been claimed but
	// not yet confirmed by the gateway.
	PaymentRefundPending PaymentStatus = "refund_pending"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentCreated, PaymentCaptured, PaymentFailed, PaymentCancelled,
		PaymentDisputed, PaymentRefunded, PaymentCOD, PaymentRefundPending:
		return true
	}
	return false
}

// PaymentMode is how the customer chose to pay at checkout.
type PaymentMode string

const (
	ModeCOD  PaymentMode = "cod"
	ModeUPI  PaymentMode = "upi"
	ModeCard PaymentMode = "card"
)

// Valid reports whether m is a known payment mode.
func (m PaymentMode) Valid() bool {
	switch m {
	case ModeCOD, ModeUPI, ModeCard:
		return true
	}
	return false
}

// Online reports whether the mode settles through the payment gateway.
func (m PaymentMode) Online() bool {
	return m == ModeUPI || m == ModeCard
}

// PaymentMethod records which rail settled the payment.
type PaymentMethod string

const (
	MethodRazorpay PaymentMethod = "razorpay"
	MethodCOD      PaymentMethod = "cod"
)
