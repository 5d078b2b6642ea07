package model

import "time"

// VerifyPaymentRequest is the client-side payment confirmation.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// VerifyPaymentResponse is returned after a successful confirmation.
type VerifyPaymentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   *Order `json:"order,omitempty"`
}

// GatewayOrderRequest asks the gateway to create a payable order.
type GatewayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

// GatewayOrderResponse mirrors the gateway's order object.
type GatewayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Status   string `json:"status"`
}

// Webhook event names dispatched by the reconciliation service.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventDisputeCreated  = "payment.dispute.created"
	EventRefundProcessed = "refund.processed"
)

// WebhookPayload is the subset of a gateway webhook the service consumes.
type WebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity WebhookPaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// WebhookPaymentEntity carries the payment identifiers of a webhook.
type WebhookPaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status,omitempty"`
	Amount  int64  `json:"amount,omitempty"`

	// CreatedAt and CapturedAt are unix seconds.
	CreatedAt  int64 `json:"created_at,omitempty"`
	CapturedAt int64 `json:"captured_at,omitempty"`
}

// WebhookOutcome labels what the service did with a delivered webhook.
type WebhookOutcome string

const (
	OutcomeApplied      WebhookOutcome = "applied"
	OutcomeConfirmed    WebhookOutcome = "confirmed"
	OutcomeDuplicate    WebhookOutcome = "duplicate"
	OutcomeIgnored      WebhookOutcome = "ignored"
	OutcomeOrderMissing WebhookOutcome = "order_not_found"
	OutcomeRejected     WebhookOutcome = "illegal_transition"
)

// WebhookResult is acknowledged back to the gateway.
type WebhookResult struct {
	Status  string         `json:"status"`
	Outcome WebhookOutcome `json:"outcome"`
	Message string         `json:"message,omitempty"`
}

// WebhookDelivery is one inbound webhook as read off the wire.
type WebhookDelivery struct {
	Body       []byte
	Signature  string
	RequestID  string
	ReceivedAt time.Time
}
