// Package signature verifies HMAC-SHA256 signatures issued by the payment gateway.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"storefront/internal/model"
)

// Compute returns the lowercase hex HMAC-SHA256 of message under secret.
func Compute(secret, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the hex HMAC-SHA256 of message under secret.
// A malformed signature is a mismatch, not an error.
func Verify(secret, message []byte, signature string) (bool, error) {
	if len(secret) == 0 {
		return false, model.NewValidationError("signature secret is empty")
	}
	if len(message) == 0 {
		return false, model.NewValidationError("signed message is empty")
	}
	if signature == "" {
		return false, model.NewValidationError("signature is empty")
	}

	provided, err := hex.DecodeString(signature)
	if err != nil || len(provided) != sha256.Size {
		return false, nil
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hmac.Equal(mac.Sum(nil), provided), nil
}

// PaymentMessage builds the string the gateway signs for a client-side confirmation.
func PaymentMessage(gatewayOrderID, gatewayPaymentID string) []byte {
	return []byte(gatewayOrderID + "|" + gatewayPaymentID)
}

// Verifier holds the two gateway secrets. The key secret signs client
// confirmations, the webhook secret signs webhook bodies.
type Verifier struct {
	keySecret     []byte
	webhookSecret []byte
}

// NewVerifier creates a verifier for the given secrets.
func NewVerifier(keySecret, webhookSecret string) *Verifier {
	return &Verifier{
		keySecret:     []byte(keySecret),
		webhookSecret: []byte(webhookSecret),
	}
}

// VerifyPayment checks a client-reported payment confirmation.
func (v *Verifier) VerifyPayment(gatewayOrderID, gatewayPaymentID, sig string) (bool, error) {
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return false, model.NewValidationError("gateway order and payment ids are required")
	}
	return Verify(v.keySecret, PaymentMessage(gatewayOrderID, gatewayPaymentID), sig)
}

// VerifyWebhook checks the signature of a raw, unparsed webhook body.
func (v *Verifier) VerifyWebhook(rawBody []byte, sig string) (bool, error) {
	return Verify(v.webhookSecret, rawBody, sig)
}
