package model

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string            `json:"error"`
	Message       string            `json:"message"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON          = "INVALID_JSON"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeOrderNotFound        = "ORDER_NOT_FOUND"
	ErrCodeDuplicateOrderNumber = "DUPLICATE_ORDER_NUMBER"
	ErrCodeSignatureMismatch    = "SIGNATURE_MISMATCH"
	ErrCodeIllegalTransition    = "ILLEGAL_TRANSITION"
	ErrCodeStoreConflict        = "STORE_CONFLICT"
	ErrCodeGateway              = "GATEWAY_ERROR"
	ErrCodeRefundInProgress     = "REFUND_IN_PROGRESS"
	ErrCodeUnauthorised         = "UNAUTHORIZED"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so validation errors
// with specific messages still satisfy errors.Is(err, ErrValidation).
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error with a specific message.
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// Common domain errors
var (
	ErrValidation           = NewDomainError(ErrCodeValidation, "Request validation failed")
	ErrOrderNotFound        = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrDuplicateOrderNumber = NewDomainError(ErrCodeDuplicateOrderNumber, "Order number already exists")
	ErrSignatureMismatch    = NewDomainError(ErrCodeSignatureMismatch, "Signature verification failed")
	ErrIllegalTransition    = NewDomainError(ErrCodeIllegalTransition, "Status transition not allowed")
	ErrStoreConflict        = NewDomainError(ErrCodeStoreConflict, "Order was modified concurrently")
	ErrGateway              = NewDomainError(ErrCodeGateway, "Payment gateway request failed")
	ErrRefundInProgress     = NewDomainError(ErrCodeRefundInProgress, "A refund for this order is already in progress")
)

// TransitionError reports a rejected status change.
type TransitionError struct {
	Current   OrderStatus
	Attempted OrderStatus
	Event     string
}

func (e *TransitionError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("cannot apply %s to order in status %s", e.Event, e.Current)
	}
	return fmt.Sprintf("cannot move order from %s to %s", e.Current, e.Attempted)
}

// Is lets callers match with errors.Is(err, ErrIllegalTransition).
func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// GatewayError wraps a failed call to the payment gateway.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is lets callers match with errors.Is(err, ErrGateway).
func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}
