package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/archive"
	"storefront/internal/gateway"
	"storefront/internal/lifecycle"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/signature"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// paymentService implements PaymentService.
type paymentService struct {
	orderRepo repository.OrderRepository
	machine   lifecycle.Machine
	gateway   gateway.Client
	verifier  *signature.Verifier
	archiver  archive.Archiver
	logger    zerolog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	orderRepo repository.OrderRepository,
	machine lifecycle.Machine,
	gatewayClient gateway.Client,
	verifier *signature.Verifier,
	archiver archive.Archiver,
	logger zerolog.Logger,
) PaymentService {
	return &paymentService{
		orderRepo: orderRepo,
		machine:   machine,
		gateway:   gatewayClient,
		verifier:  verifier,
		archiver:  archiver,
		logger:    logger.With().Str("service", "payment").Logger(),
	}
}

// CreateGatewayOrder asks the gateway for a payable order.
func (s *paymentService) CreateGatewayOrder(ctx context.Context, req *model.GatewayOrderRequest) (*model.GatewayOrderResponse, error) {
	if req == nil || req.Amount <= 0 || strings.TrimSpace(req.Currency) == "" {
		return nil, model.NewValidationError("Amount and currency are required")
	}
	if len(strings.TrimSpace(req.Currency)) != 3 {
		return nil, model.NewValidationError("currency must be a 3-letter code")
	}

	call := model.GatewayOrderRequest{
		Amount:   req.Amount,
		Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
		Receipt:  req.Receipt,
	}
	if call.Receipt == "" {
		call.Receipt = "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	resp, err := s.gateway.CreateOrder(ctx, call)
	if err != nil {
		s.logger.Error().Err(err).Int64("amount", call.Amount).Msg("failed to create gateway order")
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	s.logger.Info().
		Str("gateway_order_id", resp.ID).
		Int64("amount", resp.Amount).
		Str("currency", resp.Currency).
		Msg("gateway order created")
	return resp, nil
}

// VerifyPayment applies a client-reported confirmation.
func (s *paymentService) VerifyPayment(ctx context.Context, orderNumber string, req *model.VerifyPaymentRequest) (*model.Order, error) {
	if req == nil ||
		strings.TrimSpace(req.RazorpayOrderID) == "" ||
		strings.TrimSpace(req.RazorpayPaymentID) == "" ||
		strings.TrimSpace(req.RazorpaySignature) == "" {
		return nil, model.NewValidationError("razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	}

	order, err := s.orderRepo.GetByGatewayOrderRef(ctx, req.RazorpayOrderID)
	if err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			s.logger.Warn().
				Str("gateway_order_id", req.RazorpayOrderID).
				Msg("payment verification for unknown gateway order")
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}
	if orderNumber != "" && order.OrderNumber != orderNumber {
		s.logger.Warn().
			Str("order_number", orderNumber).
			Str("gateway_order_id", req.RazorpayOrderID).
			Msg("gateway order belongs to a different order")
		return nil, model.ErrOrderNotFound
	}

	ok, err := s.verifier.VerifyPayment(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.RecordSignatureFailure("client")
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Str("gateway_order_id", req.RazorpayOrderID).
			Str("gateway_payment_id", req.RazorpayPaymentID).
			Msg("payment signature mismatch")
		return nil, model.ErrSignatureMismatch
	}

	res, err := s.machine.Apply(ctx, order.OrderNumber, lifecycle.Change{
		Target:        model.StatusPaid,
		PaymentStatus: model.PaymentCaptured,
		PaymentRef:    req.RazorpayPaymentID,
		Signature:     req.RazorpaySignature,
		Source:        lifecycle.SourceClient,
		Action:        "client:verify",
	})
	if err != nil {
		return nil, err
	}

	if res.RefConflict {
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Str("gateway_payment_id", req.RazorpayPaymentID).
			Msg("order already paid with a different payment")
	}
	return res.Order, nil
}

// HandleWebhook verifies and dispatches a gateway webhook.
func (s *paymentService) HandleWebhook(ctx context.Context, delivery model.WebhookDelivery) (*model.WebhookResult, error) {
	receivedAt := delivery.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	valid := false
	if delivery.Signature != "" && len(delivery.Body) > 0 {
		ok, err := s.verifier.VerifyWebhook(delivery.Body, delivery.Signature)
		valid = err == nil && ok
	}

	var payload model.WebhookPayload
	decodeErr := json.Unmarshal(delivery.Body, &payload)

	s.archive(ctx, archive.Record{
		RequestID:      delivery.RequestID,
		Event:          payload.Event,
		SignatureValid: valid,
		Body:           delivery.Body,
		ReceivedAt:     receivedAt,
	})

	if !valid {
		metrics.RecordSignatureFailure("webhook")
		s.logger.Warn().
			Str("request_id", delivery.RequestID).
			Int("body_bytes", len(delivery.Body)).
			Msg("webhook signature mismatch")
		return nil, model.ErrSignatureMismatch
	}

	if decodeErr != nil {
		s.logger.Warn().Err(decodeErr).Str("request_id", delivery.RequestID).Msg("malformed webhook body")
		return s.ack("", model.OutcomeIgnored, "malformed payload"), nil
	}

	entity := payload.Payload.Payment.Entity
	log := s.logger.With().
		Str("request_id", delivery.RequestID).
		Str("event", payload.Event).
		Str("gateway_order_id", entity.OrderID).
		Str("gateway_payment_id", entity.ID).
		Logger()

	change, known := webhookChange(payload.Event, entity, receivedAt)
	if !known {
		log.Info().Msg("ignoring unhandled webhook event")
		return s.ack(payload.Event, model.OutcomeIgnored, "event not handled"), nil
	}
	if entity.OrderID == "" {
		log.Warn().Msg("webhook without gateway order id")
		return s.ack(payload.Event, model.OutcomeIgnored, "missing order id"), nil
	}

	order, err := s.orderRepo.GetByGatewayOrderRef(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			log.Warn().Msg("webhook for unknown gateway order")
			return s.ack(payload.Event, model.OutcomeOrderMissing, "order not found"), nil
		}
		log.Error().Err(err).Msg("failed to look up order for webhook")
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}

	res, err := s.machine.Apply(ctx, order.OrderNumber, change)
	if err != nil {
		var terr *model.TransitionError
		if errors.As(err, &terr) {
			log.Warn().
				Str("order_number", order.OrderNumber).
				Str("current_status", string(terr.Current)).
				Str("attempted_status", string(terr.Attempted)).
				Msg("webhook transition not allowed")
			return s.ack(payload.Event, model.OutcomeRejected, terr.Error()), nil
		}
		if errors.Is(err, model.ErrOrderNotFound) {
			return s.ack(payload.Event, model.OutcomeOrderMissing, "order not found"), nil
		}
		log.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to apply webhook")
		return nil, fmt.Errorf("failed to apply webhook: %w", err)
	}

	switch {
	case res.Confirmed:
		return s.ack(payload.Event, model.OutcomeConfirmed, ""), nil
	case res.Updated:
		return s.ack(payload.Event, model.OutcomeApplied, ""), nil
	default:
		return s.ack(payload.Event, model.OutcomeDuplicate, ""), nil
	}
}

// webhookChange maps a webhook event to a lifecycle change. A capture is
// dated by the gateway's capture time when it sends one, else by receipt.
func webhookChange(event string, entity model.WebhookPaymentEntity, receivedAt time.Time) (lifecycle.Change, bool) {
	action := "webhook:" + event
	switch event {
	case model.EventPaymentCaptured:
		change := lifecycle.Change{
			Target:          model.StatusPaid,
			PaymentStatus:   model.PaymentCaptured,
			PaymentRef:      entity.ID,
			WebhookVerified: true,
			Source:          lifecycle.SourceWebhook,
			Action:          action,
		}
		paidAt := receivedAt.UTC()
		if entity.CapturedAt > 0 {
			paidAt = time.Unix(entity.CapturedAt, 0).UTC()
		}
		change.PaidAt = &paidAt
		return change, true
	case model.EventPaymentFailed:
		return lifecycle.Change{
			Target:        model.StatusCancelled,
			PaymentStatus: model.PaymentFailed,
			From:          model.StatusPending,
			Source:        lifecycle.SourceWebhook,
			Action:        action,
		}, true
	case model.EventDisputeCreated:
		return lifecycle.Change{
			PaymentStatus: model.PaymentDisputed,
			Source:        lifecycle.SourceWebhook,
			Action:        action,
		}, true
	case model.EventRefundProcessed:
		return lifecycle.Change{
			Target:        model.StatusRefunded,
			PaymentStatus: model.PaymentRefunded,
			Source:        lifecycle.SourceWebhook,
			Action:        action,
		}, true
	}
	return lifecycle.Change{}, false
}

func (s *paymentService) ack(event string, outcome model.WebhookOutcome, message string) *model.WebhookResult {
	metrics.RecordWebhook(event, string(outcome))
	return &model.WebhookResult{Status: "ok", Outcome: outcome, Message: message}
}

func (s *paymentService) archive(ctx context.Context, rec archive.Record) {
	if err := s.archiver.Archive(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Str("request_id", rec.RequestID).Msg("failed to archive webhook")
	}
}
