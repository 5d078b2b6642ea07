package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/gateway"
	"storefront/internal/lifecycle"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// adminService implements AdminService.
type adminService struct {
	orderRepo repository.OrderRepository
	machine   lifecycle.Machine
	gateway   gateway.Client
	logger    zerolog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(
	orderRepo repository.OrderRepository,
	machine lifecycle.Machine,
	gatewayClient gateway.Client,
	logger zerolog.Logger,
) AdminService {
	return &adminService{
		orderRepo: orderRepo,
		machine:   machine,
		gateway:   gatewayClient,
		logger:    logger.With().Str("service", "admin").Logger(),
	}
}

// Perform runs one admin action against an order.
func (s *adminService) Perform(ctx context.Context, orderNumber string, action AdminAction) (*model.Order, error) {
	if _, err := ParseAdminAction(string(action)); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	change := lifecycle.Change{
		Source: lifecycle.SourceAdmin,
		Action: "admin:" + string(action),
	}

	switch action {
	case ActionMarkPaid:
		change.Target = model.StatusPaid
		if order.Mode.Online() {
			change.PaymentStatus = model.PaymentCaptured
		}
	case ActionShip:
		change.Target = model.StatusShipped
	case ActionDeliver:
		change.Target = model.StatusDelivered
	case ActionCancel:
		change.Target = model.StatusCancelled
		if order.Payment.RazorpayPaymentStatus == model.PaymentCreated {
			change.PaymentStatus = model.PaymentCancelled
		}
	case ActionRefund:
		return s.refund(ctx, order, change)
	}

	return s.apply(ctx, orderNumber, change)
}

// SetStatus moves an order to target through the same rules as Perform.
func (s *adminService) SetStatus(ctx context.Context, orderNumber string, target model.OrderStatus) (*model.Order, error) {
	if !target.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("unknown order status %q", target))
	}

	var action AdminAction
	switch target {
	case model.StatusPaid:
		action = ActionMarkPaid
	case model.StatusShipped:
		action = ActionShip
	case model.StatusDelivered:
		action = ActionDeliver
	case model.StatusCancelled:
		action = ActionCancel
	case model.StatusRefunded:
		action = ActionRefund
	case model.StatusPending:
		order, err := s.orderRepo.GetByOrderNumber(ctx, orderNumber)
		if err != nil {
			return nil, err
		}
		if order.Status == model.StatusPending {
			return order, nil
		}
		return nil, &model.TransitionError{Current: order.Status, Attempted: model.StatusPending}
	}

	return s.Perform(ctx, orderNumber, action)
}

// refund claims the order through the store before any money moves, so
// concurrent refunds and status changes see the claim and back off. A
// failed gateway call hands the claim back.
func (s *adminService) refund(ctx context.Context, order *model.Order, change lifecycle.Change) (*model.Order, error) {
	change.Target = model.StatusRefunded
	change.PaymentStatus = model.PaymentRefunded

	if !order.Mode.Online() || order.Payment.RazorpayPaymentID == "" {
		return s.apply(ctx, order.OrderNumber, change)
	}

	claim, err := s.machine.Apply(ctx, order.OrderNumber, lifecycle.Change{
		PaymentStatus: model.PaymentRefundPending,
		Source:        change.Source,
		Action:        change.Action,
	})
	if err != nil {
		return nil, err
	}
	if !claim.Updated {
		return claim.Order, nil
	}

	claimed := claim.Order
	refund, err := s.gateway.RefundPayment(ctx, claimed.Payment.RazorpayPaymentID, claimed.Amount)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("order_number", claimed.OrderNumber).
			Str("gateway_payment_id", claimed.Payment.RazorpayPaymentID).
			Msg("gateway refund failed")

		_, releaseErr := s.machine.Apply(context.WithoutCancel(ctx), claimed.OrderNumber, lifecycle.Change{
			PaymentStatus: claim.PreviousPayment,
			Release:       true,
			Source:        change.Source,
			Action:        change.Action + ":failed",
		})
		if releaseErr != nil {
			s.logger.Error().
				Err(releaseErr).
				Str("order_number", claimed.OrderNumber).
				Msg("failed to release refund claim")
		}
		return nil, fmt.Errorf("failed to refund payment: %w", err)
	}

	s.logger.Info().
		Str("order_number", claimed.OrderNumber).
		Str("refund_id", refund.ID).
		Int64("amount", refund.Amount).
		Msg("gateway refund issued")

	return s.apply(context.WithoutCancel(ctx), claimed.OrderNumber, change)
}

func (s *adminService) apply(ctx context.Context, orderNumber string, change lifecycle.Change) (*model.Order, error) {
	res, err := s.machine.Apply(ctx, orderNumber, change)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_number", orderNumber).
		Str("action", change.Action).
		Str("status", string(res.Order.Status)).
		Bool("transitioned", res.Transitioned).
		Msg("admin action applied")
	return res.Order, nil
}
