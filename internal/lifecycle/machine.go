package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// DefaultMaxAttempts bounds the read-decide-write loop under contention.
const DefaultMaxAttempts = 5

// Source identifies who asked for a change.
type Source string

const (
	SourceClient  Source = "client"
	SourceWebhook Source = "webhook"
	SourceAdmin   Source = "admin"
)

// Change is a requested mutation of one order. An empty Target asks for a
// payment-only change (a dispute, or claiming or releasing a refund) that
// leaves the status alone.
type Change struct {
	Target        model.OrderStatus
	PaymentStatus model.PaymentStatus
	PaymentRef    string
	Signature     string
	// WebhookVerified marks the change as confirmed by a signed webhook.
	WebhookVerified bool
	PaidAt          *time.Time
	// From, when set, restricts the change to orders currently in that status.
	From model.OrderStatus
	// Release hands back a refund claim, restoring PaymentStatus. It is a
	// no-op unless the order still carries the claim.
	Release bool
	Source  Source
	Action  string
}

// Result reports what Apply did.
type Result struct {
	Order           *model.Order
	Previous        model.OrderStatus
	PreviousPayment model.PaymentStatus
	// Transitioned is true when the status changed.
	Transitioned bool
	// Updated is true when anything was persisted, including payment-only
	// changes and webhook confirmations.
	Updated bool
	// Confirmed is true when a webhook confirmed an order already marked paid.
	Confirmed bool
	// RefConflict is true when a different payment reference was reported for
	// an order that already holds one. The first reference is kept.
	RefConflict bool
}

// Machine applies changes to orders through the store's compare-and-swap.
type Machine interface {
	Apply(ctx context.Context, orderNumber string, change Change) (*Result, error)
}

type machine struct {
	repo        repository.OrderRepository
	publisher   events.Publisher
	logger      zerolog.Logger
	now         func() time.Time
	maxAttempts int
}

// Option customises a Machine.
type Option func(*machine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *machine) { m.now = now }
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(m *machine) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// NewMachine creates a state machine over repo.
func NewMachine(repo repository.OrderRepository, publisher events.Publisher, logger zerolog.Logger, opts ...Option) Machine {
	m := &machine{
		repo:        repo,
		publisher:   publisher,
		logger:      logger.With().Str("component", "lifecycle").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply reads the order, decides the outcome and writes it guarded by the
// status and version it read. A lost race re-reads and decides again, so a
// change that became a no-op in the meantime is reported as such.
func (m *machine) Apply(ctx context.Context, orderNumber string, change Change) (*Result, error) {
	if change.Target != "" && !change.Target.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("unknown order status %q", change.Target))
	}

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		current, err := m.repo.GetByOrderNumber(ctx, orderNumber)
		if err != nil {
			return nil, err
		}

		next, res, err := m.decide(current, change)
		if err != nil {
			m.logger.Info().
				Err(err).
				Str("order_number", orderNumber).
				Str("current_status", string(current.Status)).
				Str("target_status", string(change.Target)).
				Str("source", string(change.Source)).
				Msg("change rejected")
			return nil, err
		}
		if next == nil {
			return res, nil
		}

		err = m.repo.Update(ctx, next, current.Status)
		if errors.Is(err, model.ErrStoreConflict) {
			metrics.RecordConflict(string(change.Source))
			m.logger.Debug().
				Str("order_number", orderNumber).
				Int("attempt", attempt).
				Msg("concurrent modification, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		res.Order = next
		m.afterApply(ctx, current, res, change)
		return res, nil
	}

	m.logger.Warn().
		Str("order_number", orderNumber).
		Int("attempts", m.maxAttempts).
		Msg("giving up after repeated concurrent modifications")
	return nil, fmt.Errorf("failed to apply change to order %s: %w", orderNumber, model.ErrStoreConflict)
}

// decide returns the order to persist, or nil when the change is a no-op.
func (m *machine) decide(current *model.Order, change Change) (*model.Order, *Result, error) {
	res := &Result{Order: current, Previous: current.Status, PreviousPayment: current.Payment.RazorpayPaymentStatus}

	if change.Target == "" {
		return m.decidePaymentOnly(current, change, res)
	}

	if current.Status == change.Target || m.paidEarlier(current, change) {
		return m.decideRepeat(current, change, res)
	}

	// A claimed refund only lets the order move to refunded.
	if current.Payment.RazorpayPaymentStatus == model.PaymentRefundPending && change.Target != model.StatusRefunded {
		return nil, nil, &model.TransitionError{Current: current.Status, Attempted: change.Target}
	}

	if change.From != "" && current.Status != change.From {
		return nil, nil, &model.TransitionError{Current: current.Status, Attempted: change.Target}
	}

	if !Allowed(current.Mode, current.Status, change.Target) {
		return nil, nil, &model.TransitionError{Current: current.Status, Attempted: change.Target}
	}

	if change.Target == model.StatusPaid && current.Mode.Online() && current.GatewayOrderRef() == "" {
		return nil, nil, model.NewValidationError("online order has no gateway order reference")
	}

	next := current.Clone()
	now := m.now()
	next.Status = change.Target
	if change.PaymentStatus != "" {
		next.Payment.RazorpayPaymentStatus = change.PaymentStatus
	}

	switch change.Target {
	case model.StatusPaid:
		if next.Payment.RazorpayPaymentID == "" {
			next.Payment.RazorpayPaymentID = change.PaymentRef
		}
		if next.Payment.RazorpaySignature == "" {
			next.Payment.RazorpaySignature = change.Signature
		}
		if next.Payment.PaidAt == nil {
			paidAt := now
			if change.PaidAt != nil {
				paidAt = *change.PaidAt
			}
			next.Payment.PaidAt = &paidAt
		}
	case model.StatusDelivered:
		if current.Mode == model.ModeCOD && next.Payment.PaidAt == nil {
			next.Payment.PaidAt = &now
		}
	}

	next.Payment.WebhookVerified = current.Payment.WebhookVerified || change.WebhookVerified
	next.LastAction = change.Action
	next.UpdatedAt = now

	res.Transitioned = true
	res.Updated = true
	return next, res, nil
}

// paidEarlier reports whether change reports a gateway payment for an online
// order that has already moved past paid.
func (m *machine) paidEarlier(current *model.Order, change Change) bool {
	if change.Target != model.StatusPaid || change.PaymentRef == "" || !current.Mode.Online() {
		return false
	}
	switch current.Status {
	case model.StatusShipped, model.StatusDelivered, model.StatusRefunded:
		return true
	}
	return false
}

// decideRepeat handles a change whose target is already the current status,
// or a payment report for an order that has moved on since it was paid.
func (m *machine) decideRepeat(current *model.Order, change Change, res *Result) (*model.Order, *Result, error) {
	if change.Target != model.StatusPaid {
		return nil, res, nil
	}

	stored := current.Payment.RazorpayPaymentID
	if change.PaymentRef != "" && stored != "" && change.PaymentRef != stored {
		m.logger.Warn().
			Str("order_number", current.OrderNumber).
			Str("stored_payment_ref", stored).
			Str("reported_payment_ref", change.PaymentRef).
			Str("source", string(change.Source)).
			Msg("conflicting payment reference reported for paid order, keeping the first")
		res.RefConflict = true
		return nil, res, nil
	}

	if !change.WebhookVerified || current.Payment.WebhookVerified {
		return nil, res, nil
	}

	next := current.Clone()
	next.Payment.WebhookVerified = true
	if next.Payment.RazorpayPaymentID == "" {
		next.Payment.RazorpayPaymentID = change.PaymentRef
	}
	next.LastAction = change.Action
	next.UpdatedAt = m.now()

	res.Updated = true
	res.Confirmed = true
	return next, res, nil
}

// decidePaymentOnly records a chargeback, or claims or releases a refund,
// without touching the status.
func (m *machine) decidePaymentOnly(current *model.Order, change Change, res *Result) (*model.Order, *Result, error) {
	if change.Release {
		return m.releaseRefund(current, change, res)
	}

	switch change.PaymentStatus {
	case model.PaymentDisputed:
		return m.decideDispute(current, change, res)
	case model.PaymentRefundPending:
		return m.claimRefund(current, change, res)
	}
	return nil, nil, model.NewValidationError(fmt.Sprintf("unsupported payment-only change %q", change.PaymentStatus))
}

func (m *machine) decideDispute(current *model.Order, change Change, res *Result) (*model.Order, *Result, error) {
	if current.Payment.RazorpayPaymentStatus == model.PaymentDisputed {
		return nil, res, nil
	}

	if !DisputeAllowed(current.Status) || current.Payment.RazorpayPaymentStatus == model.PaymentRefundPending {
		return nil, nil, &model.TransitionError{
			Current:   current.Status,
			Attempted: current.Status,
			Event:     "dispute",
		}
	}

	next := current.Clone()
	next.Payment.RazorpayPaymentStatus = model.PaymentDisputed
	next.LastAction = change.Action
	next.UpdatedAt = m.now()

	res.Updated = true
	return next, res, nil
}

// claimRefund marks the order as owned by one refund before any money moves.
// An order that is already refunded is returned unchanged.
func (m *machine) claimRefund(current *model.Order, change Change, res *Result) (*model.Order, *Result, error) {
	if current.Status == model.StatusRefunded {
		return nil, res, nil
	}
	if current.Payment.RazorpayPaymentStatus == model.PaymentRefundPending {
		return nil, nil, model.ErrRefundInProgress
	}
	if !Allowed(current.Mode, current.Status, model.StatusRefunded) {
		return nil, nil, &model.TransitionError{Current: current.Status, Attempted: model.StatusRefunded}
	}

	next := current.Clone()
	next.Payment.RazorpayPaymentStatus = model.PaymentRefundPending
	next.LastAction = change.Action
	next.UpdatedAt = m.now()

	res.Updated = true
	return next, res, nil
}

func (m *machine) releaseRefund(current *model.Order, change Change, res *Result) (*model.Order, *Result, error) {
	if !change.PaymentStatus.Valid() || change.PaymentStatus == model.PaymentRefundPending {
		return nil, nil, model.NewValidationError(fmt.Sprintf("cannot release refund to payment status %q", change.PaymentStatus))
	}
	if current.Payment.RazorpayPaymentStatus != model.PaymentRefundPending {
		return nil, res, nil
	}

	next := current.Clone()
	next.Payment.RazorpayPaymentStatus = change.PaymentStatus
	next.LastAction = change.Action
	next.UpdatedAt = m.now()

	res.Updated = true
	return next, res, nil
}

func (m *machine) afterApply(ctx context.Context, previous *model.Order, res *Result, change Change) {
	order := res.Order

	eventType := events.TypePaymentUpdated
	if res.Transitioned {
		eventType = events.TypeStatusChanged
		metrics.RecordTransition(string(previous.Status), string(order.Status), string(change.Source))
	}

	m.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("from_status", string(previous.Status)).
		Str("to_status", string(order.Status)).
		Str("payment_status", string(order.Payment.RazorpayPaymentStatus)).
		Str("action", change.Action).
		Bool("confirmed", res.Confirmed).
		Msg("order updated")

	event := events.OrderEvent{
		Type:          eventType,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		FromStatus:    previous.Status,
		ToStatus:      order.Status,
		PaymentStatus: order.Payment.RazorpayPaymentStatus,
		Action:        change.Action,
		OccurredAt:    order.UpdatedAt,
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn().Err(err).Str("order_number", order.OrderNumber).Msg("failed to publish order event")
	}
}
