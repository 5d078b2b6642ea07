// Package lifecycle owns every mutation of an order's status and payment record.
package lifecycle

import "storefront/internal/model"

// transitions lists the permitted status changes for every payment mode.
var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.StatusPending:   {model.StatusPaid, model.StatusCancelled},
	model.StatusPaid:      {model.StatusShipped, model.StatusRefunded, model.StatusCancelled},
	model.StatusShipped:   {model.StatusDelivered},
	model.StatusDelivered: {model.StatusRefunded},
}

// codTransitions are extra edges for cash-on-delivery orders, which ship
// before any money has been collected.
var codTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.StatusPending: {model.StatusShipped},
}

// Allowed reports whether an order in mode may move from one status to another.
func Allowed(mode model.PaymentMode, from, to model.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	if mode == model.ModeCOD {
		for _, s := range codTransitions[from] {
			if s == to {
				return true
			}
		}
	}
	return false
}

// Next returns the statuses reachable from the order's current status.
func Next(mode model.PaymentMode, from model.OrderStatus) []model.OrderStatus {
	next := append([]model.OrderStatus(nil), transitions[from]...)
	if mode == model.ModeCOD {
		next = append(next, codTransitions[from]...)
	}
	return next
}

// DisputeAllowed reports whether a chargeback can be recorded against an
// order in the given status. Disputes never change the order status.
func DisputeAllowed(status model.OrderStatus) bool {
	return status == model.StatusPaid
}
