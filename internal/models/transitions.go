package models

import (
	"fmt"
	"strings"
)

// OrderEvent is something that happened to an order and may move its status.
type OrderEvent string

const (
	OrderEventPaymentSucceeded   OrderEvent = "payment_succeeded"
	OrderEventPaymentFailed      OrderEvent = "payment_failed"
	OrderEventPaymentErrored     OrderEvent = "payment_errored"
	OrderEventPaymentUnavailable OrderEvent = "payment_unavailable"
	OrderEventCancelRequested    OrderEvent = "cancel_requested"
	OrderEventRefundSucceeded    OrderEvent = "refund_succeeded"
	OrderEventRefundFailed       OrderEvent = "refund_failed"
)

var orderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPaymentFailed,
	OrderStatusPaymentError,
	OrderStatusPaymentUnavailable,
	OrderStatusCancellationPending,
	OrderStatusCancelled,
	OrderStatusCancellationFailed,
}

// paymentOutcomes are accepted while an order is still waiting on a payment.
var paymentOutcomes = map[OrderEvent]string{
	OrderEventPaymentSucceeded:   OrderStatusConfirmed,
	OrderEventPaymentFailed:      OrderStatusPaymentFailed,
	OrderEventPaymentErrored:     OrderStatusPaymentError,
	OrderEventPaymentUnavailable: OrderStatusPaymentUnavailable,
}

var orderTransitions = map[string]map[OrderEvent]string{
	OrderStatusPending:            paymentOutcomes,
	OrderStatusPaymentError:       paymentOutcomes,
	OrderStatusPaymentUnavailable: paymentOutcomes,
	OrderStatusConfirmed: {
		OrderEventPaymentSucceeded: OrderStatusConfirmed,
		OrderEventCancelRequested:  OrderStatusCancellationPending,
	},
	// A failed payment can be retried through gateway checkout, so a later
	// success still confirms the order.
	OrderStatusPaymentFailed: {
		OrderEventPaymentSucceeded: OrderStatusConfirmed,
		OrderEventPaymentFailed:    OrderStatusPaymentFailed,
	},
	OrderStatusCancellationPending: {
		OrderEventRefundSucceeded: OrderStatusCancelled,
		OrderEventRefundFailed:    OrderStatusCancellationFailed,
	},
	OrderStatusCancelled:          {},
	OrderStatusCancellationFailed: {},
}

// CanonicalOrderStatus returns the known spelling of status, matched
// case-insensitively. ok is false for unknown values.
func CanonicalOrderStatus(status string) (string, bool) {
	s := strings.TrimSpace(status)
	for _, known := range orderStatuses {
		if strings.EqualFold(known, s) {
			return known, true
		}
	}
	return status, false
}

// NextOrderStatus looks up the status an order moves to when event happens
// in status current. Unknown pairs yield ErrIllegalTransition.
func NextOrderStatus(current string, event OrderEvent) (string, error) {
	canonical, ok := CanonicalOrderStatus(current)
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, current)
	}
	next, ok := orderTransitions[canonical][event]
	if !ok {
		return "", fmt.Errorf("%w: %s on %q", ErrIllegalTransition, event, canonical)
	}
	return next, nil
}
