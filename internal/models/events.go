package models

import (
	"strings"
	"time"
)

// Event types
const (
	EventTypePaymentStatus = "PAYMENT_STATUS"
)

// Payment status codes carried on the wire.
const (
	EventStatusSuccess = "SUCCESS"
	EventStatusFailed  = "FAILED"
)

// PaymentStatusEvent is published by the payment service whenever a payment
// settles. Timestamp is epoch milliseconds.
type PaymentStatusEvent struct {
	EventID         string `json:"eventId,omitempty"`
	OrderID         string `json:"orderId"`
	PaymentID       string `json:"paymentId"`
	RazorpayOrderID string `json:"razorpayOrderId"`
	Status          string `json:"status"`
	Reason          string `json:"reason"`
	Timestamp       int64  `json:"timestamp"`
}

// NewPaymentStatusEvent builds an event for the given payment.
func NewPaymentStatusEvent(eventID string, p *Payment, status, reason string, now time.Time) *PaymentStatusEvent {
	return &PaymentStatusEvent{
		EventID:         eventID,
		OrderID:         p.OrderID,
		PaymentID:       p.RazorpayPaymentID,
		RazorpayOrderID: p.RazorpayOrderID,
		Status:          status,
		Reason:          reason,
		Timestamp:       now.UnixMilli(),
	}
}

// OrderEventFor maps a wire status to the order event it drives.
// ok is false for statuses the order side does not act on.
func OrderEventFor(status string) (event OrderEvent, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SUCCESS", "VERIFIED":
		return OrderEventPaymentSucceeded, true
	case "FAILED", "FAILURE", "CANCELLED":
		return OrderEventPaymentFailed, true
	default:
		return "", false
	}
}
