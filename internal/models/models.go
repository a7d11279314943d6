package models

import "time"

// Order represents a customer purchase tracked through confirm/cancel.
type Order struct {
	OrderID      string    `db:"order_id" json:"orderId"`
	CustomerName string    `db:"customer_name" json:"customerName"`
	TotalAmount  float64   `db:"total_amount" json:"totalAmount"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Payment represents the charge attempt for one order.
type Payment struct {
	PaymentID         int64     `db:"payment_id" json:"paymentId"`
	OrderID           string    `db:"order_id" json:"orderId"`
	Amount            float64   `db:"amount" json:"amount"`
	Currency          string    `db:"currency" json:"currency"`
	PaymentMethod     string    `db:"payment_method" json:"paymentMethod"`
	RazorpayOrderID   string    `db:"razorpay_order_id" json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string    `db:"razorpay_payment_id" json:"razorpayPaymentId,omitempty"`
	RazorpaySignature string    `db:"razorpay_signature" json:"-"`
	Status            string    `db:"status" json:"status"`
	Timestamp         time.Time `db:"timestamp" json:"timestamp"`
}

// Order statuses
const (
	OrderStatusPending             = "Pending"
	OrderStatusConfirmed           = "Confirmed"
	OrderStatusPaymentFailed       = "Payment Failed"
	OrderStatusPaymentError        = "Payment Error"
	OrderStatusPaymentUnavailable  = "Payment Service Unavailable"
	OrderStatusCancellationPending = "CANCELLATION_PENDING"
	OrderStatusCancelled           = "CANCELLED"
	OrderStatusCancellationFailed  = "CANCELLATION_FAILED"
)

// Payment statuses
const (
	PaymentStatusCreated       = "CREATED"
	PaymentStatusPending       = "Pending"
	PaymentStatusSuccess       = "Success"
	PaymentStatusFailed        = "Failed"
	PaymentStatusRefundPending = "REFUND_PENDING"
	PaymentStatusRefunded      = "REFUNDED"
	PaymentStatusRefundFailed  = "REFUND_FAILED"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// OutboxMessage is a serialized event waiting to be published.
type OutboxMessage struct {
	ID        int64     `db:"id"`
	EventID   string    `db:"event_id"`
	Key       string    `db:"message_key"`
	EventType string    `db:"event_type"`
	Payload   []byte    `db:"payload"`
	Attempts  int       `db:"attempts"`
	CreatedAt time.Time `db:"created_at"`
}
