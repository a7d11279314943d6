package service

import (
	"context"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/paymentclient"
)

// OrderStore is the persistence the order side needs.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, from, to string) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// PaymentStore is the persistence the payment side needs. SavePayment writes
// msg to the outbox in the same transaction as the payment update.
type PaymentStore interface {
	InsertPayment(ctx context.Context, p *models.Payment) (bool, error)
	GetPaymentByID(ctx context.Context, paymentID int64) (*models.Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	SavePayment(ctx context.Context, p *models.Payment, msg *models.OutboxMessage) error
}

type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// PaymentClient is the order service's view of the payment service.
type PaymentClient interface {
	Refund(ctx context.Context, orderID string) (*paymentclient.PaymentResult, error)
	Pay(ctx context.Context, orderID string, amount float64, method string) (*paymentclient.PaymentResult, error)
}

type GatewayOrders interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*gateway.RemoteOrder, error)
}

// Processor settles direct charges and refunds.
type Processor interface {
	Charge(ctx context.Context, orderID string, amount float64) bool
	Refund(ctx context.Context, orderID string, amount float64) bool
}

// StatusNotifier is told about every persisted order status change.
type StatusNotifier interface {
	NotifyOrderStatus(orderID, status string)
}

type noopNotifier struct{}

func (noopNotifier) NotifyOrderStatus(string, string) {}
