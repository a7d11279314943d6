package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"checkout-service/internal/models"
	"checkout-service/internal/paymentclient"
	"checkout-service/internal/util"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// OrderService owns the order lifecycle
type OrderService struct {
	store    OrderStore
	payments PaymentClient
	notifier StatusNotifier
	ids      *snowflake.Node
	logger   *zap.Logger
}

// NewOrderService creates a new order service. notifier may be nil.
func NewOrderService(store OrderStore, payments PaymentClient, notifier StatusNotifier, ids *snowflake.Node) *OrderService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &OrderService{
		store:    store,
		payments: payments,
		notifier: notifier,
		ids:      ids,
		logger:   util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerName string  `json:"customerName" binding:"required"`
	TotalAmount  float64 `json:"totalAmount" binding:"required,gt=0"`
	OrderID      string  `json:"orderId,omitempty"`
}

// OrderStatusResponse is the body returned by every order mutation
type OrderStatusResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func statusResponse(o *models.Order) *OrderStatusResponse {
	return &OrderStatusResponse{OrderID: o.OrderID, Status: o.Status}
}

// CreateOrder persists a new Pending order. A missing orderId is generated.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderStatusResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder", req.OrderID)
	defer span.End()

	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, fmt.Errorf("%w: customerName is required", models.ErrInvalidRequest)
	}
	if req.TotalAmount <= 0 {
		return nil, fmt.Errorf("%w: totalAmount must be positive", models.ErrInvalidRequest)
	}

	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		orderID = "ORD" + s.ids.Generate().String()
	}

	order := &models.Order{
		OrderID:      orderID,
		CustomerName: req.CustomerName,
		TotalAmount:  req.TotalAmount,
		Status:       models.OrderStatusPending,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.OrderID),
		zap.Float64("total_amount", order.TotalAmount))

	return statusResponse(order), nil
}

// GetOrder retrieves an order by id
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.store.GetOrderByID(ctx, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.store.ListOrders(ctx)
}

// ApplyStatus applies event to the order through the transition table.
// An event that leaves the order where it is succeeds without a write.
func (s *OrderService) ApplyStatus(ctx context.Context, orderID string, event models.OrderEvent) (*OrderStatusResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ApplyStatus", orderID)
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, order, event); err != nil {
		return statusResponse(order), err
	}
	return statusResponse(order), nil
}

// Confirm marks a pending order paid
func (s *OrderService) Confirm(ctx context.Context, orderID string) (*OrderStatusResponse, error) {
	return s.ApplyStatus(ctx, orderID, models.OrderEventPaymentSucceeded)
}

// MarkPaymentFailed marks a pending order's payment as failed
func (s *OrderService) MarkPaymentFailed(ctx context.Context, orderID string) (*OrderStatusResponse, error) {
	return s.ApplyStatus(ctx, orderID, models.OrderEventPaymentFailed)
}

// Cancel cancels a Confirmed order by refunding its payment. The order is
// checkpointed as CANCELLATION_PENDING before the refund call; any refund
// outcome other than REFUNDED ends in CANCELLATION_FAILED.
func (s *OrderService) Cancel(ctx context.Context, orderID string) (*OrderStatusResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Cancel", orderID)
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if status, _ := models.CanonicalOrderStatus(order.Status); status != models.OrderStatusConfirmed {
		return statusResponse(order), fmt.Errorf("%w: only Confirmed orders can be cancelled, order is %q",
			models.ErrConflict, order.Status)
	}

	if err := s.transition(ctx, order, models.OrderEventCancelRequested); err != nil {
		return statusResponse(order), err
	}

	outcome := models.OrderEventRefundFailed
	result, err := s.payments.Refund(ctx, orderID)
	switch {
	case err != nil:
		s.logger.Warn("Refund call failed", zap.String("order_id", orderID), zap.Error(err))
	case result == nil:
		s.logger.Warn("Refund call returned no body", zap.String("order_id", orderID))
	case result.Status == models.PaymentStatusRefunded:
		outcome = models.OrderEventRefundSucceeded
	default:
		s.logger.Warn("Refund not completed",
			zap.String("order_id", orderID),
			zap.String("payment_status", result.Status))
	}

	// The checkpoint must be resolved even if the caller went away.
	if err := s.transition(context.WithoutCancel(ctx), order, outcome); err != nil {
		return statusResponse(order), err
	}

	s.logger.Info("Order cancellation finished",
		zap.String("order_id", orderID),
		zap.String("status", order.Status))
	return statusResponse(order), nil
}

// PayRequest is the body of an order-initiated payment
type PayRequest struct {
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

var payableStatuses = map[string]bool{
	models.OrderStatusPending:            true,
	models.OrderStatusPaymentError:       true,
	models.OrderStatusPaymentUnavailable: true,
}

// Pay charges the order total through the payment service and records the
// outcome on the order.
func (s *OrderService) Pay(ctx context.Context, orderID string, req *PayRequest) (*OrderStatusResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Pay", orderID)
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if status, _ := models.CanonicalOrderStatus(order.Status); !payableStatuses[status] {
		return statusResponse(order), fmt.Errorf("%w: order is %q", models.ErrConflict, order.Status)
	}

	event := models.OrderEventPaymentErrored
	result, err := s.payments.Pay(ctx, orderID, order.TotalAmount, req.PaymentMethod)
	var statusErr *paymentclient.StatusError
	switch {
	case errors.As(err, &statusErr):
		s.logger.Warn("Payment service rejected payment",
			zap.String("order_id", orderID),
			zap.Int("http_status", statusErr.Code))
	case err != nil:
		event = models.OrderEventPaymentUnavailable
		s.logger.Warn("Payment service unavailable", zap.String("order_id", orderID), zap.Error(err))
	case result == nil:
		s.logger.Warn("Payment service returned no body", zap.String("order_id", orderID))
	case result.Status == models.PaymentStatusSuccess:
		event = models.OrderEventPaymentSucceeded
	case result.Status == models.PaymentStatusFailed:
		event = models.OrderEventPaymentFailed
	default:
		s.logger.Warn("Unexpected payment status",
			zap.String("order_id", orderID),
			zap.String("payment_status", result.Status))
	}

	if err := s.transition(context.WithoutCancel(ctx), order, event); err != nil {
		return statusResponse(order), err
	}
	return statusResponse(order), nil
}

// transition moves order along event and persists the change with a
// compare-and-set on its previous status. order is updated in place, also
// when another writer got there first.
func (s *OrderService) transition(ctx context.Context, order *models.Order, event models.OrderEvent) error {
	next, err := models.NextOrderStatus(order.Status, event)
	if err != nil {
		util.OrderTransitionsRejected.WithLabelValues(string(event)).Inc()
		s.logger.Warn("Rejected order status change",
			zap.String("order_id", order.OrderID),
			zap.String("status", order.Status),
			zap.String("event", string(event)))
		return err
	}

	if current, _ := models.CanonicalOrderStatus(order.Status); current == next {
		return nil
	}

	if err := s.store.UpdateOrderStatus(ctx, order.OrderID, order.Status, next); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Lost the compare-and-set; report what the winner left behind.
			if latest, rerr := s.store.GetOrderByID(ctx, order.OrderID); rerr == nil {
				order.Status = latest.Status
			}
		}
		return fmt.Errorf("failed to update order status: %w", err)
	}

	s.logger.Info("Order status changed",
		zap.String("order_id", order.OrderID),
		zap.String("from", order.Status),
		zap.String("status", next))

	order.Status = next
	util.OrderTransitionsTotal.WithLabelValues(next).Inc()
	s.notifier.NotifyOrderStatus(order.OrderID, next)
	return nil
}
