package service

import (
	"context"
	"errors"
	"strings"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// StatusSubscriber applies payment status events to orders. Events are
// deduplicated by event id; undeliverable events are logged and dropped.
type StatusSubscriber struct {
	store  OrderStore
	orders *OrderService
	logger *zap.Logger
}

func NewStatusSubscriber(store OrderStore, orders *OrderService) *StatusSubscriber {
	return &StatusSubscriber{
		store:  store,
		orders: orders,
		logger: util.GetLogger(),
	}
}

// HandlePaymentStatus returns an error only for failures worth retrying.
func (s *StatusSubscriber) HandlePaymentStatus(ctx context.Context, event *models.PaymentStatusEvent) error {
	ctx, span := util.StartSpan(ctx, "StatusSubscriber.HandlePaymentStatus", event.OrderID)
	defer span.End()

	if strings.TrimSpace(event.OrderID) == "" {
		util.EventsConsumedTotal.WithLabelValues("invalid").Inc()
		s.logger.Warn("Payment status event without orderId", zap.String("event_id", event.EventID))
		return nil
	}

	orderEvent, ok := models.OrderEventFor(event.Status)
	if !ok {
		util.EventsConsumedTotal.WithLabelValues("ignored").Inc()
		s.logger.Info("Ignoring payment status",
			zap.String("order_id", event.OrderID),
			zap.String("status", event.Status))
		return nil
	}

	if event.EventID != "" {
		processed, err := s.store.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			return err
		}
		if processed {
			util.EventsConsumedTotal.WithLabelValues("duplicate").Inc()
			s.logger.Info("Event already processed, skipping", zap.String("event_id", event.EventID))
			return nil
		}
	}

	_, err := s.orders.ApplyStatus(ctx, event.OrderID, orderEvent)
	switch {
	case errors.Is(err, models.ErrNotFound):
		util.EventsConsumedTotal.WithLabelValues("unknown_order").Inc()
		s.logger.Warn("Payment status for unknown order",
			zap.String("order_id", event.OrderID),
			zap.String("event_id", event.EventID))
	case errors.Is(err, models.ErrIllegalTransition):
		util.EventsConsumedTotal.WithLabelValues("rejected").Inc()
		s.logger.Warn("Payment status does not apply to order",
			zap.String("order_id", event.OrderID),
			zap.String("status", event.Status),
			zap.Error(err))
	case err != nil:
		return err
	default:
		util.EventsConsumedTotal.WithLabelValues("applied").Inc()
	}

	if event.EventID != "" {
		if err := s.store.MarkEventProcessed(ctx, event.EventID, models.EventTypePaymentStatus); err != nil {
			s.logger.Warn("Failed to mark event processed", zap.String("event_id", event.EventID), zap.Error(err))
		}
	}
	return nil
}
