package worker

import (
	"context"

	"checkout-service/internal/broker"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// PaymentStatusWorker feeds payment status events from Kafka into the order side
type PaymentStatusWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewPaymentStatusWorker creates a new payment status worker
func NewPaymentStatusWorker(consumer *broker.Consumer, subscriber *service.StatusSubscriber) *PaymentStatusWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentStatus(subscriber.HandlePaymentStatus)

	return &PaymentStatusWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks until ctx is cancelled
func (w *PaymentStatusWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting payment status worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

func (w *PaymentStatusWorker) Stop() error {
	w.logger.Info("Stopping payment status worker")
	return w.consumer.Close()
}
