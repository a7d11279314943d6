package worker

import (
	"context"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// OutboxStore is the outbox side of the payments store
type OutboxStore interface {
	ClaimOutbox(ctx context.Context, limit int, lease time.Duration) ([]models.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id int64) error
	MarkOutboxRetry(ctx context.Context, id int64, nextRetry time.Time) error
}

type OutboxPublisher interface {
	PublishOutboxMessage(ctx context.Context, msg *models.OutboxMessage) error
}

const outboxLease = 30 * time.Second

// OutboxDispatcher publishes payment status events written by the payment
// service until Kafka acknowledges them.
type OutboxDispatcher struct {
	store     OutboxStore
	publisher OutboxPublisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

func NewOutboxDispatcher(store OutboxStore, publisher OutboxPublisher, interval time.Duration, batchSize int) *OutboxDispatcher {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxDispatcher{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// Start dispatches every interval until ctx is cancelled
func (d *OutboxDispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting outbox dispatcher", zap.Duration("interval", d.interval))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.Dispatch(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("Outbox dispatch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			d.logger.Info("Stopping outbox dispatcher")
			return
		case <-ticker.C:
		}
	}
}

// Dispatch runs one round and returns how many messages were published.
func (d *OutboxDispatcher) Dispatch(ctx context.Context) (int, error) {
	msgs, err := d.store.ClaimOutbox(ctx, d.batchSize, outboxLease)
	if err != nil {
		return 0, err
	}
	util.OutboxPending.Set(float64(len(msgs)))

	// Once a message for an order fails, later ones for the same order wait
	// with it so they are not published out of order.
	blocked := make(map[string]time.Time)
	sent := 0
	for i := range msgs {
		msg := &msgs[i]
		if next, ok := blocked[msg.Key]; ok {
			d.reschedule(ctx, msg, next)
			continue
		}
		if err := d.publishOne(ctx, msg); err != nil {
			delay := retryDelay(msg.Attempts + 1)
			d.logger.Warn("Publish failed, will retry",
				zap.String("event_id", msg.EventID),
				zap.String("order_id", msg.Key),
				zap.Duration("retry_in", delay),
				zap.Error(err))
			blocked[msg.Key] = d.now().Add(delay)
			d.reschedule(ctx, msg, blocked[msg.Key])
			continue
		}
		sent++
	}
	return sent, nil
}

func (d *OutboxDispatcher) reschedule(ctx context.Context, msg *models.OutboxMessage, next time.Time) {
	if err := d.store.MarkOutboxRetry(ctx, msg.ID, next); err != nil {
		d.logger.Error("Failed to reschedule outbox message", zap.Int64("id", msg.ID), zap.Error(err))
	}
}

func (d *OutboxDispatcher) publishOne(ctx context.Context, msg *models.OutboxMessage) error {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.publisher.PublishOutboxMessage(pubCtx, msg); err != nil {
		return err
	}

	// A failed mark leaves the row leased; it is published again after the lease.
	if err := d.store.MarkOutboxSent(ctx, msg.ID); err != nil {
		d.logger.Error("Failed to mark outbox message sent", zap.Int64("id", msg.ID), zap.Error(err))
	}
	return nil
}

// retryDelay doubles from one second and caps at one minute.
func retryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 6 {
		attempts = 6
	}
	delay := time.Duration(1<<attempts) * time.Second
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}
