package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Header names set on every published event
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// EncodePaymentStatusEvent serializes an event to its wire form
func EncodePaymentStatusEvent(event *models.PaymentStatusEvent) ([]byte, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment status event: %w", err)
	}
	return b, nil
}

// DecodePaymentStatusEvent parses the wire form of an event
func DecodePaymentStatusEvent(payload []byte) (*models.PaymentStatusEvent, error) {
	var event models.PaymentStatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment status event: %w", err)
	}
	return &event, nil
}

// MessagePublisher is the producer side needed by EventPublisher
type MessagePublisher interface {
	Publish(ctx context.Context, key string, payload []byte, headers ...kafka.Header) error
}

// EventPublisher publishes serialized domain events
type EventPublisher struct {
	producer MessagePublisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer MessagePublisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOutboxMessage publishes a stored outbox message keyed by its order id
func (ep *EventPublisher) PublishOutboxMessage(ctx context.Context, msg *models.OutboxMessage) error {
	err := ep.producer.Publish(ctx, msg.Key, msg.Payload,
		kafka.Header{Key: HeaderEventID, Value: []byte(msg.EventID)},
		kafka.Header{Key: HeaderEventType, Value: []byte(msg.EventType)},
	)
	if err != nil {
		util.EventsPublishedTotal.WithLabelValues("error").Inc()
		return err
	}
	util.EventsPublishedTotal.WithLabelValues("ok").Inc()
	return nil
}

// PaymentStatusFunc handles one decoded payment status event
type PaymentStatusFunc func(context.Context, *models.PaymentStatusEvent) error

// EventHandler handles incoming events
type EventHandler struct {
	onPaymentStatus PaymentStatusFunc
	logger          *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnPaymentStatus registers a handler for payment status events
func (eh *EventHandler) OnPaymentStatus(handler PaymentStatusFunc) {
	eh.onPaymentStatus = handler
}

// HandleMessage decodes a message and routes it. Malformed payloads are
// logged and swallowed; they are never retried.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	event, err := DecodePaymentStatusEvent(msg.Value)
	if err != nil {
		util.EventsConsumedTotal.WithLabelValues("malformed").Inc()
		eh.logger.Error("Failed to process payment status event",
			zap.ByteString("payload", msg.Value),
			zap.Error(err))
		return nil
	}

	if event.EventID == "" {
		event.EventID = headerValue(msg.Headers, HeaderEventID)
	}

	if eh.onPaymentStatus == nil {
		eh.logger.Warn("No payment status handler registered", zap.String("order_id", event.OrderID))
		return nil
	}
	return eh.onPaymentStatus(ctx, event)
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
