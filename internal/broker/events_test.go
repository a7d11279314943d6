package broker

import (
	"context"
	"errors"
	"testing"

	"checkout-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	key     string
	payload []byte
	headers []kafka.Header
	err     error
}

func (r *recordingProducer) Publish(_ context.Context, key string, payload []byte, headers ...kafka.Header) error {
	r.key, r.payload, r.headers = key, payload, headers
	return r.err
}

func TestEncodeUsesWireFieldNames(t *testing.T) {
	b, err := EncodePaymentStatusEvent(&models.PaymentStatusEvent{
		EventID:         "evt-1",
		OrderID:         "ORD1",
		PaymentID:       "pay_1",
		RazorpayOrderID: "order_1",
		Status:          models.EventStatusSuccess,
		Reason:          "Payment signature verified",
		Timestamp:       1700000000000,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"eventId": "evt-1",
		"orderId": "ORD1",
		"paymentId": "pay_1",
		"razorpayOrderId": "order_1",
		"status": "SUCCESS",
		"reason": "Payment signature verified",
		"timestamp": 1700000000000
	}`, string(b))
}

func TestPublishOutboxMessageKeysByOrder(t *testing.T) {
	producer := &recordingProducer{}
	publisher := NewEventPublisher(producer)

	msg := &models.OutboxMessage{EventID: "evt-9", Key: "ORD9", EventType: models.EventTypePaymentStatus, Payload: []byte(`{"orderId":"ORD9"}`)}
	require.NoError(t, publisher.PublishOutboxMessage(context.Background(), msg))

	assert.Equal(t, "ORD9", producer.key)
	assert.Equal(t, msg.Payload, producer.payload)
	assert.Equal(t, "evt-9", headerValue(producer.headers, HeaderEventID))
	assert.Equal(t, models.EventTypePaymentStatus, headerValue(producer.headers, HeaderEventType))
}

func TestPublishOutboxMessagePropagatesError(t *testing.T) {
	publisher := NewEventPublisher(&recordingProducer{err: errors.New("broker down")})
	err := publisher.PublishOutboxMessage(context.Background(), &models.OutboxMessage{Key: "ORD1"})
	assert.Error(t, err)
}

func TestHandleMessageSwallowsMalformedPayload(t *testing.T) {
	handler := NewEventHandler()
	called := false
	handler.OnPaymentStatus(func(context.Context, *models.PaymentStatusEvent) error {
		called = true
		return nil
	})

	err := handler.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestHandleMessageFallsBackToHeaderEventID(t *testing.T) {
	handler := NewEventHandler()
	var got *models.PaymentStatusEvent
	handler.OnPaymentStatus(func(_ context.Context, e *models.PaymentStatusEvent) error {
		got = e
		return nil
	})

	err := handler.HandleMessage(context.Background(), kafka.Message{
		Value:   []byte(`{"orderId":"ORD1","status":"SUCCESS"}`),
		Headers: []kafka.Header{{Key: HeaderEventID, Value: []byte("evt-h")}},
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "evt-h", got.EventID)
	assert.Equal(t, "ORD1", got.OrderID)
}

func TestHandleMessagePropagatesHandlerError(t *testing.T) {
	handler := NewEventHandler()
	handler.OnPaymentStatus(func(context.Context, *models.PaymentStatusEvent) error {
		return errors.New("db down")
	})

	err := handler.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"orderId":"ORD1","status":"SUCCESS"}`)})
	assert.Error(t, err)
}
