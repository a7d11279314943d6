package service

import (
	"context"
	"testing"

	"checkout-service/internal/models"
	"checkout-service/internal/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscriber(t *testing.T) (*StatusSubscriber, *OrderService, *memOrderStore) {
	t.Helper()
	orders, store, _ := newTestOrderService(t, &fakePaymentClient{})
	return NewStatusSubscriber(store, orders), orders, store
}

func pendingOrder(t *testing.T, orders *OrderService) string {
	t.Helper()
	resp, err := orders.CreateOrder(context.Background(), &CreateOrderRequest{CustomerName: "Asha", TotalAmount: 100})
	require.NoError(t, err)
	return resp.OrderID
}

func TestSubscriberConfirmsOnSuccess(t *testing.T) {
	sub, orders, store := newTestSubscriber(t)
	orderID := pendingOrder(t, orders)

	err := sub.HandlePaymentStatus(context.Background(), &models.PaymentStatusEvent{EventID: "e1", OrderID: orderID, Status: " success "})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, store.status(orderID))
	assert.True(t, store.processed["e1"])
}

func TestSubscriberStatusMapping(t *testing.T) {
	tests := map[string]string{
		"SUCCESS":   models.OrderStatusConfirmed,
		"verified":  models.OrderStatusConfirmed,
		"FAILED":    models.OrderStatusPaymentFailed,
		"Failure":   models.OrderStatusPaymentFailed,
		"CANCELLED": models.OrderStatusPaymentFailed,
		"REFUNDED":  models.OrderStatusPending,
		"":          models.OrderStatusPending,
	}

	for status, want := range tests {
		sub, orders, store := newTestSubscriber(t)
		orderID := pendingOrder(t, orders)

		err := sub.HandlePaymentStatus(context.Background(), &models.PaymentStatusEvent{OrderID: orderID, Status: status})
		require.NoError(t, err, status)
		assert.Equal(t, want, store.status(orderID), status)
	}
}

func TestSubscriberDropsUnknownOrder(t *testing.T) {
	sub, _, store := newTestSubscriber(t)

	err := sub.HandlePaymentStatus(context.Background(), &models.PaymentStatusEvent{EventID: "e1", OrderID: "ORD-MISSING", Status: "SUCCESS"})
	require.NoError(t, err)
	assert.Empty(t, store.orders)
}

func TestSubscriberDropsMissingOrderID(t *testing.T) {
	sub, _, store := newTestSubscriber(t)

	err := sub.HandlePaymentStatus(context.Background(), &models.PaymentStatusEvent{EventID: "e1", Status: "SUCCESS"})
	require.NoError(t, err)
	assert.False(t, store.processed["e1"])
}

func TestSubscriberSkipsDuplicateEvent(t *testing.T) {
	sub, orders, store := newTestSubscriber(t)
	orderID := pendingOrder(t, orders)
	ctx := context.Background()

	require.NoError(t, sub.HandlePaymentStatus(ctx, &models.PaymentStatusEvent{EventID: "e1", OrderID: orderID, Status: "SUCCESS"}))
	_, err := orders.Cancel(ctx, orderID)
	require.NoError(t, err)
	cancelled := store.status(orderID)

	require.NoError(t, sub.HandlePaymentStatus(ctx, &models.PaymentStatusEvent{EventID: "e1", OrderID: orderID, Status: "SUCCESS"}))
	assert.Equal(t, cancelled, store.status(orderID))
}

func TestSubscriberRejectsRegression(t *testing.T) {
	sub, orders, store := newTestSubscriber(t)
	orderID := pendingOrder(t, orders)
	ctx := context.Background()

	require.NoError(t, sub.HandlePaymentStatus(ctx, &models.PaymentStatusEvent{EventID: "e1", OrderID: orderID, Status: "SUCCESS"}))
	require.NoError(t, sub.HandlePaymentStatus(ctx, &models.PaymentStatusEvent{EventID: "e2", OrderID: orderID, Status: "FAILED"}))

	assert.Equal(t, models.OrderStatusConfirmed, store.status(orderID))
	assert.True(t, store.processed["e2"])
}

// deliver feeds every event the payment side enqueued to the subscriber, in order.
func deliver(t *testing.T, sub *StatusSubscriber, payments *memPaymentStore) {
	t.Helper()
	for _, event := range payments.events() {
		require.NoError(t, sub.HandlePaymentStatus(context.Background(), event))
	}
}

func TestFailedVerifyThenGenuineVerifyConfirmsOrder(t *testing.T) {
	sub, orders, store := newTestSubscriber(t)
	orderID := pendingOrder(t, orders)
	f := newPaymentFixture(configuredGateway())
	ctx := context.Background()
	mapping := gatewayPayment(t, f, orderID)

	forged, err := f.svc.VerifyGatewayPayment(ctx, &VerifyRequest{
		OrderID: orderID, RazorpayOrderID: "order_forged", RazorpayPaymentID: "pay_1", RazorpaySignature: "deadbeef",
	})
	require.NoError(t, err)
	assert.False(t, forged.Verified)

	genuine, err := f.svc.VerifyGatewayPayment(ctx, &VerifyRequest{
		OrderID:           orderID,
		RazorpayOrderID:   mapping.RazorpayOrderID,
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: signature.Compute(testSecret, mapping.RazorpayOrderID, "pay_1"),
	})
	require.NoError(t, err)
	assert.True(t, genuine.Verified)

	deliver(t, sub, f.store)

	payment, err := f.store.GetPaymentByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, models.OrderStatusConfirmed, store.status(orderID))
}

func TestDeclinedChargeThenCheckoutConfirmsOrder(t *testing.T) {
	sub, orders, store := newTestSubscriber(t)
	orderID := pendingOrder(t, orders)
	f := newPaymentFixture(configuredGateway())
	f.processor.charge = false
	ctx := context.Background()

	_, err := f.svc.ProcessPayment(ctx, &ProcessPaymentRequest{OrderID: orderID, Amount: 100, PaymentMethod: "card"})
	require.NoError(t, err)
	deliver(t, sub, f.store)
	assert.Equal(t, models.OrderStatusPaymentFailed, store.status(orderID))

	mapping := gatewayPayment(t, f, orderID)
	_, err = f.svc.VerifyGatewayPayment(ctx, &VerifyRequest{
		OrderID:           orderID,
		RazorpayOrderID:   mapping.RazorpayOrderID,
		RazorpayPaymentID: "pay_2",
		RazorpaySignature: signature.Compute(testSecret, mapping.RazorpayOrderID, "pay_2"),
	})
	require.NoError(t, err)
	deliver(t, sub, f.store)

	assert.Equal(t, models.OrderStatusConfirmed, store.status(orderID))

	resp, err := orders.Cancel(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancellationFailed, resp.Status)
}
