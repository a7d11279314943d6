package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaultsPerService(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")

	orders := Load(ServiceOrders)
	payments := Load(ServicePayments)

	assert.Equal(t, "8081", orders.Server.Port)
	assert.Equal(t, "8082", payments.Server.Port)
	assert.Equal(t, "order-service-group", orders.Kafka.ConsumerGroup)
	assert.Equal(t, "payment-status", payments.Kafka.TopicPaymentStatus)
	assert.Equal(t, "INR", payments.Gateway.Currency)
	assert.Equal(t, 5*time.Second, orders.Payments.Timeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PAYMENTS_TIMEOUT", "750ms")
	t.Setenv("RAZORPAY_RPS", "2.5")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")

	cfg := Load(ServiceOrders)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 750*time.Millisecond, cfg.Payments.Timeout)
	assert.Equal(t, 2.5, cfg.Gateway.RequestsPerSecond)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
}

func TestGatewayConfigured(t *testing.T) {
	assert.False(t, GatewayConfig{}.Configured())
	assert.False(t, GatewayConfig{KeyID: "rzp_test", KeySecret: "  "}.Configured())
	assert.True(t, GatewayConfig{KeyID: "rzp_test", KeySecret: "secret"}.Configured())
}
