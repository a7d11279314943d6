package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status changes by resulting status",
	}, []string{"status"})

	OrderTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_rejected_total",
		Help: "Order status changes refused by the transition table",
	}, []string{"event"})

	RefundCallLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_refund_call_latency_seconds",
		Help:    "Latency of the refund call from orders to payments",
		Buckets: prometheus.DefBuckets,
	})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts",
	})

	PaymentOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_outcomes_total",
		Help: "Payments settled by resulting status",
	}, []string{"status"})

	SignatureVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_signature_verifications_total",
		Help: "Gateway signature checks by result",
	}, []string{"result"})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_latency_seconds",
		Help:    "Latency of payment gateway API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_refunds_total",
		Help: "Refund attempts by resulting status",
	}, []string{"status"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_events_published_total",
		Help: "Payment status events published to Kafka",
	}, []string{"result"})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_events_consumed_total",
		Help: "Payment status events consumed by the order service",
	}, []string{"result"})

	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payment_outbox_claimed",
		Help: "Outbox rows claimed in the last dispatch round",
	})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "order_websocket_clients",
		Help: "Connected order status websocket clients",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
