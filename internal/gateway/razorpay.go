package gateway

import (
	"context"
	"fmt"
	"time"

	"checkout-service/config"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RemoteOrder is the gateway's view of a hosted-checkout order.
type RemoteOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// RazorpayClient talks to the Razorpay orders API.
type RazorpayClient struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRazorpayClient creates a client authenticated with the configured key pair.
// Outbound calls are throttled to cfg.RequestsPerSecond.
func NewRazorpayClient(cfg config.GatewayConfig) *RazorpayClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")

	return &RazorpayClient{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  util.GetLogger(),
	}
}

// CreateOrder registers an order of amountMinor units with the gateway.
// Every failure is wrapped in models.ErrGateway.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*RemoteOrder, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", models.ErrGateway, err)
	}

	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues("create_order").Observe(time.Since(start).Seconds())
	}()

	var order RemoteOrder
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createOrderRequest{Amount: amountMinor, Currency: currency, Receipt: receipt}).
		SetResult(&order).
		SetError(&failure).
		Post("/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %v", models.ErrGateway, err)
	}
	if resp.IsError() {
		c.logger.Warn("Gateway rejected order",
			zap.String("order_id", receipt),
			zap.Int("http_status", resp.StatusCode()),
			zap.String("code", failure.Error.Code))
		return nil, fmt.Errorf("%w: create order: status %d: %s", models.ErrGateway, resp.StatusCode(), failure.Error.Description)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: create order: response has no order id", models.ErrGateway)
	}

	return &order, nil
}
