package paymentclient

import (
	"context"
	"fmt"
	"time"

	"checkout-service/config"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// StatusError is returned when the payment service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("payment service returned status %d", e.Code)
}

// PaymentResult is the subset of the payment record the order service reads.
type PaymentResult struct {
	PaymentID int64     `json:"paymentId"`
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type payRequest struct {
	OrderID       string  `json:"orderId"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
}

// Client calls the payment service over HTTP with a bounded timeout.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func New(cfg config.PaymentsClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		logger: util.GetLogger(),
	}
}

// Refund asks the payment service to refund the payment for orderID.
// A nil result with nil error means the response carried no body.
func (c *Client) Refund(ctx context.Context, orderID string) (*PaymentResult, error) {
	start := time.Now()
	defer func() {
		util.RefundCallLatency.Observe(time.Since(start).Seconds())
	}()

	return c.do(ctx, c.http.R().SetPathParam("orderId", orderID), "/api/payments/refund/{orderId}")
}

// Pay asks the payment service to charge amount for orderID.
func (c *Client) Pay(ctx context.Context, orderID string, amount float64, method string) (*PaymentResult, error) {
	req := c.http.R().SetBody(payRequest{OrderID: orderID, Amount: amount, PaymentMethod: method})
	return c.do(ctx, req, "/api/payments")
}

func (c *Client) do(ctx context.Context, req *resty.Request, path string) (*PaymentResult, error) {
	var result PaymentResult
	resp, err := req.SetContext(ctx).SetResult(&result).Post(path)
	if err != nil {
		c.logger.Warn("Payment service call failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrRemoteCall, err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	if len(resp.Body()) == 0 {
		return nil, nil
	}
	return &result, nil
}
