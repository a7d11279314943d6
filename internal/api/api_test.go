package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"checkout-service/internal/models"
	"checkout-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubOrders struct {
	orders map[string]*models.Order
	cancel func(id string) (*service.OrderStatusResponse, error)
}

func (s *stubOrders) CreateOrder(_ context.Context, req *service.CreateOrderRequest) (*service.OrderStatusResponse, error) {
	id := req.OrderID
	if id == "" {
		id = "ORD1"
	}
	return &service.OrderStatusResponse{OrderID: id, Status: models.OrderStatusPending}, nil
}

func (s *stubOrders) GetOrder(_ context.Context, id string) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	return o, nil
}

func (s *stubOrders) ListOrders(context.Context) ([]models.Order, error) {
	out := []models.Order{}
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (s *stubOrders) Confirm(_ context.Context, id string) (*service.OrderStatusResponse, error) {
	if _, ok := s.orders[id]; !ok {
		return nil, models.ErrNotFound
	}
	return &service.OrderStatusResponse{OrderID: id, Status: models.OrderStatusConfirmed}, nil
}

func (s *stubOrders) MarkPaymentFailed(_ context.Context, id string) (*service.OrderStatusResponse, error) {
	return &service.OrderStatusResponse{OrderID: id, Status: models.OrderStatusConfirmed},
		fmt.Errorf("%w: payment_failed on Confirmed", models.ErrIllegalTransition)
}

func (s *stubOrders) Cancel(_ context.Context, id string) (*service.OrderStatusResponse, error) {
	return s.cancel(id)
}

func (s *stubOrders) Pay(_ context.Context, id string, req *service.PayRequest) (*service.OrderStatusResponse, error) {
	return &service.OrderStatusResponse{OrderID: id, Status: models.OrderStatusConfirmed}, nil
}

func newOrderRouter(orders *stubOrders) *gin.Engine {
	router := NewRouter(nil)
	NewOrderHandler(orders, nil).SetupRoutes(router)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestCreateOrderEndpoint(t *testing.T) {
	router := newOrderRouter(&stubOrders{})

	rec, body := do(t, router, http.MethodPost, "/api/orders", map[string]any{"customerName": "Asha", "totalAmount": 100.0})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ORD1", body["orderId"])
	assert.Equal(t, "Pending", body["status"])

	rec, _ = do(t, router, http.MethodPost, "/api/orders", map[string]any{"customerName": "Asha", "totalAmount": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderEndpoint(t *testing.T) {
	router := newOrderRouter(&stubOrders{orders: map[string]*models.Order{
		"ORD1": {OrderID: "ORD1", CustomerName: "Asha", TotalAmount: 100, Status: models.OrderStatusPending},
	}})

	rec, body := do(t, router, http.MethodGet, "/api/orders/ORD1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Asha", body["customerName"])

	rec, body = do(t, router, http.MethodGet, "/api/orders/ORD9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, body["code"])

	rec, _ = do(t, router, http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfirmEndpoint(t *testing.T) {
	router := newOrderRouter(&stubOrders{orders: map[string]*models.Order{"ORD1": {OrderID: "ORD1"}}})

	rec, body := do(t, router, http.MethodPost, "/api/orders/ORD1/confirm", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Confirmed", body["status"])

	rec, _ = do(t, router, http.MethodPost, "/api/orders/ORD9/confirm", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIllegalTransitionIsConflict(t *testing.T) {
	router := newOrderRouter(&stubOrders{})

	rec, body := do(t, router, http.MethodPost, "/api/orders/ORD1/payment-failed", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Confirmed", body["status"])
	assert.Equal(t, "ORD1", body["orderId"])
}

func TestCancelPendingIsConflict(t *testing.T) {
	router := newOrderRouter(&stubOrders{cancel: func(id string) (*service.OrderStatusResponse, error) {
		return &service.OrderStatusResponse{OrderID: id, Status: models.OrderStatusPending},
			fmt.Errorf("%w: only Confirmed orders can be cancelled", models.ErrConflict)
	}})

	rec, body := do(t, router, http.MethodPost, "/api/orders/ORD1/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Pending", body["status"])
}

func TestCancelFailureIsStillOK(t *testing.T) {
	router := newOrderRouter(&stubOrders{cancel: func(id string) (*service.OrderStatusResponse, error) {
		return &service.OrderStatusResponse{OrderID: id, Status: models.OrderStatusCancellationFailed}, nil
	}})

	rec, body := do(t, router, http.MethodPost, "/api/orders/ORD1/cancel", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.OrderStatusCancellationFailed, body["status"])
}

func TestPayRequiresMethod(t *testing.T) {
	router := newOrderRouter(&stubOrders{})

	rec, _ := do(t, router, http.MethodPost, "/api/orders/ORD1/pay", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := do(t, router, http.MethodPost, "/api/orders/ORD1/pay", map[string]any{"paymentMethod": "card"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Confirmed", body["status"])
}

func TestReadiness(t *testing.T) {
	router := NewRouter(map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
	})
	rec, _ := do(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	router = NewRouter(map[string]ReadinessCheck{
		"database": func(context.Context) error { return errors.New("connection refused") },
	})
	rec, body := do(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "connection refused", body["failed"].(map[string]any)["database"])

	rec, _ = do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
