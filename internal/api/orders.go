package api

import (
	"context"
	"net/http"

	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OrderService is what the order endpoints call
type OrderService interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*service.OrderStatusResponse, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	Confirm(ctx context.Context, orderID string) (*service.OrderStatusResponse, error)
	MarkPaymentFailed(ctx context.Context, orderID string) (*service.OrderStatusResponse, error)
	Cancel(ctx context.Context, orderID string) (*service.OrderStatusResponse, error)
	Pay(ctx context.Context, orderID string, req *service.PayRequest) (*service.OrderStatusResponse, error)
}

// OrderHandler serves the order service's HTTP API
type OrderHandler struct {
	orders OrderService
	ws     gin.HandlerFunc
}

// NewOrderHandler creates the order handler. ws serves the status stream and may be nil.
func NewOrderHandler(orders OrderService, ws gin.HandlerFunc) *OrderHandler {
	return &OrderHandler{orders: orders, ws: ws}
}

func (h *OrderHandler) SetupRoutes(router *gin.Engine) {
	orders := router.Group("/api/orders")
	{
		orders.POST("", h.createOrder)
		orders.GET("", h.listOrders)
		orders.GET("/:id", h.getOrder)
		orders.POST("/:id/confirm", h.confirm)
		orders.POST("/:id/payment-failed", h.paymentFailed)
		orders.POST("/:id/cancel", h.cancel)
		orders.POST("/:id/pay", h.pay)
		if h.ws != nil {
			orders.GET("/:id/ws", h.ws)
		}
	}
}

func (h *OrderHandler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error(), Code: CodeInvalidRequest})
		return
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, nil, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *OrderHandler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context())
	if err != nil {
		h.writeError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) confirm(c *gin.Context) {
	resp, err := h.orders.Confirm(c.Request.Context(), c.Param("id"))
	h.respond(c, resp, err)
}

func (h *OrderHandler) paymentFailed(c *gin.Context) {
	resp, err := h.orders.MarkPaymentFailed(c.Request.Context(), c.Param("id"))
	h.respond(c, resp, err)
}

func (h *OrderHandler) cancel(c *gin.Context) {
	resp, err := h.orders.Cancel(c.Request.Context(), c.Param("id"))
	h.respond(c, resp, err)
}

func (h *OrderHandler) pay(c *gin.Context) {
	var req service.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error(), Code: CodeInvalidRequest})
		return
	}
	resp, err := h.orders.Pay(c.Request.Context(), c.Param("id"), &req)
	h.respond(c, resp, err)
}

func (h *OrderHandler) respond(c *gin.Context, resp *service.OrderStatusResponse, err error) {
	if err != nil {
		h.writeError(c, resp, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeError answers conflicts with the order's current status so callers
// can see why the change was refused.
func (h *OrderHandler) writeError(c *gin.Context, current *service.OrderStatusResponse, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		util.GetLogger().Error("Order request failed",
			zap.String("path", c.FullPath()),
			zap.String("order_id", c.Param("id")),
			zap.Error(err))
	}
	if status == http.StatusConflict && current != nil {
		c.JSON(status, gin.H{
			"orderId": current.OrderID,
			"status":  current.Status,
			"error":   err.Error(),
			"code":    code,
		})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
