package api

import (
	"context"
	"net/http"
	"strconv"

	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentService is what the payment endpoints call
type PaymentService interface {
	ProcessPayment(ctx context.Context, req *service.ProcessPaymentRequest) (*models.Payment, error)
	CreateGatewayOrder(ctx context.Context, req *service.GatewayOrderRequest) (*service.GatewayOrder, error)
	VerifyGatewayPayment(ctx context.Context, req *service.VerifyRequest) (*service.VerifyResult, error)
	RefundPayment(ctx context.Context, orderID string) (*models.Payment, error)
	GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error)
	GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error)
}

// PaymentHandler serves the payment service's HTTP API
type PaymentHandler struct {
	payments PaymentService
	logger   *zap.Logger
}

func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: util.GetLogger()}
}

func (h *PaymentHandler) SetupRoutes(router *gin.Engine) {
	payments := router.Group("/api/payments")
	{
		payments.POST("", h.processPayment)
		payments.POST("/razorpay/order", h.createGatewayOrder)
		payments.POST("/razorpay/verify", h.verify)
		payments.POST("/refund/:orderId", h.refund)
		payments.GET("/order/:orderId", h.getByOrder)
		payments.GET("/:id", h.getPayment)
	}
}

func (h *PaymentHandler) processPayment(c *gin.Context) {
	var req service.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error(), Code: CodeInvalidRequest})
		return
	}

	payment, err := h.payments.ProcessPayment(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// gatewayFailure is the body of a failed gateway order or verification call
type gatewayFailure struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

func (h *PaymentHandler) createGatewayOrder(c *gin.Context) {
	var req service.GatewayOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gatewayFailure{Status: CodeInvalidRequest, Message: err.Error()})
		return
	}

	mapping, err := h.payments.CreateGatewayOrder(c.Request.Context(), &req)
	if err != nil {
		status, code := classify(err)
		h.logFailure(c, status, err)
		c.JSON(status, gatewayFailure{Status: code, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, mapping)
}

// verify answers 200 only for a verified payment; every other outcome is a
// 400 unless the service itself is misconfigured or failing.
func (h *PaymentHandler) verify(c *gin.Context) {
	var req service.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gatewayFailure{Status: CodeInvalidRequest, Message: err.Error()})
		return
	}

	result, err := h.payments.VerifyGatewayPayment(c.Request.Context(), &req)
	if err != nil {
		status, code := classify(err)
		if status < http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		h.logFailure(c, status, err)
		c.JSON(status, gatewayFailure{Status: code, Message: err.Error()})
		return
	}

	if !result.Verified {
		c.JSON(http.StatusBadRequest, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) refund(c *gin.Context) {
	payment, err := h.payments.RefundPayment(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) getPayment(c *gin.Context) {
	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid payment ID", Code: CodeInvalidRequest})
		return
	}

	payment, err := h.payments.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) getByOrder(c *gin.Context) {
	payment, err := h.payments.GetPaymentByOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) writeError(c *gin.Context, err error) {
	status, code := classify(err)
	h.logFailure(c, status, err)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func (h *PaymentHandler) logFailure(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("Payment request failed",
			zap.String("path", c.FullPath()),
			zap.Int("http_status", status),
			zap.Error(err))
	}
}
