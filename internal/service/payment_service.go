package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"checkout-service/config"
	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/signature"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errLockBusy = errors.New("payment lock held elsewhere")

// PaymentService owns the payment lifecycle
type PaymentService struct {
	store     PaymentStore
	locker    Locker
	gateway   GatewayOrders
	processor Processor
	cfg       config.GatewayConfig
	lockTTL   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService creates a new payment service. locker may be nil, in
// which case the store's uniqueness constraint alone prevents duplicates.
func NewPaymentService(
	store PaymentStore,
	locker Locker,
	gateway GatewayOrders,
	processor Processor,
	cfg config.GatewayConfig,
	lockTTL time.Duration,
) *PaymentService {
	return &PaymentService{
		store:     store,
		locker:    locker,
		gateway:   gateway,
		processor: processor,
		cfg:       cfg,
		lockTTL:   lockTTL,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// ProcessPaymentRequest represents a direct charge request
type ProcessPaymentRequest struct {
	OrderID       string  `json:"orderId" binding:"required"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	PaymentMethod string  `json:"paymentMethod"`
}

// GatewayOrderRequest asks for a hosted-checkout order
type GatewayOrderRequest struct {
	OrderID       string  `json:"orderId"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
}

// GatewayOrder maps a local order to the gateway order the checkout UI opens.
type GatewayOrder struct {
	OrderID         string `json:"orderId"`
	RazorpayOrderID string `json:"razorpayOrderId"`
	KeyID           string `json:"keyId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

// VerifyRequest carries the fields of a gateway checkout callback
type VerifyRequest struct {
	OrderID           string `json:"orderId"`
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpaySignature string `json:"razorpaySignature"`
}

// VerifyResult is the outcome of a callback verification
type VerifyResult struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// Verification outcomes reported to callers
const (
	VerifyStatusVerified = "VERIFIED"
	VerifyStatusFailed   = "FAILED"
)

// ProcessPayment charges an order once. A second call for the same order
// returns the stored payment without charging again.
func (s *PaymentService) ProcessPayment(ctx context.Context, req *ProcessPaymentRequest) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ProcessPayment", req.OrderID)
	defer span.End()

	if strings.TrimSpace(req.OrderID) == "" {
		return nil, fmt.Errorf("%w: orderId is required", models.ErrInvalidRequest)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidRequest)
	}

	if existing, err := s.findPayment(ctx, req.OrderID); err != nil || existing != nil {
		return existing, err
	}

	payment, err := s.withOrderLock(ctx, req.OrderID, func() (*models.Payment, error) {
		return s.charge(ctx, req)
	})
	if errors.Is(err, errLockBusy) {
		return s.existingOrConflict(ctx, req.OrderID)
	}
	return payment, err
}

func (s *PaymentService) charge(ctx context.Context, req *ProcessPaymentRequest) (*models.Payment, error) {
	payment := &models.Payment{
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		Currency:      s.cfg.Currency,
		PaymentMethod: req.PaymentMethod,
		Status:        models.PaymentStatusPending,
		Timestamp:     s.now(),
	}

	created, err := s.store.InsertPayment(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	if !created {
		return s.store.GetPaymentByOrderID(ctx, req.OrderID)
	}

	util.PaymentAttemptsTotal.Inc()
	s.logger.Info("Processing payment",
		zap.String("order_id", req.OrderID),
		zap.Float64("amount", req.Amount))

	eventStatus, reason := models.EventStatusFailed, "Payment declined"
	payment.Status = models.PaymentStatusFailed
	if s.processor.Charge(ctx, req.OrderID, req.Amount) {
		eventStatus, reason = models.EventStatusSuccess, "Payment processed"
		payment.Status = models.PaymentStatusSuccess
	}

	if err := s.settle(context.WithoutCancel(ctx), payment, eventStatus, reason); err != nil {
		return nil, err
	}
	return payment, nil
}

// CreateGatewayOrder registers the order with the gateway, or returns the
// existing mapping when one was already made.
func (s *PaymentService) CreateGatewayOrder(ctx context.Context, req *GatewayOrderRequest) (*GatewayOrder, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreateGatewayOrder", req.OrderID)
	defer span.End()

	if !s.cfg.Configured() {
		return nil, fmt.Errorf("%w: gateway key id and secret must be set", models.ErrConfig)
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, fmt.Errorf("%w: orderId is required", models.ErrInvalidRequest)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidRequest)
	}
	amountMinor := ToMinorUnits(req.Amount)
	if amountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount is below the smallest currency unit", models.ErrInvalidRequest)
	}

	existing, err := s.findPayment(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if mapping, ok, err := s.reusableMapping(existing); ok || err != nil {
		return mapping, err
	}

	var mapping *GatewayOrder
	_, err = s.withOrderLock(ctx, req.OrderID, func() (*models.Payment, error) {
		p, err := s.createRemoteOrder(ctx, req, amountMinor)
		if err != nil {
			return nil, err
		}
		mapping = s.mappingFor(p)
		return p, nil
	})
	if errors.Is(err, errLockBusy) {
		existing, err := s.findPayment(ctx, req.OrderID)
		if err != nil {
			return nil, err
		}
		if mapping, ok, _ := s.reusableMapping(existing); ok {
			return mapping, nil
		}
		return nil, fmt.Errorf("%w: gateway order for %s is being created", models.ErrConflict, req.OrderID)
	}
	if err != nil {
		return nil, err
	}
	return mapping, nil
}

// reusableMapping reports whether existing already answers a gateway order
// request. It fails for payments that have moved past checkout.
func (s *PaymentService) reusableMapping(existing *models.Payment) (*GatewayOrder, bool, error) {
	if existing == nil {
		return nil, false, nil
	}
	if existing.RazorpayOrderID != "" {
		return s.mappingFor(existing), true, nil
	}
	switch existing.Status {
	case models.PaymentStatusCreated, models.PaymentStatusPending, models.PaymentStatusFailed:
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("%w: payment for %s is %s", models.ErrConflict, existing.OrderID, existing.Status)
}

func (s *PaymentService) createRemoteOrder(ctx context.Context, req *GatewayOrderRequest, amountMinor int64) (*models.Payment, error) {
	existing, err := s.findPayment(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if _, ok, err := s.reusableMapping(existing); ok || err != nil {
		return existing, err
	}

	currency := s.cfg.Currency
	if existing != nil && existing.Currency != "" {
		currency = existing.Currency
	}

	remote, err := s.gateway.CreateOrder(ctx, amountMinor, currency, req.OrderID)
	if err != nil {
		s.logger.Error("Gateway order creation failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, err
	}

	payment := existing
	if payment == nil {
		payment = &models.Payment{
			OrderID:         req.OrderID,
			Amount:          req.Amount,
			Currency:        currency,
			PaymentMethod:   req.PaymentMethod,
			RazorpayOrderID: remote.ID,
			Status:          models.PaymentStatusCreated,
			Timestamp:       s.now(),
		}
		created, err := s.store.InsertPayment(ctx, payment)
		if err != nil {
			return nil, fmt.Errorf("failed to create payment: %w", err)
		}
		if created {
			s.logger.Info("Gateway order created",
				zap.String("order_id", req.OrderID),
				zap.String("razorpay_order_id", remote.ID))
			return payment, nil
		}
		if payment, err = s.store.GetPaymentByOrderID(ctx, req.OrderID); err != nil {
			return nil, err
		}
	}

	payment.Amount = req.Amount
	payment.Currency = currency
	if req.PaymentMethod != "" {
		payment.PaymentMethod = req.PaymentMethod
	}
	payment.RazorpayOrderID = remote.ID
	payment.Status = models.PaymentStatusCreated
	payment.Timestamp = s.now()
	if err := s.store.SavePayment(ctx, payment, nil); err != nil {
		return nil, err
	}

	s.logger.Info("Gateway order created",
		zap.String("order_id", req.OrderID),
		zap.String("razorpay_order_id", remote.ID))
	return payment, nil
}

func (s *PaymentService) mappingFor(p *models.Payment) *GatewayOrder {
	currency := p.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	return &GatewayOrder{
		OrderID:         p.OrderID,
		RazorpayOrderID: p.RazorpayOrderID,
		KeyID:           s.cfg.KeyID,
		Amount:          ToMinorUnits(p.Amount),
		Currency:        currency,
		Status:          p.Status,
	}
}

// VerifyGatewayPayment checks a checkout callback against the stored gateway
// order and the HMAC signature, settles the payment and enqueues its event.
func (s *PaymentService) VerifyGatewayPayment(ctx context.Context, req *VerifyRequest) (*VerifyResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.VerifyGatewayPayment", req.OrderID)
	defer span.End()

	if blank(req.OrderID, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		return nil, fmt.Errorf("%w: orderId, razorpayOrderId, razorpayPaymentId and razorpaySignature are required",
			models.ErrInvalidRequest)
	}
	if !s.cfg.Configured() {
		return nil, fmt.Errorf("%w: gateway key secret must be set", models.ErrConfig)
	}

	payment, err := s.store.GetPaymentByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case models.PaymentStatusRefundPending, models.PaymentStatusRefunded, models.PaymentStatusRefundFailed:
		return nil, fmt.Errorf("%w: payment for %s is %s", models.ErrConflict, req.OrderID, payment.Status)
	case models.PaymentStatusSuccess:
		return s.reverify(payment, req)
	}

	if payment.RazorpayOrderID != req.RazorpayOrderID {
		util.SignatureVerificationsTotal.WithLabelValues("order_mismatch").Inc()
		s.logger.Warn("Gateway order id mismatch",
			zap.String("order_id", req.OrderID),
			zap.String("expected", payment.RazorpayOrderID),
			zap.String("got", req.RazorpayOrderID))
		return s.failVerification(ctx, payment, "Razorpay order id mismatch")
	}

	payment.RazorpayPaymentID = req.RazorpayPaymentID
	payment.RazorpaySignature = req.RazorpaySignature
	if !signature.Verify(s.cfg.KeySecret, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		util.SignatureVerificationsTotal.WithLabelValues("invalid").Inc()
		s.logger.Warn("Invalid payment signature", zap.String("order_id", req.OrderID))
		return s.failVerification(ctx, payment, "Invalid payment signature")
	}

	util.SignatureVerificationsTotal.WithLabelValues("verified").Inc()
	payment.Status = models.PaymentStatusSuccess
	if err := s.settle(context.WithoutCancel(ctx), payment, models.EventStatusSuccess, "Payment signature verified"); err != nil {
		return nil, err
	}

	return &VerifyResult{Verified: true, Status: VerifyStatusVerified, Message: "Payment verified"}, nil
}

// reverify answers a callback for an already successful payment. The same
// valid callback is acknowledged again; anything else must not downgrade it.
func (s *PaymentService) reverify(payment *models.Payment, req *VerifyRequest) (*VerifyResult, error) {
	if payment.RazorpayOrderID == req.RazorpayOrderID &&
		payment.RazorpayPaymentID == req.RazorpayPaymentID &&
		signature.Verify(s.cfg.KeySecret, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		return &VerifyResult{Verified: true, Status: VerifyStatusVerified, Message: "Payment already verified"}, nil
	}
	return nil, fmt.Errorf("%w: payment for %s is already verified", models.ErrConflict, req.OrderID)
}

func (s *PaymentService) failVerification(ctx context.Context, payment *models.Payment, reason string) (*VerifyResult, error) {
	payment.Status = models.PaymentStatusFailed
	if err := s.settle(context.WithoutCancel(ctx), payment, models.EventStatusFailed, reason); err != nil {
		return nil, err
	}
	return &VerifyResult{Verified: false, Status: VerifyStatusFailed, Message: reason}, nil
}

// RefundPayment refunds a successful payment. Payments that are not Success
// are returned unchanged, including ones already REFUNDED.
func (s *PaymentService) RefundPayment(ctx context.Context, orderID string) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.RefundPayment", orderID)
	defer span.End()

	payment, err := s.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusSuccess {
		s.logger.Info("Refund skipped",
			zap.String("order_id", orderID),
			zap.String("status", payment.Status))
		return payment, nil
	}

	refunded, err := s.withOrderLock(ctx, orderID, func() (*models.Payment, error) {
		return s.refund(ctx, orderID)
	})
	if errors.Is(err, errLockBusy) {
		return s.store.GetPaymentByOrderID(ctx, orderID)
	}
	return refunded, err
}

func (s *PaymentService) refund(ctx context.Context, orderID string) (*models.Payment, error) {
	payment, err := s.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusSuccess {
		return payment, nil
	}

	payment.Status = models.PaymentStatusRefundPending
	payment.Timestamp = s.now()
	if err := s.store.SavePayment(ctx, payment, nil); err != nil {
		return nil, err
	}

	payment.Status = models.PaymentStatusRefundFailed
	if s.processor.Refund(ctx, orderID, payment.Amount) {
		payment.Status = models.PaymentStatusRefunded
	}
	payment.Timestamp = s.now()
	if err := s.store.SavePayment(context.WithoutCancel(ctx), payment, nil); err != nil {
		return nil, err
	}

	util.RefundsTotal.WithLabelValues(payment.Status).Inc()
	s.logger.Info("Refund finished",
		zap.String("order_id", orderID),
		zap.String("status", payment.Status))
	return payment, nil
}

// GetPayment retrieves a payment by id
func (s *PaymentService) GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	return s.store.GetPaymentByID(ctx, paymentID)
}

// GetPaymentByOrder retrieves the payment for an order
func (s *PaymentService) GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	return s.store.GetPaymentByOrderID(ctx, orderID)
}

// settle persists payment with its new status and enqueues the matching
// status event in the same transaction.
func (s *PaymentService) settle(ctx context.Context, payment *models.Payment, eventStatus, reason string) error {
	payment.Timestamp = s.now()
	event := models.NewPaymentStatusEvent(uuid.NewString(), payment, eventStatus, reason, payment.Timestamp)
	payload, err := broker.EncodePaymentStatusEvent(event)
	if err != nil {
		return err
	}

	msg := &models.OutboxMessage{
		EventID:   event.EventID,
		Key:       payment.OrderID,
		EventType: models.EventTypePaymentStatus,
		Payload:   payload,
	}
	if err := s.store.SavePayment(ctx, payment, msg); err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}

	util.PaymentOutcomesTotal.WithLabelValues(payment.Status).Inc()
	s.logger.Info("Payment settled",
		zap.String("order_id", payment.OrderID),
		zap.String("status", payment.Status),
		zap.String("event_id", event.EventID))
	return nil
}

// withOrderLock runs fn while holding the per-order lock. It returns
// errLockBusy when another holder has it. A lock backend failure falls back
// to running fn unlocked.
func (s *PaymentService) withOrderLock(ctx context.Context, orderID string, fn func() (*models.Payment, error)) (*models.Payment, error) {
	if s.locker == nil {
		return fn()
	}

	name := "payment:" + orderID
	token, ok, err := s.locker.AcquireLock(ctx, name, s.lockTTL)
	if err != nil {
		s.logger.Warn("Lock unavailable, relying on store constraint",
			zap.String("order_id", orderID), zap.Error(err))
		return fn()
	}
	if !ok {
		return nil, errLockBusy
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), name, token); err != nil {
			s.logger.Warn("Failed to release lock", zap.String("order_id", orderID), zap.Error(err))
		}
	}()

	return fn()
}

func (s *PaymentService) findPayment(ctx context.Context, orderID string) (*models.Payment, error) {
	p, err := s.store.GetPaymentByOrderID(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (s *PaymentService) existingOrConflict(ctx context.Context, orderID string) (*models.Payment, error) {
	existing, err := s.findPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: payment for %s is being created", models.ErrConflict, orderID)
	}
	return existing, nil
}

// ToMinorUnits converts an amount to integer minor currency units, rounding
// half away from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
