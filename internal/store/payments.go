package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-service/internal/models"
)

const paymentColumns = `payment_id, order_id, amount, currency, payment_method,
	razorpay_order_id, razorpay_payment_id, razorpay_signature, status, timestamp`

// InsertPayment inserts a payment unless one already exists for the order.
// created is false when the order already had a payment; p is left untouched then.
func (s *Store) InsertPayment(ctx context.Context, p *models.Payment) (created bool, err error) {
	query := `
		INSERT INTO payments (order_id, amount, currency, payment_method, razorpay_order_id, status, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING payment_id`

	err = s.db.QueryRowxContext(ctx, query,
		p.OrderID, p.Amount, p.Currency, p.PaymentMethod, p.RazorpayOrderID, p.Status, p.Timestamp,
	).Scan(&p.PaymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if isUniqueViolation(err) {
		return false, fmt.Errorf("%w: gateway order %s already mapped", models.ErrConflict, p.RazorpayOrderID)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetPaymentByID retrieves a payment by its numeric id
func (s *Store) GetPaymentByID(ctx context.Context, paymentID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT "+paymentColumns+" FROM payments WHERE payment_id = $1", paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment %d", models.ErrNotFound, paymentID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByOrderID retrieves the payment for an order
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT "+paymentColumns+" FROM payments WHERE order_id = $1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment for order %s", models.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// SavePayment persists the mutable payment fields and, when msg is non-nil,
// enqueues msg in the outbox within the same transaction.
func (s *Store) SavePayment(ctx context.Context, p *models.Payment, msg *models.OutboxMessage) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET amount = $1, currency = $2, payment_method = $3,
		    razorpay_order_id = $4, razorpay_payment_id = $5, razorpay_signature = $6,
		    status = $7, timestamp = $8
		WHERE payment_id = $9`,
		p.Amount, p.Currency, p.PaymentMethod,
		p.RazorpayOrderID, p.RazorpayPaymentID, p.RazorpaySignature,
		p.Status, p.Timestamp, p.PaymentID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: gateway order %s already mapped", models.ErrConflict, p.RazorpayOrderID)
	}
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: payment %d", models.ErrNotFound, p.PaymentID)
	}

	if msg != nil {
		if err := insertOutbox(ctx, tx, msg); err != nil {
			return err
		}
	}

	return tx.Commit()
}
