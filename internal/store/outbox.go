package store

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx"
)

func insertOutbox(ctx context.Context, tx *sqlx.Tx, msg *models.OutboxMessage) error {
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO payment_outbox (event_id, message_key, event_type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		msg.EventID, msg.Key, msg.EventType, msg.Payload,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}
	return nil
}

// ClaimOutbox locks up to limit publishable messages and leases them for
// lease, so concurrent dispatchers skip them until the lease runs out. Only
// the oldest unsent message of each key is claimable, which keeps per-order
// publish order across retries.
func (s *Store) ClaimOutbox(ctx context.Context, limit int, lease time.Duration) ([]models.OutboxMessage, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	msgs := []models.OutboxMessage{}
	err = tx.SelectContext(ctx, &msgs, `
		SELECT o.id, o.event_id, o.message_key, o.event_type, o.payload, o.attempts, o.created_at
		FROM payment_outbox o
		WHERE o.status <> 'sent' AND o.next_retry <= NOW()
		  AND NOT EXISTS (
			SELECT 1 FROM payment_outbox earlier
			WHERE earlier.message_key = o.message_key
			  AND earlier.id < o.id
			  AND earlier.status <> 'sent')
		ORDER BY o.id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	query, args, err := sqlx.In(`
		UPDATE payment_outbox
		SET status = 'processing', next_retry = ?, updated_at = NOW()
		WHERE id IN (?)`, time.Now().Add(lease), ids)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("lease outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkOutboxSent records a successful publish
func (s *Store) MarkOutboxSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payment_outbox SET status = 'sent', updated_at = NOW() WHERE id = $1", id)
	return err
}

// MarkOutboxRetry returns a message to the queue after a failed publish
func (s *Store) MarkOutboxRetry(ctx context.Context, id int64, nextRetry time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payment_outbox
		SET status = 'pending', attempts = attempts + 1, next_retry = $2, updated_at = NOW()
		WHERE id = $1`, id, nextRetry)
	return err
}
