package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"paynotify/internal/domain"
)

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) IsPublished(ctx context.Context, idempotencyKey string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM publish_ledger WHERE idempotency_key = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, idempotencyKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check publish ledger for %s: %w", idempotencyKey, err)
	}
	return exists, nil
}

func (r *LedgerRepository) RecordPublished(ctx context.Context, record domain.PublishRecord) error {
	query := `
		INSERT INTO publish_ledger (idempotency_key, payment_id, customer_id, topic, published_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		record.IdempotencyKey,
		record.PaymentID,
		record.CustomerID,
		record.Topic,
		record.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record publish of %s: %w", record.IdempotencyKey, err)
	}
	return nil
}
