package postgres

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/bizshop/storefront/internal/domain/payment"
)

// ProcessedEventStore keeps one row per applied gateway payment id. The
// primary key makes replays visible as a zero-row insert.
type ProcessedEventStore struct {
	db *sql.DB
}

func NewProcessedEventStore(db *sql.DB) *ProcessedEventStore {
	return &ProcessedEventStore{db: db}
}

func (s *ProcessedEventStore) Insert(ctx context.Context, paymentID string) error {
	query := `
		INSERT INTO processed_events (payment_id, processed_at)
		VALUES ($1, NOW())
		ON CONFLICT (payment_id) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query, paymentID)
	if err != nil {
		return fmt.Errorf("insert processed event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert processed event: %w", err)
	}
	if affected == 0 {
		return domain.ErrEventProcessed
	}
	return nil
}

func (s *ProcessedEventStore) Delete(ctx context.Context, paymentID string) error {
	query := `DELETE FROM processed_events WHERE payment_id = $1`

	if _, err := s.db.ExecContext(ctx, query, paymentID); err != nil {
		return fmt.Errorf("delete processed event: %w", err)
	}
	return nil
}
