package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReceiptRepository owns read_receipts rows.
type ReceiptRepository struct {
	db *pgxpool.Pool
}

func NewReceiptRepository(db *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// Upsert records that the user has seen the message. Re-reading only
// refreshes read_at; no duplicate rows.
func (r *ReceiptRepository) Upsert(ctx context.Context, messageID, userID int64) error {
	query := `
		INSERT INTO read_receipts (message_id, user_id, read_at)
		VALUES ($1, $2, now())
		ON CONFLICT (message_id, user_id) DO UPDATE SET read_at = EXCLUDED.read_at
	`
	_, err := r.db.Exec(ctx, query, messageID, userID)
	return err
}
