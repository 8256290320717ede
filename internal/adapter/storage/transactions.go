package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// InsertTransaction records a classified transaction. Repeated
// transaction_ids are stored as separate rows.
func (r *TransactionRepository) InsertTransaction(ctx context.Context, txn domain.Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transactions (transaction_id, user_id, timestamp, category, type, amount, is_reckless)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.TransactionID, txn.UserID, txn.Timestamp, txn.Category, txn.Type, txn.Amount, txn.IsReckless,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// SumSpend totals a user's spend with timestamp >= since.
func (r *TransactionRepository) SumSpend(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1 AND timestamp >= $2`,
		userID, since).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum spend: %w", err)
	}
	return total, nil
}

// ListTransactions returns a user's transactions, newest first.
func (r *TransactionRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT transaction_id, user_id, timestamp, category, type, amount, is_reckless
		FROM transactions
		WHERE user_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.TransactionID, &t.UserID, &t.Timestamp, &t.Category, &t.Type, &t.Amount, &t.IsReckless); err != nil {
			return nil, err
		}
		history = append(history, t)
	}
	return history, rows.Err()
}
