package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepository stores the first response given for an
// Idempotency-Key. A row with NULL response_status is a request in flight.
type IdempotencyRepository struct {
	db *pgxpool.Pool
}

func NewIdempotencyRepository(db *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Reserve inserts a pending row. The primary key makes exactly one concurrent
// caller win; the others read back whatever the row holds.
func (r *IdempotencyRepository) Reserve(ctx context.Context, key string) (bool, int, []byte, error) {
	tag, err := r.db.Exec(ctx,
		"INSERT INTO idempotency_keys (key_id) VALUES ($1) ON CONFLICT DO NOTHING", key)
	if err != nil {
		return false, 0, nil, err
	}
	if tag.RowsAffected() == 1 {
		return true, 0, nil, nil
	}

	var status *int
	var body []byte
	err = r.db.QueryRow(ctx,
		"SELECT response_status, response_body FROM idempotency_keys WHERE key_id = $1",
		key).Scan(&status, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		// Released between our insert and select; report it as in flight.
		return false, 0, nil, nil
	}
	if err != nil {
		return false, 0, nil, err
	}
	if status == nil {
		return false, 0, nil, nil
	}
	return false, *status, body, nil
}

func (r *IdempotencyRepository) Complete(ctx context.Context, key string, status int, body []byte) error {
	_, err := r.db.Exec(ctx,
		"UPDATE idempotency_keys SET response_status = $2, response_body = $3 WHERE key_id = $1",
		key, status, body)
	return err
}

func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx,
		"DELETE FROM idempotency_keys WHERE key_id = $1 AND response_status IS NULL", key)
	return err
}
