package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/spendguard/internal/core/worker"
)

// WebhookQueue is the webhook_jobs outbox.
type WebhookQueue struct {
	db *pgxpool.Pool
}

func NewWebhookQueue(db *pgxpool.Pool) *WebhookQueue {
	return &WebhookQueue{db: db}
}

func (q *WebhookQueue) EnqueueWebhook(ctx context.Context, url string, payload []byte) error {
	_, err := q.db.Exec(ctx, `INSERT INTO webhook_jobs (url, payload) VALUES ($1, $2::jsonb)`, url, string(payload))
	return err
}

// ClaimNext moves the oldest due job to PROCESSING and returns it. Concurrent
// workers skip rows another worker holds.
func (q *WebhookQueue) ClaimNext(ctx context.Context) (*worker.Job, error) {
	var job worker.Job
	err := q.db.QueryRow(ctx, `
		UPDATE webhook_jobs SET status = 'PROCESSING'
		WHERE id = (
			SELECT id FROM webhook_jobs
			WHERE status = 'PENDING' AND next_run_at <= NOW()
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id::text, url, payload::text, attempts`).Scan(&job.ID, &job.URL, &job.Payload, &job.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (q *WebhookQueue) Complete(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, `UPDATE webhook_jobs SET status = 'COMPLETED' WHERE id = $1::uuid`, id)
	return err
}

func (q *WebhookQueue) Retry(ctx context.Context, id string, nextRun time.Time) error {
	_, err := q.db.Exec(ctx,
		`UPDATE webhook_jobs SET status = 'PENDING', attempts = attempts + 1, next_run_at = $2 WHERE id = $1::uuid`,
		id, nextRun)
	return err
}

func (q *WebhookQueue) Fail(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, `UPDATE webhook_jobs SET status = 'FAILED' WHERE id = $1::uuid`, id)
	return err
}
