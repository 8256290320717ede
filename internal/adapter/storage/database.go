package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS users (
	user_id          TEXT PRIMARY KEY,
	monthly_income   NUMERIC NOT NULL DEFAULT 0,
	weekly_cap       NUMERIC,
	max_single_spend NUMERIC,
	category_caps    JSONB NOT NULL DEFAULT '{}'::jsonb,
	balance          NUMERIC NOT NULL DEFAULT 0,
	emergency_fund   NUMERIC NOT NULL DEFAULT 0 CHECK (emergency_fund >= 0),
	pms_investment   NUMERIC NOT NULL DEFAULT 0 CHECK (pms_investment >= 0)
);

CREATE TABLE IF NOT EXISTS transactions (
	id             BIGSERIAL PRIMARY KEY,
	transaction_id TEXT NOT NULL,
	user_id        TEXT NOT NULL REFERENCES users(user_id),
	timestamp      TIMESTAMPTZ NOT NULL,
	category       TEXT NOT NULL,
	type           TEXT NOT NULL DEFAULT '',
	amount         NUMERIC NOT NULL CHECK (amount > 0),
	is_reckless    BOOLEAN NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_ts ON transactions (user_id, timestamp);

CREATE TABLE IF NOT EXISTS webhook_jobs (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	url         TEXT NOT NULL,
	payload     JSONB NOT NULL,
	status      TEXT NOT NULL DEFAULT 'PENDING',
	attempts    INT NOT NULL DEFAULT 0,
	next_run_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_webhook_jobs_due ON webhook_jobs (status, next_run_at);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	key_id          TEXT PRIMARY KEY,
	response_status INT,
	response_body   BYTEA,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE idempotency_keys ALTER COLUMN response_status DROP NOT NULL;
ALTER TABLE idempotency_keys ALTER COLUMN response_body DROP NOT NULL;
`

// ConnectDB initializes the connection pool
func ConnectDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	// Serverless Postgres scales to zero; keep few idle connections around.
	config.MaxConns = 10
	config.MinConns = 0
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	slog.Info("✅ Successfully connected to Postgres!")
	return pool, nil
}

// Migrate creates the tables the service needs. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
