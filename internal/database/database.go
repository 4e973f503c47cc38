package database

import (
	"context"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates a pgx pool whose connections can scan NUMERIC columns
// directly into decimal.Decimal.
func NewPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	role TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	reward_points INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
	id UUID PRIMARY KEY,
	requester_id UUID NOT NULL REFERENCES users(id),
	worker_id UUID REFERENCES users(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	location TEXT,
	duration TEXT,
	price NUMERIC(10,2),
	status TEXT NOT NULL DEFAULT 'POSTED',
	rating INTEGER,
	rating_comment TEXT,
	rated_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS wallets (
	user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	balance NUMERIC(10,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	escrow_balance NUMERIC(10,2) NOT NULL DEFAULT 0 CHECK (escrow_balance >= 0)
);

CREATE TABLE IF NOT EXISTS notifications (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	is_read BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id UUID PRIMARY KEY,
	task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	is_read BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tasks_requester ON tasks (requester_id);
CREATE INDEX IF NOT EXISTS idx_tasks_worker ON tasks (worker_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status) WHERE status = 'POSTED';
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, is_read);
CREATE INDEX IF NOT EXISTS idx_messages_task ON messages (task_id);
`

// Migrate applies the application schema. Statements are idempotent so this
// runs on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
