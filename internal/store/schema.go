package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the stores use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS routing_configs (
		tenant_id  TEXT PRIMARY KEY,
		config     JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS routing_decisions (
		decision_id       TEXT PRIMARY KEY,
		order_id          TEXT NOT NULL,
		tenant_id         TEXT NOT NULL,
		criteria          TEXT NOT NULL,
		selected_exchange TEXT NOT NULL,
		decision          JSONB NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS routing_decisions_tenant_created
		ON routing_decisions (tenant_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS routing_outcomes (
		id              BIGSERIAL PRIMARY KEY,
		decision_id     TEXT NOT NULL REFERENCES routing_decisions (decision_id),
		exchange_id     TEXT NOT NULL,
		filled_quantity DOUBLE PRECISION NOT NULL,
		average_price   DOUBLE PRECISION NOT NULL,
		success         BOOLEAN NOT NULL,
		error           TEXT NOT NULL DEFAULT '',
		recorded_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS routing_outcomes_decision
		ON routing_outcomes (decision_id, id)`,
}

// EnsureSchema creates the store's tables if they do not exist.
func EnsureSchema(ctx context.Context, db DB) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
