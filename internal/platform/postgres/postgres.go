// Package postgres opens the pgx connection pool used when the store driver
// is "postgres".
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool the repositories use. pgxmock's pool
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	code        TEXT PRIMARY KEY,
	last_update DATE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entities_last_update ON entities(last_update);

CREATE TABLE IF NOT EXISTS records (
	id                    BIGSERIAL PRIMARY KEY,
	code                  TEXT NOT NULL REFERENCES entities(code) ON DELETE CASCADE,
	trade_date            DATE NOT NULL,
	last_trade_price      NUMERIC,
	max_price             NUMERIC,
	min_price             NUMERIC,
	avg_price             NUMERIC,
	percent_change        NUMERIC,
	volume                NUMERIC,
	turnover_best_denars  NUMERIC,
	total_turnover_denars NUMERIC,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (code, trade_date)
);

CREATE INDEX IF NOT EXISTS idx_records_code ON records(code);
`

// Open creates a pool sized for maxConns concurrent writers and applies the
// schema.
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func Migrate(ctx context.Context, pool Pool) error {
	_, err := pool.Exec(ctx, schema)
	return eris.Wrap(err, "postgres: migrate")
}
