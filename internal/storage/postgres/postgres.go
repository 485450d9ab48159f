package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeovahfialho/t212-digrin/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id              UUID PRIMARY KEY,
	month           TEXT NOT NULL,
	report_id       BIGINT NOT NULL DEFAULT 0,
	raw_key         TEXT NOT NULL DEFAULT '',
	transformed_key TEXT NOT NULL DEFAULT '',
	rows_in         INTEGER NOT NULL DEFAULT 0,
	rows_out        INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_month ON pipeline_runs (month, started_at DESC);

CREATE TABLE IF NOT EXISTS report_rows (
	run_id   UUID NOT NULL REFERENCES pipeline_runs (id) ON DELETE CASCADE,
	month    TEXT NOT NULL,
	position INTEGER NOT NULL,
	action   TEXT NOT NULL,
	ticker   TEXT NOT NULL,
	payload  JSONB NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

type DB struct {
	pool *pgxpool.Pool
}

func NewDB(cfg *config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("erro ao parsear config: %w", err)
	}

	poolConfig.MaxConns = cfg.DatabaseMaxConns
	poolConfig.MinConns = cfg.DatabaseMinConns
	poolConfig.MaxConnLifetime = cfg.DatabaseMaxConnLife
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("erro ao conectar: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("erro ao criar schema: %w", err)
	}
	return nil
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) HealthCheck(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}
