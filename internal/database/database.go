// Package database is the PostgreSQL store behind the pipeline: the match
// ledger, participant summaries, tournament context, telemetry detail
// tables, fights, and career aggregates. All cross-worker mutable state
// lives here as single-statement upserts with explicit conflict handling.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"skirmish/internal/config"
)

// Database composes the per-concern stores. Workers depend on the slices
// they use; tests mock the same interfaces.
type Database interface {
	Health(ctx context.Context) error
	Close()

	MatchStore
	SummaryStore
	PlayerStore
	TournamentStore
	TelemetryStore
	FightStore
	AggregateStore
}

// pgxPool is the slice of *pgxpool.Pool the stores use. Tests inject a
// mock pool behind it.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
	Close()
}

type postgresDB struct {
	pool pgxPool
}

// New connects a pooled pgx client and verifies the connection.
func New(ctx context.Context, cfg config.PostgresConfig) (Database, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("db", cfg.DB).
		Int("max_conns", cfg.MaxConns).
		Msg("Postgres connection established")

	return &postgresDB{pool: pool}, nil
}

// Health pings the pool.
func (db *postgresDB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.pool.Ping(ctx)
}

// Close releases the pool.
func (db *postgresDB) Close() {
	log.Info().Msg("Closing postgres pool")
	db.pool.Close()
}
