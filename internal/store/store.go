// Package store is the persistent record of calls, their decision snapshots
// and their execution ledgers, backed by Postgres.
//
// Tables: calls (one row per conversation id, unique), ledger_entries
// (append-only, one row per executed action). The processed_at column on
// calls is set in the same transaction as the ledger rows and is the sole
// marker of completed processing.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}
