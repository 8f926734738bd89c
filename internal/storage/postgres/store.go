// Package postgres provides a Postgres sink for pair events.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapcore/internal/model"
)

// Store persists pair events and pair metadata to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pairs (
			pair_address text PRIMARY KEY,
			token0 text NOT NULL,
			token1 text NOT NULL,
			created_ts bigint NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS pair_events (
			seq bigint PRIMARY KEY,
			event_ts bigint NOT NULL,
			pair_address text NOT NULL,
			event_name text NOT NULL,
			payload jsonb NOT NULL,
			ingested_at timestamptz NOT NULL DEFAULT now()
		);
	`)
	return err
}

// UpsertPairs inserts or updates pair metadata.
func (s *Store) UpsertPairs(ctx context.Context, pairs []model.PairInfo) error {
	if len(pairs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pair := range pairs {
		batch.Queue(`
			INSERT INTO pairs (pair_address, token0, token1, created_ts)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (pair_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1
		`,
			pair.Address,
			pair.Token0,
			pair.Token1,
			int64(pair.CreatedAt),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pairs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutEvents inserts a batch of pair events. Replays of the same sequence
// numbers are ignored.
func (s *Store) PutEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		batch.Queue(`
			INSERT INTO pair_events (seq, event_ts, pair_address, event_name, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (seq) DO NOTHING
		`,
			int64(event.Seq),
			int64(event.Timestamp),
			event.Pair,
			event.Name,
			[]byte(event.Data),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
