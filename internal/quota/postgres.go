package quota

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool used here; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore keeps counters in Postgres.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects, pings and migrates.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "quota: postgres parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "quota: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "quota: postgres ping")
	}
	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS quota_usage (
	owner_id TEXT    NOT NULL,
	day      DATE    NOT NULL,
	count    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (owner_id, day)
)`

// Migrate creates the counter table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "quota: postgres migrate")
}

// Increment implements Store.
func (s *PostgresStore) Increment(ctx context.Context, owner, day string, limit int) (int, bool, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO quota_usage (owner_id, day, count) VALUES ($1, $2::date, 1)
		ON CONFLICT (owner_id, day) DO UPDATE SET count = quota_usage.count + 1
		WHERE quota_usage.count < $3
		RETURNING count`,
		owner, day, limit,
	).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, eris.Wrap(err, "quota: postgres increment")
	}

	err = s.pool.QueryRow(ctx,
		`SELECT count FROM quota_usage WHERE owner_id = $1 AND day = $2::date`,
		owner, day,
	).Scan(&count)
	if err != nil {
		return 0, false, eris.Wrap(err, "quota: postgres read count")
	}
	return count, false, nil
}

// Prune implements Store.
func (s *PostgresStore) Prune(ctx context.Context, before string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM quota_usage WHERE day < $1::date`, before)
	return eris.Wrap(err, "quota: postgres prune")
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
