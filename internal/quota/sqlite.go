package quota

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps counters in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the database at dsn in WAL mode and creates the table.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "quota: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "quota: sqlite exec %s", pragma)
		}
	}
	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS quota_usage (
	owner_id TEXT    NOT NULL,
	day      TEXT    NOT NULL,
	count    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (owner_id, day)
);
`

// Migrate creates the counter table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "quota: sqlite migrate")
}

const sqliteIncrement = `
INSERT INTO quota_usage (owner_id, day, count) VALUES (?, ?, 1)
ON CONFLICT (owner_id, day) DO UPDATE SET count = quota_usage.count + 1
WHERE quota_usage.count < ?
RETURNING count`

// Increment implements Store.
func (s *SQLiteStore) Increment(ctx context.Context, owner, day string, limit int) (int, bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, sqliteIncrement, owner, day, limit).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, eris.Wrap(err, "quota: sqlite increment")
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT count FROM quota_usage WHERE owner_id = ? AND day = ?`, owner, day,
	).Scan(&count)
	if err != nil {
		return 0, false, eris.Wrap(err, "quota: sqlite read count")
	}
	return count, false, nil
}

// Prune implements Store.
func (s *SQLiteStore) Prune(ctx context.Context, before string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM quota_usage WHERE day < ?`, before)
	return eris.Wrap(err, "quota: sqlite prune")
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
