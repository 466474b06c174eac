package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"widgetd/internal/widget"
)

const migration = `
CREATE TABLE IF NOT EXISTS widget_states (
    key      text PRIMARY KEY,
    state    jsonb  NOT NULL,
    revision bigint NOT NULL DEFAULT 1
);
`

// Store persists widget states in a single Postgres table, using the
// per-row revision column for compare-and-swap writes.
type Store struct {
	pool *pgxpool.Pool
}

func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ready(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, "select 1").Scan(&one)
}

// Migrate creates the widget_states table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, migration); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	var value []byte
	var revision int64
	err := s.pool.QueryRow(ctx,
		"SELECT state, revision FROM widget_states WHERE key = $1", key,
	).Scan(&value, &revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, fmt.Errorf("key %q: %w", key, widget.ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get %q: %w", key, err)
	}
	return value, uint64(revision), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, expectedRevision uint64) error {
	if expectedRevision == 0 {
		tag, err := s.pool.Exec(ctx,
			"INSERT INTO widget_states (key, state, revision) VALUES ($1, $2, 1) ON CONFLICT (key) DO NOTHING",
			key, value)
		if err != nil {
			return fmt.Errorf("insert %q: %w", key, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("key %q exists: %w", key, widget.ErrConflict)
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		"UPDATE widget_states SET state = $2, revision = revision + 1 WHERE key = $1 AND revision = $3",
		key, value, int64(expectedRevision))
	if err != nil {
		return fmt.Errorf("update %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("key %q revision moved: %w", key, widget.ErrConflict)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM widget_states WHERE key = $1", key)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// likeEscaper neutralizes LIKE metacharacters so a prefix matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT key FROM widget_states WHERE key LIKE $1 ORDER BY key", likePattern(prefix))
	if err != nil {
		return nil, fmt.Errorf("keys %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
