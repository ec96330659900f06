package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGStore implements Store on the kv_entries table.
type PGStore struct {
	DB *sql.DB
}

func (s *PGStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv get %s: %w", key, err)
	}
	return value, nil
}

func (s *PGStore) Set(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO kv_entries (key, value, created_at, updated_at)
VALUES ($1, $2, now(), now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// List uses strpos rather than LIKE so '%' and '_' in substring match literally.
func (s *PGStore) List(ctx context.Context, substring string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT key FROM kv_entries WHERE strpos(key, $1) > 0 ORDER BY key`, substring)
	if err != nil {
		return nil, fmt.Errorf("kv list: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

var _ Store = (*PGStore)(nil)
