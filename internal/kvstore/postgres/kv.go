package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kralovic/faceattend/internal/kvstore"
)

// KV is the PostgreSQL-backed key-value store. Every failure that is not a
// plain miss is wrapped in kvstore.ErrUnavailable so callers can treat the
// backend as down without inspecting driver errors.
type KV struct {
	pool *Pool
}

// NewKV creates a key-value store on top of the connection pool.
func NewKV(pool *Pool) *KV {
	return &KV{pool: pool}
}

// wrapErr classifies a driver error. Context expiry passes through so the
// caller can tell a timeout from a dead backend.
func wrapErr(op, key string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %q: %w", op, key, err)
	}
	return fmt.Errorf("%s %q: %v: %w", op, key, err, kvstore.ErrUnavailable)
}

func (s *KV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, "SELECT value FROM kv_entries WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("key %q: %w", key, kvstore.ErrNotFound)
	}
	if err != nil {
		return "", wrapErr("get", key, err)
	}
	return value, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return wrapErr("set", key, err)
	}
	return nil
}

// SetIfAbsent writes the value only when the key does not exist yet. The
// conditional is a single INSERT ... ON CONFLICT DO NOTHING, so two
// concurrent writers race inside the database, not in Go.
func (s *KV) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	res, err := s.pool.Exec(ctx, `
		INSERT INTO kv_entries (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, value)
	if err != nil {
		return false, wrapErr("set-if-absent", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("set-if-absent", key, err)
	}
	return affected == 1, nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM kv_entries WHERE key = $1", key)
	if err != nil {
		return wrapErr("delete", key, err)
	}
	return nil
}

func (s *KV) List(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT key, value FROM kv_entries WHERE key LIKE $1 || '%'", prefix)
	if err != nil {
		return nil, wrapErr("list", prefix, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, wrapErr("list", prefix, err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list", prefix, err)
	}
	return out, nil
}
