package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createPostgresKVTable = `
CREATE TABLE IF NOT EXISTS timelock_kv (
    key   TEXT PRIMARY KEY,
    value BYTEA NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store on PostgreSQL. Updates run SERIALIZABLE so
// concurrent processes sharing the database stay totally ordered per key.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and creates the kv table if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, createPostgresKVTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// View runs fn inside a read-only transaction.
func (s *PostgresStore) View(ctx context.Context, fn func(KV) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback(ctx)

	return fn(&postgresTx{tx: tx, readOnly: true})
}

// Update runs fn inside a serializable transaction. Serialization failures,
// whether raised by a statement inside fn or at commit, are reported as
// ErrConflict.
func (s *PostgresStore) Update(ctx context.Context, fn func(KV) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return postgresConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return postgresConflict(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// postgresConflict marks err with ErrConflict when it carries SQLSTATE 40001
// (serialization_failure) or 40P01 (deadlock_detected).
func postgresConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

type postgresTx struct {
	tx       pgx.Tx
	readOnly bool
}

func (t *postgresTx) Has(ctx context.Context, key Key) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM timelock_kv WHERE key = $1)", string(key)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return exists, nil
}

func (t *postgresTx) Get(ctx context.Context, key Key) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRow(ctx, "SELECT value FROM timelock_kv WHERE key = $1", string(key)).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (t *postgresTx) Set(ctx context.Context, key Key, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if value == nil {
		value = []byte{}
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO timelock_kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		string(key), value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (t *postgresTx) Delete(ctx context.Context, key Key) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, err := t.tx.Exec(ctx, "DELETE FROM timelock_kv WHERE key = $1", string(key)); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
