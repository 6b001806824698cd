package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/seantiz/timelock/internal/model"

	_ "modernc.org/sqlite"
)

const createNotificationsTable = `
CREATE TABLE IF NOT EXISTS notifications (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT NOT NULL UNIQUE,
    action       TEXT NOT NULL,
    operation_id TEXT NOT NULL,
    topics       TEXT NOT NULL,
    timestamp    INTEGER NOT NULL,
    execute_at   INTEGER NOT NULL DEFAULT 0,
    executed_at  INTEGER NOT NULL DEFAULT 0
)`

const createNotificationsOpIndex = `
CREATE INDEX IF NOT EXISTS idx_notifications_operation ON notifications(operation_id)`

// DefaultListLimit and MaxListLimit bound a single List page.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

var _ Publisher = (*Journal)(nil)

// Journal is an append-only SQLite log of notifications. It is the durable
// audit trail of every transition, including executions whose records the
// engine has deleted.
type Journal struct {
	db *sql.DB
}

// NewJournal opens the journal database at dbPath and runs migrations.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		createNotificationsTable,
		createNotificationsOpIndex,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init journal: %w", err)
		}
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Publish appends n to the journal.
func (j *Journal) Publish(ctx context.Context, n model.Notification) error {
	topics, err := json.Marshal(n.Topics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO notifications (id, action, operation_id, topics, timestamp, execute_at, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Action(), n.OperationID, string(topics),
		int64(n.Timestamp), int64(n.ExecuteAt), int64(n.ExecutedAt),
	)
	if err != nil {
		return fmt.Errorf("append notification %s: %w", n.ID, err)
	}
	return nil
}

// ListOptions selects a page of the journal.
type ListOptions struct {
	// After returns entries with a sequence number strictly greater than this.
	After int64
	// Limit caps the page size. Zero means DefaultListLimit.
	Limit int
	// OperationID, if set, restricts the page to one operation.
	OperationID string
}

// List returns journal entries in sequence order.
func (j *Journal) List(ctx context.Context, opts ListOptions) ([]model.Notification, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `SELECT seq, id, operation_id, topics, timestamp, execute_at, executed_at
		FROM notifications WHERE seq > ?`
	args := []any{opts.After}
	if opts.OperationID != "" {
		query += " AND operation_id = ?"
		args = append(args, opts.OperationID)
	}
	query += " ORDER BY seq ASC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		var (
			n                         model.Notification
			topics                    string
			ts, executeAt, executedAt int64
		)
		if err := rows.Scan(&n.Seq, &n.ID, &n.OperationID, &topics, &ts, &executeAt, &executedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if err := json.Unmarshal([]byte(topics), &n.Topics); err != nil {
			return nil, fmt.Errorf("decode topics for %s: %w", n.ID, err)
		}
		n.Timestamp = uint64(ts)
		n.ExecuteAt = uint64(executeAt)
		n.ExecutedAt = uint64(executedAt)
		out = append(out, n)
	}
	return out, rows.Err()
}
