// Package pending implements the durable queue of documents awaiting
// background summarization. The queue lives in its own SQLite database
// so writers and the worker can open it independently.
package pending

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/keepstore/keep/internal/model"
)

const timeLayout = time.RFC3339Nano

// Stats describes queue depth for display.
type Stats struct {
	Pending     int
	Collections int
	MaxAttempts int
	Oldest      time.Time
	Path        string
}

// Queue is a durable FIFO of summarization requests keyed by document.
// Re-enqueueing a document replaces its entry and resets its attempt
// count, so a rewritten document is summarized from its newest content.
type Queue struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (or creates) the queue database at path.
func Open(path string) (*Queue, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open pending queue: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS pending_summaries (
		id          TEXT NOT NULL,
		collection  TEXT NOT NULL,
		content     TEXT NOT NULL,
		attempts    INTEGER NOT NULL DEFAULT 0,
		enqueued_at TEXT NOT NULL,
		PRIMARY KEY (id, collection)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init pending queue: %w", err)
	}
	return &Queue{db: db, path: path}, nil
}

// Close closes the underlying database.
func (q *Queue) Close() error { return q.db.Close() }

// Enqueue adds or replaces the pending entry for a document.
func (q *Queue) Enqueue(ctx context.Context, collection, id, content string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pending_summaries (id, collection, content, attempts, enqueued_at)
		 VALUES (?, ?, ?, 0, ?)`,
		id, collection, content, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("enqueue %s/%s: %w", collection, id, err)
	}
	return nil
}

// Dequeue claims up to limit items, least-attempted and oldest first,
// bumping each item's attempt count in the same transaction. Claimed
// items stay queued until Complete removes them, so a crashed worker
// loses no work.
func (q *Queue) Dequeue(ctx context.Context, limit int) ([]*model.PendingItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, collection, content, attempts, enqueued_at FROM pending_summaries
		 ORDER BY attempts ASC, enqueued_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var items []*model.PendingItem
	for rows.Next() {
		var it model.PendingItem
		var enqueued string
		if err := rows.Scan(&it.ID, &it.Collection, &it.Content, &it.Attempts, &enqueued); err != nil {
			rows.Close()
			return nil, err
		}
		it.EnqueuedAt, _ = time.Parse(timeLayout, enqueued)
		items = append(items, &it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, it := range items {
		if _, err := tx.ExecContext(ctx,
			`UPDATE pending_summaries SET attempts = attempts + 1 WHERE id = ? AND collection = ?`,
			it.ID, it.Collection); err != nil {
			return nil, err
		}
		it.Attempts++
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return items, nil
}

// Complete removes a finished item. Items re-enqueued after this claim
// carry attempts = 0, and removing them here would lose the newer
// content, so the delete is conditional on the attempt count.
func (q *Queue) Complete(ctx context.Context, collection, id string, attempts int) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM pending_summaries WHERE id = ? AND collection = ? AND attempts = ?`,
		id, collection, attempts)
	if err != nil {
		return fmt.Errorf("complete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Count returns the number of queued items across all collections.
func (q *Queue) Count(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_summaries`).Scan(&n)
	return n, err
}

// List returns queued items without claiming them.
func (q *Queue) List(ctx context.Context, limit int) ([]*model.PendingItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, collection, content, attempts, enqueued_at FROM pending_summaries
		 ORDER BY enqueued_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*model.PendingItem
	for rows.Next() {
		var it model.PendingItem
		var enqueued string
		if err := rows.Scan(&it.ID, &it.Collection, &it.Content, &it.Attempts, &enqueued); err != nil {
			return nil, err
		}
		it.EnqueuedAt, _ = time.Parse(timeLayout, enqueued)
		items = append(items, &it)
	}
	return items, rows.Err()
}

// Stats summarizes queue depth and age.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Path: q.path}
	var oldest sql.NullString
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT collection), COALESCE(MAX(attempts), 0), MIN(enqueued_at)
		 FROM pending_summaries`).Scan(&st.Pending, &st.Collections, &st.MaxAttempts, &oldest)
	if err != nil {
		return nil, err
	}
	if oldest.Valid {
		st.Oldest, _ = time.Parse(timeLayout, oldest.String)
	}
	return st, nil
}

// Remove drops a document's pending entry regardless of state. Used
// when the document itself is deleted.
func (q *Queue) Remove(ctx context.Context, collection, id string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM pending_summaries WHERE id = ? AND collection = ?`, id, collection)
	return err
}
