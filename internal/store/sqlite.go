// Package store implements the canonical relational document store:
// current documents, archived versions, tags and timestamps on SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/keepstore/keep/internal/model"
)

// timeLayout is the persisted timestamp format (UTC ISO with sub-second
// precision so accessed_at stays strictly non-decreasing).
const timeLayout = time.RFC3339Nano

// DocumentStore is the SQLite-backed canonical record store. Single-process
// access is serialized by an internal mutex; cross-process access relies on
// WAL mode plus a busy timeout.
type DocumentStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the document database at the given path.
func Open(dbPath string) (*DocumentStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &DocumentStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

// migrations are applied in order under an exclusive transaction. They are
// adding-only: new tables, new columns with backfill.
var migrations = []func(tx *sql.Tx) error{
	func(tx *sql.Tx) error { // v1: base tables
		_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id           TEXT NOT NULL,
			collection   TEXT NOT NULL,
			summary      TEXT NOT NULL,
			tags         TEXT NOT NULL DEFAULT '{}',
			content_hash TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,
			accessed_at  TEXT NOT NULL,
			PRIMARY KEY (id, collection)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(collection, updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_documents_accessed ON documents(collection, accessed_at DESC);

		CREATE TABLE IF NOT EXISTS versions (
			id           TEXT NOT NULL,
			collection   TEXT NOT NULL,
			version      INTEGER NOT NULL,
			summary      TEXT NOT NULL,
			tags         TEXT NOT NULL DEFAULT '{}',
			content_hash TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			PRIMARY KEY (id, collection, version)
		);
		`)
		return err
	},
	func(tx *sql.Tx) error { // v2: indexable tag path, backfilled from the JSON column
		if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS document_tags (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			PRIMARY KEY (collection, id, key)
		);
		CREATE INDEX IF NOT EXISTS idx_document_tags_key ON document_tags(collection, key, value);
		`); err != nil {
			return err
		}
		_, err := tx.Exec(`
		INSERT OR IGNORE INTO document_tags (collection, id, key, value)
		SELECT d.collection, d.id, j.key, j.value
		FROM documents d, json_each(d.tags) j
		`)
		return err
	},
}

func (s *DocumentStore) migrate() error {
	var current int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return err
	}
	if current >= len(migrations) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for v := current; v < len(migrations); v++ {
		if err := migrations[v](tx); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	// PRAGMA does not accept placeholders.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return err
	}
	return tx.Commit()
}

func marshalTags(tags map[string]string) string {
	if len(tags) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func unmarshalTags(s string) map[string]string {
	tags := map[string]string{}
	if s != "" {
		json.Unmarshal([]byte(s), &tags)
	}
	return tags
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// syncTags keeps the indexable tag table aligned with the JSON column.
func syncTags(tx *sql.Tx, collection, id string, tags map[string]string) error {
	if _, err := tx.Exec(`DELETE FROM document_tags WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return err
	}
	for k, v := range tags {
		if _, err := tx.Exec(
			`INSERT INTO document_tags (collection, id, key, value) VALUES (?, ?, ?, ?)`,
			collection, id, k, v); err != nil {
			return err
		}
	}
	return nil
}

const recordColumns = `id, collection, summary, tags, content_hash, created_at, updated_at, accessed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.Record, error) {
	var r model.Record
	var tags, created, updated, accessed string
	if err := row.Scan(&r.ID, &r.Collection, &r.Summary, &tags, &r.ContentHash, &created, &updated, &accessed); err != nil {
		return nil, err
	}
	r.Tags = unmarshalTags(tags)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	r.AccessedAt = parseTime(accessed)
	return &r, nil
}

// Upsert stores the document state for (id, collection). An existing record
// is first archived to the versions table unless the new state is
// bit-identical, in which case the call is a no-op. The returned bool
// reports whether the content hash changed.
func (s *DocumentStore) Upsert(ctx context.Context, collection, id, summary string, tags map[string]string, contentHash string) (*model.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	tagsJSON := marshalTags(tags)

	prev, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM documents WHERE id = ? AND collection = ?`, id, collection))
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, collection, summary, tagsJSON, contentHash,
			formatTime(now), formatTime(now), formatTime(now)); err != nil {
			return nil, false, fmt.Errorf("insert document: %w", err)
		}
		if err := syncTags(tx, collection, id, tags); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		return &model.Record{
			ID: id, Collection: collection, Summary: summary,
			Tags: model.CloneTags(tags), ContentHash: contentHash,
			CreatedAt: now, UpdatedAt: now, AccessedAt: now,
		}, true, nil
	case err != nil:
		return nil, false, err
	}

	// Repeated identical writes must not archive a version or bump
	// updated_at.
	if prev.Summary == summary && prev.ContentHash == contentHash && marshalTags(prev.Tags) == tagsJSON {
		return prev, false, nil
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM versions WHERE id = ? AND collection = ?`,
		id, collection).Scan(&next); err != nil {
		return nil, false, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO versions (id, collection, version, summary, tags, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, collection, next, prev.Summary, marshalTags(prev.Tags), prev.ContentHash, formatTime(now)); err != nil {
		return nil, false, fmt.Errorf("archive version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET summary = ?, tags = ?, content_hash = ?, updated_at = ?, accessed_at = ?
		 WHERE id = ? AND collection = ?`,
		summary, tagsJSON, contentHash, formatTime(now), formatTime(now), id, collection); err != nil {
		return nil, false, fmt.Errorf("update document: %w", err)
	}
	if err := syncTags(tx, collection, id, tags); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	return &model.Record{
		ID: id, Collection: collection, Summary: summary,
		Tags: model.CloneTags(tags), ContentHash: contentHash,
		CreatedAt: prev.CreatedAt, UpdatedAt: now, AccessedAt: now,
	}, prev.ContentHash != contentHash, nil
}

// UpdateSummary replaces the summary and bumps updated_at without archiving
// a version. Used by the background summarizer replacing a placeholder.
func (s *DocumentStore) UpdateSummary(ctx context.Context, collection, id, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET summary = ?, updated_at = ? WHERE id = ? AND collection = ?`,
		summary, formatTime(time.Now()), id, collection)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update summary %s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

// UpdateTags replaces the tag map and bumps updated_at without archiving.
func (s *DocumentStore) UpdateTags(ctx context.Context, collection, id string, tags map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET tags = ?, updated_at = ? WHERE id = ? AND collection = ?`,
		marshalTags(tags), formatTime(time.Now()), id, collection)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update tags %s/%s: %w", collection, id, ErrNotFound)
	}
	if err := syncTags(tx, collection, id, tags); err != nil {
		return err
	}
	return tx.Commit()
}

// Touch bumps accessed_at only.
func (s *DocumentStore) Touch(ctx context.Context, collection, id string) error {
	return s.TouchMany(ctx, collection, []string{id})
}

// TouchMany bumps accessed_at for a set of documents.
func (s *DocumentStore) TouchMany(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := formatTime(time.Now())
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE documents SET accessed_at = ? WHERE id = ? AND collection = ?`,
			now, id, collection); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the current record, or nil when absent.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (*model.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM documents WHERE id = ? AND collection = ?`, id, collection))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// GetMany returns the records found among ids, keyed by id.
func (s *DocumentStore) GetMany(ctx context.Context, collection string, ids []string) (map[string]*model.Record, error) {
	out := make(map[string]*model.Record, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out[id] = rec
		}
	}
	return out, nil
}

// Exists reports whether a current record exists.
func (s *DocumentStore) Exists(ctx context.Context, collection, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE id = ? AND collection = ?`, id, collection).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// Count returns the number of current documents in a collection.
func (s *DocumentStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

// Delete removes the current row, optionally cascading to archived
// versions.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string, deleteVersions bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE id = ? AND collection = ?`, id, collection); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_tags WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return err
	}
	if deleteVersions {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM versions WHERE id = ? AND collection = ?`, id, collection); err != nil {
			return err
		}
	}
	return tx.Commit()
}
