package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/keepstore/keep/internal/model"
)

const versionColumns = `id, collection, version, summary, tags, content_hash, created_at`

func scanVersion(row scanner) (*model.Version, error) {
	var v model.Version
	var tags, created string
	if err := row.Scan(&v.ID, &v.Collection, &v.Version, &v.Summary, &tags, &v.ContentHash, &created); err != nil {
		return nil, err
	}
	v.Tags = unmarshalTags(tags)
	v.CreatedAt = parseTime(created)
	return &v, nil
}

// VersionCount returns the number of archived versions for a document.
func (s *DocumentStore) VersionCount(ctx context.Context, collection, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM versions WHERE id = ? AND collection = ?`, id, collection).Scan(&n)
	return n, err
}

// GetVersion returns the archived version at the user-facing offset:
// 1 = most recently archived, N = N versions ago. Offset 0 (current) is
// handled by the caller. Returns nil when the offset exceeds the history.
func (s *DocumentStore) GetVersion(ctx context.Context, collection, id string, offset int) (*model.Version, error) {
	if offset < 1 {
		return nil, fmt.Errorf("version offset must be >= 1, got %d", offset)
	}
	var max int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM versions WHERE id = ? AND collection = ?`,
		id, collection).Scan(&max); err != nil {
		return nil, err
	}
	internal := max - (offset - 1)
	if internal < 1 {
		return nil, nil
	}
	v, err := scanVersion(s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE id = ? AND collection = ? AND version = ?`,
		id, collection, internal))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

// ListVersions returns archived versions newest-archived first.
func (s *DocumentStore) ListVersions(ctx context.Context, collection, id string, limit int) ([]*model.Version, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.queryVersions(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE id = ? AND collection = ? ORDER BY version DESC LIMIT ?`,
		id, collection, limit)
}

// GetVersionNav returns the archived versions on either side of a point in
// history for navigation display. currentVersion 0 anchors at the current
// document, so prev holds the newest archived versions and next is empty.
func (s *DocumentStore) GetVersionNav(ctx context.Context, collection, id string, currentVersion, limit int) (*model.VersionNav, error) {
	if limit <= 0 {
		limit = 5
	}
	nav := &model.VersionNav{}

	if currentVersion <= 0 {
		prev, err := s.ListVersions(ctx, collection, id, limit)
		if err != nil {
			return nil, err
		}
		for _, v := range prev {
			nav.Prev = append(nav.Prev, *v)
		}
		return nav, nil
	}

	prev, err := s.queryVersions(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE id = ? AND collection = ? AND version < ? ORDER BY version DESC LIMIT ?`,
		id, collection, currentVersion, limit)
	if err != nil {
		return nil, err
	}
	next, err := s.queryVersions(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE id = ? AND collection = ? AND version > ? ORDER BY version ASC LIMIT ?`,
		id, collection, currentVersion, limit)
	if err != nil {
		return nil, err
	}
	for _, v := range prev {
		nav.Prev = append(nav.Prev, *v)
	}
	for _, v := range next {
		nav.Next = append(nav.Next, *v)
	}
	return nav, nil
}

func (s *DocumentStore) queryVersions(ctx context.Context, query string, args ...any) ([]*model.Version, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// RestoreLatestVersion atomically replaces the current document with its
// highest-numbered archived version and deletes that version row. The
// original created_at is preserved. Returns nil when no versions exist.
func (s *DocumentStore) RestoreLatestVersion(ctx context.Context, collection, id string) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	v, err := scanVersion(tx.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE id = ? AND collection = ?
		 ORDER BY version DESC LIMIT 1`, id, collection))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cur, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM documents WHERE id = ? AND collection = ?`, id, collection))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("restore %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET summary = ?, tags = ?, content_hash = ?, updated_at = ?, accessed_at = ?
		 WHERE id = ? AND collection = ?`,
		v.Summary, marshalTags(v.Tags), v.ContentHash, formatTime(now), formatTime(now),
		id, collection); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM versions WHERE id = ? AND collection = ? AND version = ?`,
		id, collection, v.Version); err != nil {
		return nil, err
	}
	if err := syncTags(tx, collection, id, v.Tags); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &model.Record{
		ID: id, Collection: collection, Summary: v.Summary,
		Tags: model.CloneTags(v.Tags), ContentHash: v.ContentHash,
		CreatedAt: cur.CreatedAt, UpdatedAt: now, AccessedAt: now,
	}, nil
}
