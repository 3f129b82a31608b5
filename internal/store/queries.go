package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/keepstore/keep/internal/model"
)

// OrderBy selects the sort column for ListRecent.
type OrderBy string

const (
	OrderByUpdated  OrderBy = "updated"
	OrderByAccessed OrderBy = "accessed"
)

func (o OrderBy) column() string {
	if o == OrderByAccessed {
		return "accessed_at"
	}
	return "updated_at"
}

func (s *DocumentStore) queryRecords(ctx context.Context, query string, args ...any) ([]*model.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListRecent returns current documents ordered descending on the chosen
// timestamp column.
func (s *DocumentStore) ListRecent(ctx context.Context, collection string, limit int, orderBy OrderBy) ([]*model.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryRecords(ctx, fmt.Sprintf(
		`SELECT %s FROM documents WHERE collection = ? ORDER BY %s DESC LIMIT ?`,
		recordColumns, orderBy.column()), collection, limit)
}

// ListIDs returns all current IDs in a collection, for reconciliation.
func (s *DocumentStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListCollections returns the distinct collection names holding documents.
func (s *DocumentStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// QueryByTagKey returns documents whose tag map contains key, optionally
// restricted to a value and to updated_at >= since. The lookup goes through
// the document_tags table, not a scan of the JSON column.
func (s *DocumentStore) QueryByTagKey(ctx context.Context, collection, key, value string, limit int, since *time.Time) ([]*model.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	where := []string{"t.collection = ?", "t.key = ?"}
	args := []any{collection, key}
	if value != "" {
		where = append(where, "t.value = ?")
		args = append(args, value)
	}
	if since != nil {
		where = append(where, "d.updated_at >= ?")
		args = append(args, formatTime(*since))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT d.id, d.collection, d.summary, d.tags, d.content_hash, d.created_at, d.updated_at, d.accessed_at
		FROM document_tags t
		JOIN documents d ON d.collection = t.collection AND d.id = t.id
		WHERE %s
		ORDER BY d.updated_at DESC
		LIMIT ?`, strings.Join(where, " AND "))
	return s.queryRecords(ctx, query, args...)
}

// QueryByTags returns documents matching every key=value pair (AND
// conjunction over tag filters).
func (s *DocumentStore) QueryByTags(ctx context.Context, collection string, filters map[string]string, limit int) ([]*model.Record, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var sub []string
	var args []any
	for k, v := range filters {
		sub = append(sub, `SELECT id FROM document_tags WHERE collection = ? AND key = ? AND value = ?`)
		args = append(args, collection, k, v)
	}
	args = append(args, collection, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM documents
		WHERE id IN (%s) AND collection = ?
		ORDER BY updated_at DESC
		LIMIT ?`, recordColumns, strings.Join(sub, " INTERSECT "))
	return s.queryRecords(ctx, query, args...)
}

// QueryByIDPrefix returns documents whose id starts with prefix.
func (s *DocumentStore) QueryByIDPrefix(ctx context.Context, collection, prefix string) ([]*model.Record, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return s.queryRecords(ctx, fmt.Sprintf(
		`SELECT %s FROM documents WHERE collection = ? AND id LIKE ? ESCAPE '\' ORDER BY id`,
		recordColumns), collection, escaped+"%")
}

// ListTagKeys returns the distinct tag keys in use.
func (s *DocumentStore) ListTagKeys(ctx context.Context, collection string) ([]string, error) {
	return s.stringColumn(ctx,
		`SELECT DISTINCT key FROM document_tags WHERE collection = ? ORDER BY key`, collection)
}

// ListTagValues returns the distinct values recorded for a tag key.
func (s *DocumentStore) ListTagValues(ctx context.Context, collection, key string) ([]string, error) {
	return s.stringColumn(ctx,
		`SELECT DISTINCT value FROM document_tags WHERE collection = ? AND key = ? ORDER BY value`,
		collection, key)
}

func (s *DocumentStore) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
