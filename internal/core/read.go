package core

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/keepstore/keep/internal/model"
	"github.com/keepstore/keep/internal/store"
)

// overfetch widens the raw k-NN candidate set so recency re-ranking
// has room to reorder before the cut to limit.
const overfetch = 2

// decay returns the ACT-R recency factor 0.5^(age_days / half_life).
// A non-positive half-life disables decay.
func (m *Memory) decay(updated time.Time) float64 {
	if m.cfg.HalfLifeDays <= 0 {
		return 1
	}
	age := now().Sub(updated).Hours() / 24
	if age < 0 {
		age = 0
	}
	return math.Pow(0.5, age/m.cfg.HalfLifeDays)
}

func (m *Memory) rank(records []*model.Record, limit int, since *time.Time) []*model.Record {
	out := records[:0]
	for _, r := range records {
		if since != nil && r.UpdatedAt.Before(*since) {
			continue
		}
		r.Score *= m.decay(r.UpdatedAt)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// touch bumps accessed_at on the returned records, best-effort: a
// failed touch never fails the read.
func (m *Memory) touch(ctx context.Context, collection string, records []*model.Record) {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if base, v := model.SplitVersionKey(r.ID); v == 0 {
			ids = append(ids, base)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := m.docs.TouchMany(ctx, collection, ids); err != nil {
		m.log.Debug("core: touch failed", slog.String("error", err.Error()))
	}
}

// Find retrieves by semantic similarity to the query text, recency
// decayed and optionally restricted to documents updated since a date.
func (m *Memory) Find(ctx context.Context, collection, query string, limit int, since *time.Time) ([]*model.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	embedding, err := m.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	records, err := m.vec.QueryEmbedding(ctx, collection, embedding, limit*overfetch, nil)
	if err != nil {
		return nil, err
	}
	records = m.rank(records, limit, since)
	m.touch(ctx, collection, records)
	return records, nil
}

// FindSimilar retrieves by similarity to a stored document's embedding.
// The anchor's embedding is reused, never recomputed.
func (m *Memory) FindSimilar(ctx context.Context, collection, id string, limit int, since *time.Time, includeSelf bool) ([]*model.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	embedding, err := m.vec.GetEmbedding(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if embedding == nil {
		return nil, fmt.Errorf("similar anchor %s/%s: %w", collection, id, store.ErrNotFound)
	}

	records, err := m.vec.QueryEmbedding(ctx, collection, embedding, (limit+1)*overfetch, nil)
	if err != nil {
		return nil, err
	}
	if !includeSelf {
		filtered := records[:0]
		for _, r := range records {
			if r.ID != id {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}
	records = m.rank(records, limit, since)
	m.touch(ctx, collection, records)
	return records, nil
}

// GetSimilarForDisplay returns similar documents deduplicated to their
// base id, excluding every version of the anchor itself. Display
// surfaces never show two versions of the same document.
func (m *Memory) GetSimilarForDisplay(ctx context.Context, collection, id string, limit int) ([]*model.Record, error) {
	if limit <= 0 {
		limit = 5
	}
	anchorBase, _ := model.SplitVersionKey(id)

	records, err := m.FindSimilar(ctx, collection, id, (limit+1)*overfetch, nil, false)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []*model.Record
	for _, r := range records {
		base, _ := model.SplitVersionKey(r.ID)
		if base == anchorBase || seen[base] {
			continue
		}
		seen[base] = true
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// QueryFulltext searches the stored summaries by substring.
func (m *Memory) QueryFulltext(ctx context.Context, collection, query string, limit int, since *time.Time) ([]*model.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	records, err := m.vec.QueryFulltext(ctx, collection, query, limit*overfetch, nil)
	if err != nil {
		return nil, err
	}
	filtered := records[:0]
	for _, r := range records {
		if since != nil && r.UpdatedAt.Before(*since) {
			continue
		}
		filtered = append(filtered, r)
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	m.touch(ctx, collection, filtered)
	return filtered, nil
}

// QueryTag returns documents carrying a tag key, optionally filtered to
// an exact value and a since date.
func (m *Memory) QueryTag(ctx context.Context, collection, key, value string, limit int, since *time.Time) ([]*model.Record, error) {
	return m.docs.QueryByTagKey(ctx, collection, key, value, limit, since)
}

// ListRecent returns documents ordered by update or access time.
func (m *Memory) ListRecent(ctx context.Context, collection string, limit int, since *time.Time, orderBy store.OrderBy) ([]*model.Record, error) {
	records, err := m.docs.ListRecent(ctx, collection, limit, orderBy)
	if err != nil {
		return nil, err
	}
	if since == nil {
		return records, nil
	}
	out := records[:0]
	for _, r := range records {
		if !r.UpdatedAt.Before(*since) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListTags returns distinct tag keys, or distinct values when a key is
// given.
func (m *Memory) ListTags(ctx context.Context, collection, key string) ([]string, error) {
	if key == "" {
		return m.docs.ListTagKeys(ctx, collection)
	}
	return m.docs.ListTagValues(ctx, collection, key)
}

// Count returns the number of current documents in a collection.
func (m *Memory) Count(ctx context.Context, collection string) (int, error) {
	return m.docs.Count(ctx, collection)
}

// ListCollections returns the collections holding documents.
func (m *Memory) ListCollections(ctx context.Context) ([]string, error) {
	return m.docs.ListCollections(ctx)
}

// Get returns the current document, or nil when absent. The document
// store is authoritative; the vector index serves as a fallback for
// entries that predate it.
func (m *Memory) Get(ctx context.Context, collection, id string) (*model.Record, error) {
	rec, err := m.docs.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		if rec, err = m.vec.Get(ctx, collection, id); err != nil || rec == nil {
			return rec, err
		}
	}
	m.touch(ctx, collection, []*model.Record{rec})
	return rec, nil
}

// GetVersion returns the document state at a user-facing offset:
// 0 = current, 1 = most recently archived, N = N versions ago. Offsets
// beyond the history return nil.
func (m *Memory) GetVersion(ctx context.Context, collection, id string, offset int) (*model.Record, error) {
	if offset == 0 {
		return m.Get(ctx, collection, id)
	}
	v, err := m.docs.GetVersion(ctx, collection, id, offset)
	if err != nil || v == nil {
		return nil, err
	}
	return &model.Record{
		ID:          v.ID,
		Collection:  v.Collection,
		Summary:     v.Summary,
		Tags:        model.CloneTags(v.Tags),
		ContentHash: v.ContentHash,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.CreatedAt,
	}, nil
}

// ListVersions returns archived versions, newest first.
func (m *Memory) ListVersions(ctx context.Context, collection, id string, limit int) ([]*model.Version, error) {
	return m.docs.ListVersions(ctx, collection, id, limit)
}

// GetVersionNav returns the versions on either side of a point in a
// document's history.
func (m *Memory) GetVersionNav(ctx context.Context, collection, id string, currentVersion, limit int) (*model.VersionNav, error) {
	return m.docs.GetVersionNav(ctx, collection, id, currentVersion, limit)
}

// VersionOffset converts an internal version number to the user-facing
// offset for display.
func (m *Memory) VersionOffset(ctx context.Context, collection, id string, internal int) (int, error) {
	n, err := m.docs.VersionCount(ctx, collection, id)
	if err != nil {
		return 0, err
	}
	if internal <= 0 || internal > n {
		return 0, fmt.Errorf("version %d out of range for %s (history depth %d)", internal, id, n)
	}
	return n - internal + 1, nil
}
