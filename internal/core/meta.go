package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/keepstore/keep/internal/model"
	"github.com/keepstore/keep/internal/provider"
	"github.com/keepstore/keep/internal/store"
)

// metaQueryLimit bounds how many documents a single meta-doc line pulls
// before ranking.
const metaQueryLimit = 100

// ResolveMeta evaluates every .meta/* document against an anchor.
// Each line of a meta-doc is an AND conjunction of key=value filters;
// a bare "key=" takes its value from the anchor's tag of that key, so
// the same meta-doc surfaces different documents in different contexts.
// Results are ranked by cosine similarity to the anchor's stored
// embedding times recency decay.
func (m *Memory) ResolveMeta(ctx context.Context, collection, anchorID string, limitPerDoc int) (map[string][]*model.Record, error) {
	if limitPerDoc <= 0 {
		limitPerDoc = 5
	}
	anchor, err := m.docs.Get(ctx, collection, anchorID)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		return nil, fmt.Errorf("meta anchor %s/%s: %w", collection, anchorID, store.ErrNotFound)
	}
	anchorTags := model.UserTags(anchor.Tags)

	anchorEmb, err := m.vec.GetEmbedding(ctx, collection, anchorID)
	if err != nil {
		return nil, err
	}

	metas, err := m.docs.QueryByIDPrefix(ctx, collection, model.MetaIDPrefix)
	if err != nil {
		return nil, err
	}

	out := map[string][]*model.Record{}
	for _, meta := range metas {
		matched, err := m.resolveMetaDoc(ctx, collection, meta.Summary, anchorTags)
		if err != nil {
			return nil, err
		}

		var records []*model.Record
		for _, rec := range matched {
			if rec.ID == anchorID || model.IsMeta(rec.ID) {
				continue
			}
			score := 1.0
			if anchorEmb != nil {
				if emb, _ := m.vec.GetEmbedding(ctx, collection, rec.ID); emb != nil {
					score = provider.CosineSimilarity(anchorEmb, emb)
				}
			}
			rec.Score = score * m.decay(rec.UpdatedAt)
			records = append(records, rec)
		}
		if len(records) == 0 {
			continue
		}
		sort.SliceStable(records, func(i, j int) bool { return records[i].Score > records[j].Score })
		if len(records) > limitPerDoc {
			records = records[:limitPerDoc]
		}
		out[strings.TrimPrefix(meta.ID, model.MetaIDPrefix)] = records
	}
	return out, nil
}

// resolveMetaDoc expands a meta-doc body into tag queries and unions
// their results, keyed by document id.
func (m *Memory) resolveMetaDoc(ctx context.Context, collection, body string, anchorTags map[string]string) (map[string]*model.Record, error) {
	matched := map[string]*model.Record{}
	for _, line := range strings.Split(body, "\n") {
		filters, ok := parseMetaLine(line, anchorTags)
		if !ok {
			continue
		}
		records, err := m.docs.QueryByTags(ctx, collection, filters, metaQueryLimit)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			matched[rec.ID] = rec
		}
	}
	return matched, nil
}

// parseMetaLine parses one meta-doc rule. Returns ok=false for blank
// lines, malformed pairs, and context keys the anchor cannot satisfy.
func parseMetaLine(line string, anchorTags map[string]string) (map[string]string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}
	filters := make(map[string]string, len(fields))
	for _, field := range fields {
		key, value, found := strings.Cut(field, "=")
		if !found || key == "" {
			return nil, false
		}
		if value == "" {
			// Context substitution: the anchor supplies the value. An
			// anchor without the key cannot satisfy the rule.
			av, ok := anchorTags[key]
			if !ok {
				return nil, false
			}
			value = av
		}
		filters[key] = value
	}
	return filters, true
}
