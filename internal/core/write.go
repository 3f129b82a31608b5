package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keepstore/keep/internal/checksum"
	"github.com/keepstore/keep/internal/config"
	"github.com/keepstore/keep/internal/model"
)

// System tags stamped on every write.
const (
	tagSource      = "_source"
	tagContentType = "_content_type"
)

// PutText stores inline content. When id is empty it is derived from
// the content hash, so identical text re-insertions share an id and
// accumulate version history as their tags change.
func (m *Memory) PutText(ctx context.Context, collection, content, id string, tags map[string]string, summary string) (*model.Record, error) {
	if id == "" {
		id = model.ContentID([]byte(content))
	}
	system := map[string]string{tagSource: "inline"}
	return m.put(ctx, collection, id, []byte(content), system, tags, summary)
}

// PutURI fetches the content behind uri and stores it under the uri
// itself, so a later put of the same uri re-fetches and versions it.
func (m *Memory) PutURI(ctx context.Context, collection, uri string, tags map[string]string, summary string) (*model.Record, error) {
	fetched, err := m.fetch.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	system := map[string]string{
		tagSource:      "uri",
		tagContentType: fetched.ContentType,
	}
	return m.put(ctx, collection, uri, fetched.Content, system, tags, summary)
}

// put is the shared write path: tag merge, change detection, summary
// determination, dual-write, queueing.
func (m *Memory) put(ctx context.Context, collection, id string, content []byte, systemTags, callerTags map[string]string, callerSummary string) (*model.Record, error) {
	if err := model.ValidateCollection(collection); err != nil {
		return nil, err
	}

	prior, err := m.docs.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	// Precedence: existing user tags < config defaults < environment <
	// caller. System keys in caller input are discarded.
	var priorUser map[string]string
	if prior != nil {
		priorUser = model.UserTags(prior.Tags)
	}
	effective := model.MergeTags(priorUser, m.cfg.DefaultTags, config.EnvTags(), model.FilterSystemTags(callerTags))

	hash := checksum.Sum(content)
	contentUnchanged := prior != nil && prior.ContentHash == hash
	tagsChanged := prior == nil || !model.UserTagsEqual(prior.Tags, effective)

	if contentUnchanged && !tagsChanged && callerSummary == "" {
		return prior, nil
	}

	for k, v := range systemTags {
		effective[k] = v
	}

	text := string(content)
	summary := callerSummary
	enqueue := false
	switch {
	case summary != "":
		if truncated := placeholder(summary, m.cfg.MaxSummaryLength); truncated != summary {
			m.log.Warn("core: caller summary truncated",
				slog.String("id", id), slog.Int("max", m.cfg.MaxSummaryLength))
			summary = truncated
		}
	case contentUnchanged:
		summary = prior.Summary
	case len([]rune(text)) <= m.cfg.MaxSummaryLength:
		summary = text
	default:
		summary = placeholder(text, m.cfg.MaxSummaryLength)
		enqueue = true
	}

	// The embedding is of the content, not the summary; the cache keys
	// on the exact text so rewrites of unchanged content hit.
	embedding, err := m.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	rec, contentChanged, err := m.docs.Upsert(ctx, collection, id, summary, effective, hash)
	if err != nil {
		return nil, err
	}

	// The document store commit is the transactional boundary. A vector
	// failure past this point leaves the store reconcilable, not broken.
	if err := m.vec.Upsert(ctx, collection, id, embedding, summary, effective); err != nil {
		m.log.Error("core: vector upsert failed, store needs reconcile",
			slog.String("id", id), slog.String("error", err.Error()))
		return nil, err
	}
	if contentChanged && prior != nil {
		if err := m.archiveVersionVector(ctx, collection, id, prior); err != nil {
			m.log.Warn("core: version vector not archived",
				slog.String("id", id), slog.String("error", err.Error()))
		}
	}

	if enqueue {
		if err := m.queue.Enqueue(ctx, collection, id, text); err != nil {
			return nil, err
		}
		if contentChanged || tagsChanged {
			m.spawnWorker()
		}
	}
	return rec, nil
}

// archiveVersionVector writes the just-archived state under its
// versioned key. The original content is gone, so the prior summary is
// embedded in its place.
func (m *Memory) archiveVersionVector(ctx context.Context, collection, id string, prior *model.Record) error {
	n, err := m.docs.VersionCount(ctx, collection, id)
	if err != nil || n == 0 {
		return err
	}
	emb, err := m.embed(ctx, prior.Summary)
	if err != nil {
		return err
	}
	return m.vec.UpsertVersion(ctx, collection, id, n, emb, prior.Summary, prior.Tags)
}

// Tag applies additive and subtractive tag edits. An empty value
// removes the key. No version is archived and nothing is re-embedded.
// Returns nil when the document does not exist.
func (m *Memory) Tag(ctx context.Context, collection, id string, changes map[string]string) (*model.Record, error) {
	rec, err := m.docs.Get(ctx, collection, id)
	if err != nil || rec == nil {
		return nil, err
	}

	tags := model.CloneTags(rec.Tags)
	if tags == nil {
		tags = map[string]string{}
	}
	for k, v := range model.FilterSystemTags(changes) {
		if v == "" {
			delete(tags, k)
			continue
		}
		tags[k] = v
	}

	if err := m.docs.UpdateTags(ctx, collection, id, tags); err != nil {
		return nil, err
	}
	if err := m.vec.UpdateTags(ctx, collection, id, tags); err != nil {
		m.log.Warn("core: vector tag update failed",
			slog.String("id", id), slog.String("error", err.Error()))
	}
	return m.docs.Get(ctx, collection, id)
}

// Delete removes a document, its versions, its vectors and any pending
// summary work.
func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := m.docs.Delete(ctx, collection, id, true); err != nil {
		return err
	}
	if err := m.vec.Delete(ctx, collection, id, true); err != nil {
		m.log.Warn("core: vector delete failed",
			slog.String("id", id), slog.String("error", err.Error()))
	}
	return m.queue.Remove(ctx, collection, id)
}

// Revert undoes the last write: the most recently archived version is
// promoted back to current and its versioned vector moves to the base
// id. With no versions left, Revert deletes the document entirely.
func (m *Memory) Revert(ctx context.Context, collection, id string) (*model.Record, error) {
	promoted, err := m.docs.VersionCount(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	rec, err := m.docs.RestoreLatestVersion(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, m.Delete(ctx, collection, id)
	}

	emb, err := m.vec.GetEmbedding(ctx, collection, model.VersionKey(id, promoted))
	if err != nil {
		return nil, err
	}
	if emb == nil {
		// No archived vector survived; fall back to embedding the
		// restored summary so the base entry stays queryable.
		if emb, err = m.embed(ctx, rec.Summary); err != nil {
			return nil, fmt.Errorf("revert %s: %w", id, err)
		}
	}
	if err := m.vec.Upsert(ctx, collection, id, emb, rec.Summary, rec.Tags); err != nil {
		return nil, err
	}
	if err := m.vec.DeleteVersion(ctx, collection, id, promoted); err != nil {
		m.log.Warn("core: versioned vector not removed on revert",
			slog.String("id", id), slog.String("error", err.Error()))
	}
	return rec, nil
}

// placeholder truncates s to max runes, marking the cut. Text at or
// under the limit passes through verbatim.
func placeholder(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// Now returns the current time; split out for test clocks.
var now = time.Now
