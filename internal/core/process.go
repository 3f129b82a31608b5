package core

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/keepstore/keep/internal/model"
	"github.com/keepstore/keep/internal/provider"
)

// MaxSummaryAttempts bounds retries per pending item. Items past the
// bound are abandoned: their truncated placeholder becomes the
// permanent summary.
const MaxSummaryAttempts = 5

// topicNeighborLimit caps how many tag-sharing neighbors feed the
// summarization context.
const topicNeighborLimit = 5

// tagMatchBoost is the per-shared-tag score multiplier applied when
// selecting context neighbors.
const tagMatchBoost = 0.2

// ProcessPending drains up to limit items from the summary queue.
// Failures never propagate: a failed item keeps its queue entry and
// its bumped attempt counter, and the loop moves on.
func (m *Memory) ProcessPending(ctx context.Context, limit int) (int, error) {
	if m.summarizer == nil {
		return 0, nil
	}
	items, err := m.queue.Dequeue(ctx, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if item.Attempts > MaxSummaryAttempts {
			m.log.Warn("core: abandoning pending summary",
				slog.String("id", item.ID), slog.Int("attempts", item.Attempts))
			m.queue.Complete(ctx, item.Collection, item.ID, item.Attempts)
			continue
		}
		rec, err := m.docs.Get(ctx, item.Collection, item.ID)
		if err != nil || rec == nil {
			// Deleted since enqueue; nothing to summarize.
			m.queue.Complete(ctx, item.Collection, item.ID, item.Attempts)
			continue
		}

		summary, err := m.summarizer.Summarize(ctx, provider.SummarizeRequest{
			Content:   item.Content,
			MaxLength: m.cfg.MaxSummaryLength,
			Context:   m.topicContext(ctx, item.Collection, item.ID, rec),
		})
		if err != nil {
			m.log.Warn("core: summarization failed",
				slog.String("id", item.ID), slog.Int("attempts", item.Attempts),
				slog.String("error", err.Error()))
			continue
		}

		if err := m.docs.UpdateSummary(ctx, item.Collection, item.ID, summary); err != nil {
			m.log.Warn("core: summary store update failed",
				slog.String("id", item.ID), slog.String("error", err.Error()))
			continue
		}
		// Replaces the indexed text only; the embedding stays the
		// content embedding.
		if err := m.vec.UpdateSummary(ctx, item.Collection, item.ID, summary); err != nil {
			m.log.Warn("core: summary vector update failed",
				slog.String("id", item.ID), slog.String("error", err.Error()))
		}
		m.queue.Complete(ctx, item.Collection, item.ID, item.Attempts)
		processed++
	}
	return processed, nil
}

// topicContext builds the "Related topics" hint handed to the
// summarizer: distinct user-tag values from neighbors that are both
// vector-similar and share at least one user tag with the document.
// Raw neighbor summaries are deliberately absent; small summarization
// models parrot context text verbatim.
func (m *Memory) topicContext(ctx context.Context, collection, id string, rec *model.Record) string {
	userTags := model.UserTags(rec.Tags)
	if len(userTags) == 0 {
		return ""
	}
	emb, err := m.vec.GetEmbedding(ctx, collection, id)
	if err != nil || emb == nil {
		return ""
	}
	candidates, err := m.vec.QueryEmbedding(ctx, collection, emb, topicNeighborLimit*4, nil)
	if err != nil {
		return ""
	}

	var neighbors []*model.Record
	for _, cand := range candidates {
		if base, _ := model.SplitVersionKey(cand.ID); base == id {
			continue
		}
		shared := model.SharedUserTags(userTags, cand.Tags)
		if shared == 0 {
			continue
		}
		cand.Score *= 1 + tagMatchBoost*float64(shared)
		neighbors = append(neighbors, cand)
	}
	sort.SliceStable(neighbors, func(i, j int) bool { return neighbors[i].Score > neighbors[j].Score })
	if len(neighbors) > topicNeighborLimit {
		neighbors = neighbors[:topicNeighborLimit]
	}

	seen := map[string]bool{}
	var topics []string
	for _, n := range neighbors {
		for _, v := range model.UserTags(n.Tags) {
			if !seen[v] {
				seen[v] = true
				topics = append(topics, v)
			}
		}
	}
	if len(topics) == 0 {
		return ""
	}
	sort.Strings(topics)
	return "Related topics: " + strings.Join(topics, ", ")
}
