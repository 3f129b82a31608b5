package core

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/keepstore/keep/internal/model"
)

// reconcileParallelism bounds concurrent re-embeds during repair.
const reconcileParallelism = 4

// ReconcileReport describes divergence between the document store and
// the vector index.
type ReconcileReport struct {
	MissingFromVector []string `json:"missing_from_vector"`
	OrphanedInVector  []string `json:"orphaned_in_vector"`
	Fixed             int      `json:"fixed"`
}

// Reconcile compares the id sets of the two stores. With fix set,
// documents missing from the vector index are re-embedded; URI ids are
// re-fetched for their content, everything else embeds its stored
// summary. Orphaned vectors are reported, never auto-deleted.
func (m *Memory) Reconcile(ctx context.Context, collection string, fix bool) (*ReconcileReport, error) {
	docIDs, err := m.docs.ListIDs(ctx, collection)
	if err != nil {
		return nil, err
	}
	vecIDs, err := m.vec.ListIDs(ctx, collection)
	if err != nil {
		return nil, err
	}

	inDocs := make(map[string]bool, len(docIDs))
	for _, id := range docIDs {
		inDocs[id] = true
	}
	inVec := make(map[string]bool, len(vecIDs))
	for _, id := range vecIDs {
		inVec[id] = true
	}

	report := &ReconcileReport{}
	for _, id := range docIDs {
		if !inVec[id] {
			report.MissingFromVector = append(report.MissingFromVector, id)
		}
	}
	for _, id := range vecIDs {
		if !inDocs[id] {
			report.OrphanedInVector = append(report.OrphanedInVector, id)
		}
	}
	sort.Strings(report.MissingFromVector)
	sort.Strings(report.OrphanedInVector)

	if !fix || len(report.MissingFromVector) == 0 {
		return report, nil
	}

	if err := m.ensureIdentity(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileParallelism)
	for _, id := range report.MissingFromVector {
		g.Go(func() error {
			if err := m.repairVector(gctx, collection, id); err != nil {
				m.log.Warn("core: reconcile repair failed",
					slog.String("id", id), slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			report.Fixed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (m *Memory) repairVector(ctx context.Context, collection, id string) error {
	rec, err := m.docs.Get(ctx, collection, id)
	if err != nil || rec == nil {
		return err
	}

	text := rec.Summary
	if model.IsURI(id) {
		if fetched, err := m.fetch.Fetch(ctx, id); err == nil {
			text = string(fetched.Content)
		}
		// Unfetchable URIs degrade to embedding the stored summary.
	}
	emb, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return m.vec.Upsert(ctx, collection, id, emb, rec.Summary, rec.Tags)
}
