// Package vector implements the per-collection vector index on top of
// chromem-go, a pure-Go embedded vector database with a persistent
// directory layout. IDs mirror the document store; archived versions live
// under synthetic "{id}@v{n}" keys.
package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/keepstore/keep/internal/model"
)

// Reserved metadata keys managed by the index itself. Everything else in a
// document's metadata is its tag map.
const (
	metaUpdated     = "_updated"
	metaUpdatedDate = "_updated_date"
	metaCreated     = "_created"
	metaVersion     = "_version"
	metaBaseID      = "_base_id"
)

const timeLayout = time.RFC3339Nano

// DimensionError reports an embedding whose dimension disagrees with the
// dimension recorded for the collection. This is a configuration problem,
// not a data problem.
type DimensionError struct {
	Collection string
	Want, Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector: collection %q expects %d-dimensional embeddings, got %d",
		e.Collection, e.Want, e.Got)
}

// Index is the chromem-backed vector store.
type Index struct {
	db  *chromem.DB
	dir string

	mu   sync.Mutex
	dims map[string]int // fixed per collection on first write
}

// Open opens or creates the persistent index under dir.
func Open(dir string) (*Index, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("vector: open %s: %w", dir, err)
	}
	ix := &Index{db: db, dir: dir, dims: map[string]int{}}
	if err := ix.loadDims(); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *Index) dimsPath() string {
	return filepath.Join(ix.dir, "dimensions.json")
}

func (ix *Index) loadDims() error {
	data, err := os.ReadFile(ix.dimsPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("vector: read dimensions: %w", err)
	}
	return json.Unmarshal(data, &ix.dims)
}

func (ix *Index) saveDims() error {
	data, _ := json.Marshal(ix.dims)
	return os.WriteFile(ix.dimsPath(), data, 0o644)
}

// Dimension returns the recorded dimension for a collection, 0 if unknown.
func (ix *Index) Dimension(collection string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.dims[collection]
}

// checkDim fixes the collection dimension on first write and rejects any
// later disagreement.
func (ix *Index) checkDim(collection string, got int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	want, ok := ix.dims[collection]
	if !ok {
		ix.dims[collection] = got
		return ix.saveDims()
	}
	if want != got {
		return &DimensionError{Collection: collection, Want: want, Got: got}
	}
	return nil
}

func (ix *Index) collection(name string) (*chromem.Collection, error) {
	col, err := ix.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector: collection %q: %w", name, err)
	}
	return col, nil
}

func buildMetadata(tags map[string]string, created time.Time, now time.Time) map[string]string {
	meta := make(map[string]string, len(tags)+3)
	for k, v := range tags {
		meta[k] = v
	}
	meta[metaUpdated] = now.UTC().Format(timeLayout)
	meta[metaUpdatedDate] = now.UTC().Format("2006-01-02")
	meta[metaCreated] = created.UTC().Format(timeLayout)
	return meta
}

func recordFromMeta(id, collection, content string, meta map[string]string, score float64) *model.Record {
	rec := &model.Record{
		ID:         id,
		Collection: collection,
		Summary:    content,
		Tags:       map[string]string{},
		Score:      score,
	}
	for k, v := range meta {
		switch k {
		case metaUpdated:
			rec.UpdatedAt, _ = time.Parse(timeLayout, v)
		case metaCreated:
			rec.CreatedAt, _ = time.Parse(timeLayout, v)
		case metaUpdatedDate, metaVersion, metaBaseID:
		default:
			rec.Tags[k] = v
		}
	}
	return rec
}

// Upsert stores the current embedding, summary and tags under id. The
// creation timestamp is preserved across rewrites.
func (ix *Index) Upsert(ctx context.Context, collection, id string, embedding []float32, summary string, tags map[string]string) error {
	if err := ix.checkDim(collection, len(embedding)); err != nil {
		return err
	}
	col, err := ix.collection(collection)
	if err != nil {
		return err
	}

	now := time.Now()
	created := now
	if prev, err := col.GetByID(ctx, id); err == nil {
		if s, ok := prev.Metadata[metaCreated]; ok {
			if t, perr := time.Parse(timeLayout, s); perr == nil {
				created = t
			}
		}
	}

	doc := chromem.Document{
		ID:        id,
		Content:   summary,
		Embedding: embedding,
		Metadata:  buildMetadata(tags, created, now),
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("vector: upsert %s: %w", id, err)
	}
	return nil
}

// UpsertVersion writes under the synthetic versioned key with metadata
// linking back to the base document.
func (ix *Index) UpsertVersion(ctx context.Context, collection, id string, version int, embedding []float32, summary string, tags map[string]string) error {
	if err := ix.checkDim(collection, len(embedding)); err != nil {
		return err
	}
	col, err := ix.collection(collection)
	if err != nil {
		return err
	}

	meta := buildMetadata(tags, time.Now(), time.Now())
	meta[metaVersion] = strconv.Itoa(version)
	meta[metaBaseID] = id

	doc := chromem.Document{
		ID:        model.VersionKey(id, version),
		Content:   summary,
		Embedding: embedding,
		Metadata:  meta,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("vector: upsert version %s@v%d: %w", id, version, err)
	}
	return nil
}

// UpdateSummary replaces the stored document text without re-embedding.
func (ix *Index) UpdateSummary(ctx context.Context, collection, id, summary string) error {
	col, err := ix.collection(collection)
	if err != nil {
		return err
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("vector: update summary %s: %w", id, err)
	}
	doc.Content = summary
	return col.AddDocument(ctx, doc)
}

// UpdateTags replaces the tag portion of the metadata and bumps _updated.
func (ix *Index) UpdateTags(ctx context.Context, collection, id string, tags map[string]string) error {
	col, err := ix.collection(collection)
	if err != nil {
		return err
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("vector: update tags %s: %w", id, err)
	}

	created := time.Now()
	if s, ok := doc.Metadata[metaCreated]; ok {
		if t, perr := time.Parse(timeLayout, s); perr == nil {
			created = t
		}
	}
	meta := buildMetadata(tags, created, time.Now())
	if v, ok := doc.Metadata[metaVersion]; ok {
		meta[metaVersion] = v
	}
	if v, ok := doc.Metadata[metaBaseID]; ok {
		meta[metaBaseID] = v
	}
	doc.Metadata = meta
	return col.AddDocument(ctx, doc)
}

// Get returns the stored record for id, or nil when absent.
func (ix *Index) Get(ctx context.Context, collection, id string) (*model.Record, error) {
	col, err := ix.collection(collection)
	if err != nil {
		return nil, err
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return nil, nil
	}
	return recordFromMeta(doc.ID, collection, doc.Content, doc.Metadata, 0), nil
}

// GetEmbedding returns the stored embedding for id, or nil when absent.
func (ix *Index) GetEmbedding(ctx context.Context, collection, id string) ([]float32, error) {
	col, err := ix.collection(collection)
	if err != nil {
		return nil, err
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return nil, nil
	}
	return doc.Embedding, nil
}

// Exists reports whether id is present in the index.
func (ix *Index) Exists(ctx context.Context, collection, id string) (bool, error) {
	emb, err := ix.GetEmbedding(ctx, collection, id)
	return emb != nil, err
}

// ListIDs returns the current (unversioned) IDs in a collection.
func (ix *Index) ListIDs(ctx context.Context, collection string) ([]string, error) {
	results, err := ix.allDocs(ctx, collection, nil)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, r := range results {
		if _, v := model.SplitVersionKey(r.ID); v == 0 {
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of current documents in the index.
func (ix *Index) Count(ctx context.Context, collection string) (int, error) {
	ids, err := ix.ListIDs(ctx, collection)
	return len(ids), err
}

// QueryEmbedding performs k-nearest retrieval. The similarity score
// surfaced on each record is 1/(1+d) for the L2 distance d between the
// query and the stored embedding, so it always lands in (0, 1].
func (ix *Index) QueryEmbedding(ctx context.Context, collection string, embedding []float32, limit int, where map[string]string) ([]*model.Record, error) {
	if dim := ix.Dimension(collection); dim != 0 && dim != len(embedding) {
		return nil, &DimensionError{Collection: collection, Want: dim, Got: len(embedding)}
	}
	col, err := ix.collection(collection)
	if err != nil {
		return nil, err
	}
	results, err := queryShrinking(ctx, col, embedding, limit, where, nil)
	if err != nil {
		return nil, err
	}

	records := make([]*model.Record, 0, len(results))
	for _, r := range results {
		score := l2Score(embedding, r.Embedding)
		records = append(records, recordFromMeta(r.ID, collection, r.Content, r.Metadata, score))
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Score > records[j].Score })
	return records, nil
}

// QueryMetadata returns documents whose metadata matches every pair in
// where, ordered by last update. No similarity is involved.
func (ix *Index) QueryMetadata(ctx context.Context, collection string, where map[string]string, limit int) ([]*model.Record, error) {
	results, err := ix.allDocs(ctx, collection, where)
	if err != nil {
		return nil, err
	}
	records := make([]*model.Record, 0, len(results))
	for _, r := range results {
		records = append(records, recordFromMeta(r.ID, collection, r.Content, r.Metadata, 0))
	}
	sortByUpdated(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// QueryFulltext performs substring search over the stored summaries (the
// summary is what is embedded and indexed, not the original content).
func (ix *Index) QueryFulltext(ctx context.Context, collection, query string, limit int, where map[string]string) ([]*model.Record, error) {
	results, err := ix.allDocs(ctx, collection, where)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	var records []*model.Record
	for _, r := range results {
		if _, v := model.SplitVersionKey(r.ID); v != 0 {
			continue
		}
		if !strings.Contains(strings.ToLower(r.Content), needle) {
			continue
		}
		records = append(records, recordFromMeta(r.ID, collection, r.Content, r.Metadata, 0))
	}
	sortByUpdated(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Delete removes the current entry and, optionally, every archived
// version of it.
func (ix *Index) Delete(ctx context.Context, collection, id string, deleteVersions bool) error {
	col, err := ix.collection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("vector: delete %s: %w", id, err)
	}
	if deleteVersions {
		if err := col.Delete(ctx, map[string]string{metaBaseID: id}, nil); err != nil {
			return fmt.Errorf("vector: delete versions of %s: %w", id, err)
		}
	}
	return nil
}

// DeleteVersion removes a single archived version entry.
func (ix *Index) DeleteVersion(ctx context.Context, collection, id string, version int) error {
	col, err := ix.collection(collection)
	if err != nil {
		return err
	}
	return col.Delete(ctx, nil, nil, model.VersionKey(id, version))
}

// allDocs scans a collection through the query API. chromem has no listing
// primitive, so we query with a unit probe vector and the collection size.
func (ix *Index) allDocs(ctx context.Context, collection string, where map[string]string) ([]chromem.Result, error) {
	col, err := ix.collection(collection)
	if err != nil {
		return nil, err
	}
	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	dim := ix.Dimension(collection)
	if dim == 0 {
		return nil, fmt.Errorf("vector: collection %q has documents but no recorded dimension", collection)
	}
	probe := make([]float32, dim)
	probe[0] = 1
	return queryShrinking(ctx, col, probe, n, where, nil)
}

// queryShrinking retries with smaller result counts until the request fits
// the number of (filtered) documents. chromem rejects nResults larger than
// the candidate set.
func queryShrinking(ctx context.Context, col *chromem.Collection, embedding []float32, limit int, where, whereDocument map[string]string) ([]chromem.Result, error) {
	if n := col.Count(); limit > n {
		limit = n
	}
	for n := limit; n >= 1; n-- {
		results, err := col.QueryEmbedding(ctx, embedding, n, where, whereDocument)
		if err == nil {
			return results, nil
		}
		if !strings.Contains(err.Error(), "nResults") {
			return nil, fmt.Errorf("vector: query: %w", err)
		}
	}
	return nil, nil
}

func l2Score(a, b []float32) float64 {
	var sum float64
	for i := range a {
		if i >= len(b) {
			break
		}
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return 1 / (1 + math.Sqrt(sum))
}

func sortByUpdated(records []*model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
}
