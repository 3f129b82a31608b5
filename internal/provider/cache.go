package provider

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	_ "modernc.org/sqlite"

	"github.com/keepstore/keep/internal/checksum"
)

// CacheStats reports embedding cache effectiveness for this process.
type CacheStats struct {
	Entries  int
	Hits     int64
	Misses   int64
	HitRate  float64
	Path     string
}

// CachedEmbedder wraps an Embedder with a two-level cache: a ristretto
// in-memory layer over a SQLite table that persists across runs.
// Entries are keyed by model name and exact text, so switching models
// never serves stale vectors.
type CachedEmbedder struct {
	inner  Embedder
	db     *sql.DB
	hot    *ristretto.Cache
	path   string
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedEmbedder opens (or creates) the cache database at path.
func NewCachedEmbedder(path string, inner Embedder) (*CachedEmbedder, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS embedding_cache (
		key        TEXT PRIMARY KEY,
		model      TEXT NOT NULL,
		vector     BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}

	hot, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     64 << 20,
		BufferItems: 64,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init hot cache: %w", err)
	}

	return &CachedEmbedder{inner: inner, db: db, hot: hot, path: path}, nil
}

func (c *CachedEmbedder) key(text string) string {
	return checksum.SumString(c.inner.ModelName() + "\x00" + text)
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	key := c.key(text)
	if vec := c.lookup(ctx, key); vec != nil {
		c.hits.Add(1)
		return vec, nil
	}
	c.misses.Add(1)

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if vec := c.lookup(ctx, c.key(t)); vec != nil {
			c.hits.Add(1)
			out[i] = vec
			continue
		}
		c.misses.Add(1)
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(vecs))
	}
	for i, vec := range vecs {
		out[missingIdx[i]] = vec
		c.store(ctx, c.key(missing[i]), vec)
	}
	return out, nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) Vector {
	if v, ok := c.hot.Get(key); ok {
		if vec, ok := v.(Vector); ok {
			return vec
		}
	}
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT vector FROM embedding_cache WHERE key = ?`, key).Scan(&blob)
	if err != nil {
		return nil
	}
	vec := decodeVector(blob)
	c.hot.Set(key, vec, int64(len(blob)))
	return vec
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec Vector) {
	blob := encodeVector(vec)
	c.hot.Set(key, vec, int64(len(blob)))
	// A failed persist only costs a future re-embed.
	c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embedding_cache (key, model, vector, created_at) VALUES (?, ?, ?, ?)`,
		key, c.inner.ModelName(), blob, time.Now().UTC().Format(time.RFC3339Nano))
}

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }
func (c *CachedEmbedder) Dimension() int    { return c.inner.Dimension() }

// Stats returns cache size and this process's hit counters.
func (c *CachedEmbedder) Stats(ctx context.Context) (*CacheStats, error) {
	var entries int
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embedding_cache`).Scan(&entries); err != nil {
		return nil, err
	}
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return &CacheStats{
		Entries: entries,
		Hits:    hits,
		Misses:  misses,
		HitRate: rate,
		Path:    c.path,
	}, nil
}

// Release drops the inner provider's resources. The cache itself stays
// usable for lookups that hit.
func (c *CachedEmbedder) Release() error {
	return Release(c.inner)
}

// Close releases the provider and closes both cache layers.
func (c *CachedEmbedder) Close() error {
	err := Release(c.inner)
	c.hot.Close()
	if cerr := c.db.Close(); err == nil {
		err = cerr
	}
	return err
}

func encodeVector(vec Vector) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) Vector {
	vec := make(Vector, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
