package provider

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// countingEmbedder tracks how many times the backend is actually hit.
type countingEmbedder struct {
	*MockEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	c.calls.Add(1)
	return c.MockEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	c.calls.Add(int64(len(texts)))
	return embedSequential(ctx, c.MockEmbedder, texts)
}

func newTestCache(t *testing.T, dir string) (*CachedEmbedder, *countingEmbedder) {
	t.Helper()
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder()}
	c, err := NewCachedEmbedder(filepath.Join(dir, "cache.db"), inner)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, inner
}

func TestCachedEmbedderHit(t *testing.T) {
	ctx := context.Background()
	c, inner := newTestCache(t, t.TempDir())

	first, err := c.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	second, err := c.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("backend called %d times, want 1", inner.calls.Load())
	}
	if CosineSimilarity(first, second) < 0.999 {
		t.Error("cached vector differs from original")
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestCachedEmbedderPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c1, _ := newTestCache(t, dir)
	want, err := c1.Embed(ctx, "persist me")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	c1.Close()

	c2, inner2 := newTestCache(t, dir)
	got, err := c2.Embed(ctx, "persist me")
	if err != nil {
		t.Fatalf("embed after reopen: %v", err)
	}
	if inner2.calls.Load() != 0 {
		t.Errorf("backend hit despite persisted cache entry")
	}
	if CosineSimilarity(want, got) < 0.999 {
		t.Error("persisted vector does not round-trip")
	}
}

func TestCachedEmbedderBatchMixed(t *testing.T) {
	ctx := context.Background()
	c, inner := newTestCache(t, t.TempDir())

	c.Embed(ctx, "a")
	inner.calls.Store(0)

	vecs, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if inner.calls.Load() != 2 {
		t.Errorf("backend should only see the 2 misses, saw %d", inner.calls.Load())
	}
	for i, v := range vecs {
		if len(v) == 0 {
			t.Errorf("vector %d empty", i)
		}
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	in := Vector{0.5, -1.25, 3e-7, 0}
	out := decodeVector(encodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, in[i], out[i])
		}
	}
}
