package provider

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

type releaseTracker struct {
	*MockEmbedder
	released bool
}

func (r *releaseTracker) Release() error {
	r.released = true
	return nil
}

func TestLockedEmbedderLazyLoad(t *testing.T) {
	ctx := context.Background()
	lockPath := filepath.Join(t.TempDir(), "model.lock")

	loads := 0
	inner := &releaseTracker{MockEmbedder: NewMockEmbedder()}
	e := NewLockedEmbedder(lockPath, "test-model", 384, func() (Embedder, error) {
		loads++
		return inner, nil
	})

	if loads != 0 {
		t.Fatal("model loaded before first use")
	}
	if e.ModelName() != "test-model" || e.Dimension() != 384 {
		t.Error("identity should be available without loading")
	}

	if _, err := e.Embed(ctx, "x"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	e.Embed(ctx, "y")
	if loads != 1 {
		t.Errorf("model loaded %d times, want 1", loads)
	}

	if err := e.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !inner.released {
		t.Error("inner provider not released")
	}
	// Idempotent.
	if err := e.Release(); err != nil {
		t.Errorf("second release: %v", err)
	}

	// Next use reloads.
	if _, err := e.Embed(ctx, "z"); err != nil {
		t.Fatalf("embed after release: %v", err)
	}
	if loads != 2 {
		t.Errorf("expected reload after release, loads = %d", loads)
	}
}

func TestLockedEmbedderFactoryError(t *testing.T) {
	ctx := context.Background()
	lockPath := filepath.Join(t.TempDir(), "model.lock")

	e := NewLockedEmbedder(lockPath, "broken", 1, func() (Embedder, error) {
		return nil, fmt.Errorf("weights missing")
	})
	if _, err := e.Embed(ctx, "x"); err == nil {
		t.Fatal("expected factory error")
	}
	// The lock must have been dropped so a retry can acquire it.
	if _, err := e.Embed(ctx, "x"); err == nil {
		t.Fatal("expected factory error on retry")
	}
}

func TestLockedSummarizer(t *testing.T) {
	ctx := context.Background()
	lockPath := filepath.Join(t.TempDir(), "model.lock")

	loads := 0
	s := NewLockedSummarizer(lockPath, "test-sum", func() (Summarizer, error) {
		loads++
		return NewMockSummarizer(), nil
	})

	got, err := s.Summarize(ctx, SummarizeRequest{Content: "some content", MaxLength: 100})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got != "some content" {
		t.Errorf("unexpected summary %q", got)
	}
	s.Summarize(ctx, SummarizeRequest{Content: "more", MaxLength: 100})
	if loads != 1 {
		t.Errorf("summarizer loaded %d times, want 1", loads)
	}
	if err := s.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}
