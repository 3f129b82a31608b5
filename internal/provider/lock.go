package provider

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/gofrs/flock"
)

// LockedEmbedder defers loading a local model until first use, and
// serializes that load behind an advisory file lock so concurrent
// processes never hold two copies of the weights. Release drops the
// model and forces a GC pass before the lock is given up, so the next
// holder does not load into memory still pinned by this process.
type LockedEmbedder struct {
	mu      sync.Mutex
	factory func() (Embedder, error)
	lock    *flock.Flock
	inner   Embedder
	name    string
	dims    int
}

// NewLockedEmbedder wraps factory behind the lock file at lockPath.
// name and dims describe the model before it is loaded, so identity
// checks never force a load.
func NewLockedEmbedder(lockPath, name string, dims int, factory func() (Embedder, error)) *LockedEmbedder {
	return &LockedEmbedder{
		factory: factory,
		lock:    flock.New(lockPath),
		name:    name,
		dims:    dims,
	}
}

// acquire takes the file lock (blocking) and constructs the inner
// embedder on first call. Callers hold e.mu.
func (e *LockedEmbedder) acquire() error {
	if e.inner != nil {
		return nil
	}
	if err := e.lock.Lock(); err != nil {
		return fmt.Errorf("acquire model lock %s: %w", e.lock.Path(), err)
	}
	inner, err := e.factory()
	if err != nil {
		e.lock.Unlock()
		return err
	}
	e.inner = inner
	return nil
}

func (e *LockedEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.acquire(); err != nil {
		return nil, err
	}
	return e.inner.Embed(ctx, text)
}

func (e *LockedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.acquire(); err != nil {
		return nil, err
	}
	return e.inner.EmbedBatch(ctx, texts)
}

func (e *LockedEmbedder) ModelName() string { return e.name }
func (e *LockedEmbedder) Dimension() int    { return e.dims }

// Release frees the model and then the lock, in that order.
func (e *LockedEmbedder) Release() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inner == nil {
		return nil
	}
	err := Release(e.inner)
	e.inner = nil
	runtime.GC()
	if uerr := e.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// LockedSummarizer is the summarizer counterpart of LockedEmbedder.
type LockedSummarizer struct {
	mu      sync.Mutex
	factory func() (Summarizer, error)
	lock    *flock.Flock
	inner   Summarizer
	name    string
}

// NewLockedSummarizer wraps factory behind the lock file at lockPath.
func NewLockedSummarizer(lockPath, name string, factory func() (Summarizer, error)) *LockedSummarizer {
	return &LockedSummarizer{
		factory: factory,
		lock:    flock.New(lockPath),
		name:    name,
	}
}

func (s *LockedSummarizer) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inner == nil {
		if err := s.lock.Lock(); err != nil {
			return "", fmt.Errorf("acquire model lock %s: %w", s.lock.Path(), err)
		}
		inner, err := s.factory()
		if err != nil {
			s.lock.Unlock()
			return "", err
		}
		s.inner = inner
	}
	return s.inner.Summarize(ctx, req)
}

func (s *LockedSummarizer) ModelName() string { return s.name }

// Release frees the model and then the lock, in that order.
func (s *LockedSummarizer) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inner == nil {
		return nil
	}
	err := Release(s.inner)
	s.inner = nil
	runtime.GC()
	if uerr := s.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}
