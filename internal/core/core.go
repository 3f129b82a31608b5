// Package core orchestrates the document store, vector index, pending
// queue and providers behind the public memory operations. The two
// stores never reference each other; every multi-store operation is
// mediated here.
package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/keepstore/keep/internal/config"
	"github.com/keepstore/keep/internal/model"
	"github.com/keepstore/keep/internal/pending"
	"github.com/keepstore/keep/internal/provider"
	"github.com/keepstore/keep/internal/store"
	"github.com/keepstore/keep/internal/vector"
)

// DefaultCollection is used when the caller does not name one.
const DefaultCollection = "main"

// File names inside the store directory.
const (
	documentsFile   = "documents.db"
	vectorDir       = "chroma"
	cacheFile       = "embedding_cache.db"
	pendingFile     = "pending_summaries.db"
	embedLockFile   = ".embedding.lock"
	summaryLockFile = ".summarization.lock"
)

// Options tune how the store is opened.
type Options struct {
	// Logger receives operational events. Defaults to a discard logger.
	Logger *slog.Logger

	// SpawnWorker launches the background worker for the store directory.
	// Left nil, pending summaries wait for an explicit process-pending.
	SpawnWorker func(dir string) error

	// Embedder and Summarizer override the configured providers. Used by
	// tests and by callers embedding the core directly.
	Embedder   provider.Embedder
	Summarizer provider.Summarizer
}

// Memory is an open reflective memory store. It exclusively owns the
// underlying files; close it when done.
type Memory struct {
	dir    string
	cfg    *config.Config
	docs   *store.DocumentStore
	vec    *vector.Index
	queue  *pending.Queue
	log    *slog.Logger
	spawn  func(dir string) error
	fetch  provider.Fetcher

	embedder   provider.Embedder
	summarizer provider.Summarizer
	cache      *provider.CachedEmbedder

	idMu  sync.Mutex
	idOK  bool
	idErr error
}

// Open opens the store rooted at dir, creating it on first use.
func Open(dir string, opts Options) (*Memory, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	docs, err := store.Open(filepath.Join(dir, documentsFile))
	if err != nil {
		return nil, err
	}
	vec, err := vector.Open(filepath.Join(dir, vectorDir))
	if err != nil {
		docs.Close()
		return nil, err
	}
	queue, err := pending.Open(filepath.Join(dir, pendingFile))
	if err != nil {
		docs.Close()
		return nil, err
	}

	m := &Memory{
		dir:   dir,
		cfg:   cfg,
		docs:  docs,
		vec:   vec,
		queue: queue,
		log:   logger,
		spawn: opts.SpawnWorker,
		fetch: provider.NewFetcher(),
	}

	embedder := opts.Embedder
	if embedder == nil {
		embedder, err = newConfiguredEmbedder(cfg, dir)
		if err != nil {
			m.Close()
			return nil, err
		}
	}
	// The cache composes outside the lifecycle lock: cache hits must
	// never trigger model residency.
	m.cache, err = provider.NewCachedEmbedder(filepath.Join(dir, cacheFile), embedder)
	if err != nil {
		m.Close()
		return nil, err
	}
	m.embedder = m.cache

	m.summarizer = opts.Summarizer
	if m.summarizer == nil && cfg.Summarization.Name != "" {
		m.summarizer, err = provider.NewSummarizer(cfg.Summarization)
		if err != nil {
			m.Close()
			return nil, err
		}
	}
	return m, nil
}

// newConfiguredEmbedder builds the embedder named by the config. Local
// in-process models load lazily behind the lifecycle lock; remote APIs
// are constructed directly.
func newConfiguredEmbedder(cfg *config.Config, dir string) (provider.Embedder, error) {
	if !provider.IsLocal(cfg.Embedding.Name) {
		return provider.NewEmbedder(cfg.Embedding)
	}
	name := cfg.Embedding.Options["model"]
	if name == "" {
		name = "all-MiniLM-L6-v2"
	}
	dims := 384
	if d := cfg.Embedding.Options["dimension"]; d != "" {
		fmt.Sscanf(d, "%d", &dims)
	}
	pc := cfg.Embedding
	return provider.NewLockedEmbedder(
		filepath.Join(dir, embedLockFile), name, dims,
		func() (provider.Embedder, error) { return provider.NewEmbedder(pc) },
	), nil
}

// Dir returns the store directory.
func (m *Memory) Dir() string { return m.dir }

// Config returns the loaded store configuration.
func (m *Memory) Config() *config.Config { return m.cfg }

// Queue exposes the pending-summary queue for status display.
func (m *Memory) Queue() *pending.Queue { return m.queue }

// CacheStats reports embedding-cache effectiveness.
func (m *Memory) CacheStats(ctx context.Context) (*provider.CacheStats, error) {
	return m.cache.Stats(ctx)
}

// Close releases providers, then file handles. Model resources are
// freed before any lock is dropped.
func (m *Memory) Close() error {
	var first error
	if m.cache != nil {
		first = m.cache.Close()
	}
	if m.summarizer != nil {
		if err := provider.Release(m.summarizer); err != nil && first == nil {
			first = err
		}
	}
	if m.queue != nil {
		if err := m.queue.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := m.docs.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// ensureIdentity pins the store to the configured embedding provider
// before the first embedding of this process. A mismatch is a hard
// error and is never auto-repaired.
func (m *Memory) ensureIdentity() error {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	if m.idOK || m.idErr != nil {
		return m.idErr
	}
	current := model.EmbeddingIdentity{
		Provider:  m.cfg.Embedding.Name,
		Model:     m.embedder.ModelName(),
		Dimension: m.embedder.Dimension(),
	}
	if current.Provider == "" {
		current.Provider = m.embedder.ModelName()
	}
	m.idErr = m.cfg.EnsureIdentity(m.dir, current)
	m.idOK = m.idErr == nil
	return m.idErr
}

func (m *Memory) embed(ctx context.Context, text string) ([]float32, error) {
	if err := m.ensureIdentity(); err != nil {
		return nil, err
	}
	return m.embedder.Embed(ctx, text)
}

// spawnWorker asks the adapter to launch the background worker. The
// queue entry is already durable, so a failed spawn only delays the
// summary until the next invocation.
func (m *Memory) spawnWorker() {
	if m.spawn == nil {
		return
	}
	if err := m.spawn(m.dir); err != nil {
		m.log.Warn("core: worker spawn failed", slog.String("error", err.Error()))
	}
}
