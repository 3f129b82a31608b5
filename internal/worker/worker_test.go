package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"github.com/keepstore/keep/internal/core"
	"github.com/keepstore/keep/internal/provider"
)

func openTestMemory(dir string, logger *slog.Logger) (*core.Memory, error) {
	return core.Open(dir, core.Options{
		Logger:     logger,
		Embedder:   provider.NewMockEmbedder(),
		Summarizer: provider.NewMockSummarizer(),
	})
}

func TestRunDrainsQueue(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m, err := openTestMemory(dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m.Config().MaxSummaryLength = 10
	rec, err := m.PutText(ctx, core.DefaultCollection, strings.Repeat("x", 100), "", nil, "")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n, _ := m.Queue().Count(ctx); n != 1 {
		t.Fatalf("expected queued item, got %d", n)
	}
	m.Close()

	err = Run(ctx, Options{Dir: dir, OpenMemory: openTestMemory, BatchSize: 10})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	m2, _ := openTestMemory(dir, nil)
	defer m2.Close()
	if n, _ := m2.Queue().Count(ctx); n != 0 {
		t.Errorf("queue not drained, %d left", n)
	}
	got, _ := m2.Get(ctx, core.DefaultCollection, rec.ID)
	if strings.HasSuffix(got.Summary, "…") {
		t.Errorf("placeholder not replaced: %q", got.Summary)
	}

	// PID file is informational and removed on exit.
	if _, err := os.Stat(filepath.Join(dir, PIDFile)); !os.IsNotExist(err) {
		t.Error("pid file left behind")
	}
}

func TestRunYieldsToExistingDaemon(t *testing.T) {
	dir := t.TempDir()

	lock := flock.New(filepath.Join(dir, ProcessorLockFile))
	held, err := lock.TryLock()
	if err != nil || !held {
		t.Fatalf("pre-acquire lock: %v", err)
	}
	defer lock.Unlock()

	opened := false
	err = Run(context.Background(), Options{
		Dir: dir,
		OpenMemory: func(dir string, logger *slog.Logger) (*core.Memory, error) {
			opened = true
			return openTestMemory(dir, logger)
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if opened {
		t.Error("second daemon must exit before opening the store")
	}
}

func TestSpawnProbeLeavesProcessorLockFree(t *testing.T) {
	dir := t.TempDir()

	// No daemon binary exists in tests; Spawn fails at process start,
	// but must have released the probe lock by then.
	Spawn(dir)

	lock := flock.New(filepath.Join(dir, ProcessorLockFile))
	held, err := lock.TryLock()
	if err != nil || !held {
		t.Fatalf("processor lock should be free after spawn attempt: %v", err)
	}
	lock.Unlock()
}
