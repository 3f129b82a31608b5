// Package worker runs the background summarization daemon and the
// spawn protocol that keeps it a singleton per store. The processor
// lock, not the PID file, enforces the singleton; the PID file is
// informational only.
package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"

	"github.com/keepstore/keep/internal/core"
)

// Lock and status files inside the store directory.
const (
	ProcessorLockFile = ".processor.lock"
	SpawnLockFile     = ".processor_spawn.lock"
	PIDFile           = "processor.pid"
)

// DefaultBatchSize is how many queue items one loop iteration claims.
const DefaultBatchSize = 50

// idlePoll is how long the daemon waits before re-checking an empty
// queue once, catching items enqueued during the final drain.
const idlePoll = 2 * time.Second

// Options configures a daemon run.
type Options struct {
	Dir       string
	Logger    *slog.Logger
	BatchSize int

	// OpenMemory opens the store; defaults to core.Open with the
	// configured providers.
	OpenMemory func(dir string, logger *slog.Logger) (*core.Memory, error)
}

// Run executes the daemon loop until the queue drains or a shutdown
// signal arrives. If another daemon already holds the processor lock,
// Run returns immediately with no error.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	open := opts.OpenMemory
	if open == nil {
		open = func(dir string, logger *slog.Logger) (*core.Memory, error) {
			return core.Open(dir, core.Options{Logger: logger})
		}
	}

	lock := flock.New(filepath.Join(opts.Dir, ProcessorLockFile))
	held, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("worker: processor lock: %w", err)
	}
	if !held {
		return nil
	}
	// The lock outlives every other resource: providers are released by
	// m.Close() before the deferred unlock runs.
	defer lock.Unlock()

	runID := ulid.Make()
	pidPath := filepath.Join(opts.Dir, PIDFile)
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d %s\n", os.Getpid(), runID)), 0o644); err != nil {
		logger.Warn("worker: pid file not written", slog.String("error", err.Error()))
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	m, err := open(opts.Dir, logger)
	if err != nil {
		return fmt.Errorf("worker: open store: %w", err)
	}
	defer m.Close()

	logger.Info("worker: started",
		slog.String("run", runID.String()), slog.String("store", opts.Dir))

	idled := false
	for {
		if ctx.Err() != nil {
			logger.Info("worker: shutdown requested")
			break
		}
		n, err := m.ProcessPending(ctx, batch)
		if err != nil {
			logger.Warn("worker: batch failed", slog.String("error", err.Error()))
		}
		if n > 0 {
			logger.Info("worker: batch complete", slog.Int("processed", n))
			idled = false
			continue
		}
		pending, err := m.Queue().Count(ctx)
		if err != nil || pending == 0 {
			if idled {
				break
			}
			idled = true
			select {
			case <-ctx.Done():
			case <-time.After(idlePoll):
			}
			continue
		}
		// Items remain but none progressed (provider down, or all items
		// failing). Back off rather than spin.
		select {
		case <-ctx.Done():
		case <-time.After(idlePoll):
		}
	}

	logger.Info("worker: exiting", slog.String("run", runID.String()))
	return nil
}
