package worker

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Spawn launches a detached daemon for the store unless one is already
// running or being spawned. The spawn lock serializes the decision;
// the processor lock is only probed, never held, so the actual
// singleton guarantee stays with the daemon itself.
func Spawn(dir string) error {
	spawnLock := flock.New(filepath.Join(dir, SpawnLockFile))
	held, err := spawnLock.TryLock()
	if err != nil {
		return fmt.Errorf("worker: spawn lock: %w", err)
	}
	if !held {
		// Another process is mid-spawn; its daemon will see our queue
		// entry.
		return nil
	}
	defer spawnLock.Unlock()

	processor := flock.New(filepath.Join(dir, ProcessorLockFile))
	free, err := processor.TryLock()
	if err != nil {
		return fmt.Errorf("worker: probe processor lock: %w", err)
	}
	if !free {
		return nil
	}
	// Probe only: give the lock back before the child races for it.
	if err := processor.Unlock(); err != nil {
		return fmt.Errorf("worker: release probe lock: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("worker: resolve executable: %w", err)
	}
	cmd := exec.Command(exe, "process-pending", "--daemon", "--store", dir)
	cmd.SysProcAttr = detachedProcAttr()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("worker: start daemon: %w", err)
	}
	return cmd.Process.Release()
}
