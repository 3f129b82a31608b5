package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/keepstore/keep/internal/worker"
)

// errorLogFile collects daemon output inside the store directory, since
// a detached daemon has no terminal to report to.
const errorLogFile = "errors.log"

func init() {
	cmd := &cobra.Command{
		Use:   "process-pending",
		Short: "Summarize queued documents",
		Long:  "Process the summarization queue. With --daemon, run the singleton background loop until the queue drains; without, process one batch in the foreground.",
		Run:   runProcessPending,
	}

	cmd.Flags().Bool("daemon", false, "Run the background daemon loop")
	cmd.Flags().IntP("batch", "b", worker.DefaultBatchSize, "Items per batch")

	RootCmd.AddCommand(cmd)
}

func runProcessPending(cmd *cobra.Command, args []string) {
	daemon, _ := cmd.Flags().GetBool("daemon")
	batch, _ := cmd.Flags().GetInt("batch")
	dir := storeDir()

	if !daemon {
		m := openMemory()
		defer m.Close()
		n, err := m.ProcessPending(cmd.Context(), batch)
		if err != nil {
			exitErr("process-pending", err)
		}
		fmt.Printf("processed %d\n", n)
		return
	}

	logger := newLogger()
	if f, err := os.OpenFile(filepath.Join(dir, errorLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
		defer f.Close()
		logger = slog.New(slog.NewTextHandler(io.MultiWriter(os.Stderr, f), nil))
	}

	if err := worker.Run(cmd.Context(), worker.Options{
		Dir:       dir,
		Logger:    logger,
		BatchSize: batch,
	}); err != nil {
		logger.Error("cli: daemon failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
