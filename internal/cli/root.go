// Package cli implements the keep CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/keepstore/keep/internal/config"
	"github.com/keepstore/keep/internal/core"
	"github.com/keepstore/keep/internal/model"
	"github.com/keepstore/keep/internal/worker"
)

var (
	storeFlag      string
	collectionFlag string
	formatFlag     string
	verboseFlag    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "keep",
	Short: "Reflective memory store",
	Long:  "A local, persistent memory store. Content-addressed documents with vector search, versioning, and lazy background summarization. Single binary, SQLite-backed.",
}

func init() {
	godotenv.Load()

	RootCmd.PersistentFlags().StringVarP(&storeFlag, "store", "s", "", "Store directory (default: $KEEP_HOME or nearest .keep)")
	RootCmd.PersistentFlags().StringVarP(&collectionFlag, "collection", "c", core.DefaultCollection, "Collection name")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log operational events to stderr")
}

func storeDir() string {
	if storeFlag != "" {
		return storeFlag
	}
	dir, err := config.Discover()
	if err != nil {
		exitErr("resolve store", err)
	}
	return dir
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openMemory() *core.Memory {
	m, err := core.Open(storeDir(), core.Options{
		Logger:      newLogger(),
		SpawnWorker: worker.Spawn,
	})
	if err != nil {
		exitErr("open store", err)
	}
	return m
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// parseTags turns repeated key=value flags into a tag map. An empty
// value ("key=") is kept, since it means removal on tag updates.
func parseTags(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	tags := map[string]string{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			exitErr("parse tag", fmt.Errorf("expected key=value, got %q", p))
		}
		tags[k] = v
	}
	return tags
}

// parseSince converts a --since duration flag into an absolute cutoff.
func parseSince(cmd *cobra.Command) *time.Time {
	raw, _ := cmd.Flags().GetString("since")
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		exitErr("parse since", err)
	}
	t := time.Now().Add(-d)
	return &t
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func printRecord(r *model.Record) {
	if formatFlag == "text" {
		fmt.Println(recordLine(r))
		return
	}
	printJSON(r)
}

func printRecords(records []*model.Record) {
	if formatFlag == "text" {
		for _, r := range records {
			fmt.Println(recordLine(r))
		}
		return
	}
	if len(records) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(records)
}

func recordLine(r *model.Record) string {
	summary, _, _ := strings.Cut(r.Summary, "\n")
	if r.Score > 0 {
		return fmt.Sprintf("%s\t%.3f\t%s", r.ID, r.Score, summary)
	}
	return fmt.Sprintf("%s\t%s", r.ID, summary)
}
