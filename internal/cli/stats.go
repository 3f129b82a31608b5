package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	m := openMemory()
	defer m.Close()

	ctx := cmd.Context()
	out := map[string]any{
		"store":    m.Dir(),
		"identity": m.Config().Identity,
	}

	if names, err := m.ListCollections(ctx); err == nil {
		counts := map[string]int{}
		for _, name := range names {
			if n, err := m.Count(ctx, name); err == nil {
				counts[name] = n
			}
		}
		out["documents"] = counts
	}
	if qs, err := m.Queue().Stats(ctx); err == nil {
		out["queue"] = qs
	}
	if cs, err := m.CacheStats(ctx); err == nil {
		out["cache"] = cs
	}

	printJSON(out)
}
