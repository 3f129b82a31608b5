package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show the summarization queue",
		Run:   runPending,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max queued items to list")

	RootCmd.AddCommand(cmd)
}

func runPending(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	m := openMemory()
	defer m.Close()

	stats, err := m.Queue().Stats(cmd.Context())
	if err != nil {
		exitErr("pending", err)
	}
	items, err := m.Queue().List(cmd.Context(), limit)
	if err != nil {
		exitErr("pending", err)
	}

	printJSON(map[string]any{
		"stats": stats,
		"items": items,
	})
}
