package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keepstore/keep/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently touched documents",
		Run:   runRecent,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().String("since", "", "Only documents updated within this duration")
	cmd.Flags().String("by", "updated", "Order by: updated or accessed")

	RootCmd.AddCommand(cmd)
}

func runRecent(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	by, _ := cmd.Flags().GetString("by")
	since := parseSince(cmd)

	var order store.OrderBy
	switch by {
	case "updated":
		order = store.OrderByUpdated
	case "accessed":
		order = store.OrderByAccessed
	default:
		exitErr("recent", fmt.Errorf("unknown order %q (want updated or accessed)", by))
	}

	m := openMemory()
	defer m.Close()

	results, err := m.ListRecent(cmd.Context(), collectionFlag, limit, since, order)
	if err != nil {
		exitErr("recent", err)
	}
	printRecords(results)
}
