package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "find [query]",
		Short: "Search documents by meaning",
		Long:  "Embed the query and return the closest documents, ranked by similarity weighted with recency decay.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runFind,
	}

	cmd.Flags().IntP("limit", "l", 10, "Max results")
	cmd.Flags().String("since", "", "Only documents updated within this duration (e.g. 72h)")

	RootCmd.AddCommand(cmd)
}

func runFind(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	since := parseSince(cmd)
	query := strings.Join(args, " ")

	m := openMemory()
	defer m.Close()

	results, err := m.Find(cmd.Context(), collectionFlag, query, limit, since)
	if err != nil {
		exitErr("find", err)
	}
	printRecords(results)
}
