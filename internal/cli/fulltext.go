package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "fulltext [query]",
		Short: "Search summaries by exact text",
		Args:  cobra.MinimumNArgs(1),
		Run:   runFulltext,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().String("since", "", "Only documents updated within this duration")

	RootCmd.AddCommand(cmd)
}

func runFulltext(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	since := parseSince(cmd)

	m := openMemory()
	defer m.Close()

	results, err := m.QueryFulltext(cmd.Context(), collectionFlag, strings.Join(args, " "), limit, since)
	if err != nil {
		exitErr("fulltext", err)
	}
	printRecords(results)
}
