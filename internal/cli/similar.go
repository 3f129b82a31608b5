package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "similar [id]",
		Short: "Find documents similar to an existing one",
		Args:  cobra.ExactArgs(1),
		Run:   runSimilar,
	}

	cmd.Flags().IntP("limit", "l", 10, "Max results")
	cmd.Flags().String("since", "", "Only documents updated within this duration")
	cmd.Flags().Bool("self", false, "Include the anchor document itself")

	RootCmd.AddCommand(cmd)
}

func runSimilar(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	includeSelf, _ := cmd.Flags().GetBool("self")
	since := parseSince(cmd)

	m := openMemory()
	defer m.Close()

	results, err := m.FindSimilar(cmd.Context(), collectionFlag, args[0], limit, since, includeSelf)
	if err != nil {
		exitErr("similar", err)
	}
	printRecords(results)
}
