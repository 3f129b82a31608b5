package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "versions [id]",
		Short: "List a document's archived versions",
		Args:  cobra.ExactArgs(1),
		Run:   runVersions,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max versions")
	cmd.Flags().Int("around", 0, "Show versions on either side of this internal version number")

	RootCmd.AddCommand(cmd)
}

func runVersions(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	around, _ := cmd.Flags().GetInt("around")

	m := openMemory()
	defer m.Close()

	if around > 0 {
		nav, err := m.GetVersionNav(cmd.Context(), collectionFlag, args[0], around, limit)
		if err != nil {
			exitErr("versions", err)
		}
		printJSON(nav)
		return
	}

	versions, err := m.ListVersions(cmd.Context(), collectionFlag, args[0], limit)
	if err != nil {
		exitErr("versions", err)
	}
	printJSON(versions)
}
