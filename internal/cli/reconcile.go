package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check the document store against the vector index",
		Long:  "Report documents missing from the vector index and orphaned vector entries. With --fix, re-embed the missing documents.",
		Run:   runReconcile,
	}

	cmd.Flags().Bool("fix", false, "Re-embed documents missing from the vector index")

	RootCmd.AddCommand(cmd)
}

func runReconcile(cmd *cobra.Command, args []string) {
	fix, _ := cmd.Flags().GetBool("fix")

	m := openMemory()
	defer m.Close()

	report, err := m.Reconcile(cmd.Context(), collectionFlag, fix)
	if err != nil {
		exitErr("reconcile", err)
	}
	printJSON(report)
}
