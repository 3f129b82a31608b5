package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "revert [id]",
		Short: "Restore the most recent archived version",
		Long:  "Replace the current document with its most recent archived version. Reverting a document with no archived versions deletes it.",
		Args:  cobra.ExactArgs(1),
		Run:   runRevert,
	}

	RootCmd.AddCommand(cmd)
}

func runRevert(cmd *cobra.Command, args []string) {
	m := openMemory()
	defer m.Close()

	rec, err := m.Revert(cmd.Context(), collectionFlag, args[0])
	if err != nil {
		exitErr("revert", err)
	}
	if rec == nil {
		fmt.Printf("deleted %s (no archived versions)\n", args[0])
		return
	}
	printRecord(rec)
}
