package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a document and its history",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	m := openMemory()
	defer m.Close()

	if err := m.Delete(cmd.Context(), collectionFlag, args[0]); err != nil {
		exitErr("rm", err)
	}
	fmt.Printf("deleted %s\n", args[0])
}
