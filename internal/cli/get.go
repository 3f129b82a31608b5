package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Retrieve a document",
		Long:  "Retrieve a document by ID. --version 1 is the most recent archived version, 2 the one before it; 0 is the current document.",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	cmd.Flags().Int("version", 0, "Archived version offset (1 = most recent archive)")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	offset, _ := cmd.Flags().GetInt("version")

	m := openMemory()
	defer m.Close()

	rec, err := m.GetVersion(cmd.Context(), collectionFlag, args[0], offset)
	if err != nil {
		exitErr("get", err)
	}
	if rec == nil {
		exitErr("get", fmt.Errorf("document %s not found", args[0]))
	}
	printRecord(rec)
}
