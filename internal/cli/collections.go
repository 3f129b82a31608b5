package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List collections",
		Run:   runCollections,
	}

	RootCmd.AddCommand(cmd)
}

func runCollections(cmd *cobra.Command, args []string) {
	m := openMemory()
	defer m.Close()

	names, err := m.ListCollections(cmd.Context())
	if err != nil {
		exitErr("collections", err)
	}
	if formatFlag == "text" {
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}
	printJSON(names)
}
