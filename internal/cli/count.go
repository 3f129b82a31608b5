package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count documents in the collection",
		Run:   runCount,
	}

	RootCmd.AddCommand(cmd)
}

func runCount(cmd *cobra.Command, args []string) {
	m := openMemory()
	defer m.Close()

	n, err := m.Count(cmd.Context(), collectionFlag)
	if err != nil {
		exitErr("count", err)
	}
	fmt.Println(n)
}
