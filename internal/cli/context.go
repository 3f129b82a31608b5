package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [id]",
		Short: "Show related documents for a document",
		Long:  "Resolve the collection's meta-documents against the given document and list similar documents, for display alongside it.",
		Args:  cobra.ExactArgs(1),
		Run:   runContext,
	}

	cmd.Flags().IntP("limit", "l", 5, "Max documents per section")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	m := openMemory()
	defer m.Close()

	sections, err := m.ResolveMeta(cmd.Context(), collectionFlag, args[0], limit)
	if err != nil {
		exitErr("context", err)
	}
	similar, err := m.GetSimilarForDisplay(cmd.Context(), collectionFlag, args[0], limit)
	if err != nil {
		exitErr("context", err)
	}

	if formatFlag == "text" {
		keys := make([]string, 0, len(sections))
		for k := range sections {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("[%s]\n", k)
			for _, r := range sections[k] {
				fmt.Println(recordLine(r))
			}
		}
		if len(similar) > 0 {
			fmt.Println("[similar]")
			for _, r := range similar {
				fmt.Println(recordLine(r))
			}
		}
		return
	}

	printJSON(map[string]any{
		"sections": sections,
		"similar":  similar,
	})
}
