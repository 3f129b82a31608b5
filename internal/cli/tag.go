package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "tag [id] [key=value ...]",
		Short: "Add, change, or remove tags on a document",
		Long:  "Apply tag changes to a document. An empty value (key=) removes the tag. Tag edits never archive a version; re-put the content to do that.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runTag,
	}

	RootCmd.AddCommand(cmd)
}

func runTag(cmd *cobra.Command, args []string) {
	changes := parseTags(args[1:])

	m := openMemory()
	defer m.Close()

	rec, err := m.Tag(cmd.Context(), collectionFlag, args[0], changes)
	if err != nil {
		exitErr("tag", err)
	}
	if rec == nil {
		exitErr("tag", fmt.Errorf("document %s not found", args[0]))
	}
	printRecord(rec)
}
