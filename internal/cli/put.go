package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [content]",
		Short: "Store a document",
		Long:  "Store a document. Content can be a positional arg, piped via stdin, or fetched with --uri. Unchanged content is a no-op.",
		Run:   runPut,
	}

	cmd.Flags().String("id", "", "Document ID (default: content-addressed)")
	cmd.Flags().StringArrayP("tag", "t", nil, "Tag as key=value (repeatable)")
	cmd.Flags().String("summary", "", "Caller-provided summary (skips background summarization)")
	cmd.Flags().StringP("uri", "u", "", "Fetch content from a URI (http(s)://, file://, or a path)")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("id")
	tagPairs, _ := cmd.Flags().GetStringArray("tag")
	summary, _ := cmd.Flags().GetString("summary")
	uri, _ := cmd.Flags().GetString("uri")
	tags := parseTags(tagPairs)

	m := openMemory()
	defer m.Close()

	if uri != "" {
		rec, err := m.PutURI(cmd.Context(), collectionFlag, uri, tags, summary)
		if err != nil {
			exitErr("put", err)
		}
		printRecord(rec)
		return
	}

	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("put", fmt.Errorf("content is required (positional arg, stdin, or --uri)"))
	}

	rec, err := m.PutText(cmd.Context(), collectionFlag, content, id, tags, summary)
	if err != nil {
		exitErr("put", err)
	}
	printRecord(rec)
}
