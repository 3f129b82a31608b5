package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "tags [key] [value]",
		Short: "Browse tags and tagged documents",
		Long:  "With no args, list tag keys. With a key, list its values. With a key and value, list matching documents (value \"*\" matches any).",
		Args:  cobra.MaximumNArgs(2),
		Run:   runTags,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max documents when listing by key and value")
	cmd.Flags().String("since", "", "Only documents updated within this duration")

	RootCmd.AddCommand(cmd)
}

func runTags(cmd *cobra.Command, args []string) {
	m := openMemory()
	defer m.Close()

	if len(args) == 2 {
		limit, _ := cmd.Flags().GetInt("limit")
		since := parseSince(cmd)
		value := args[1]
		if value == "*" {
			value = ""
		}
		results, err := m.QueryTag(cmd.Context(), collectionFlag, args[0], value, limit, since)
		if err != nil {
			exitErr("tags", err)
		}
		printRecords(results)
		return
	}

	key := ""
	if len(args) == 1 {
		key = args[0]
	}
	values, err := m.ListTags(cmd.Context(), collectionFlag, key)
	if err != nil {
		exitErr("tags", err)
	}
	if formatFlag == "text" {
		for _, v := range values {
			fmt.Println(v)
		}
		return
	}
	printJSON(values)
}
