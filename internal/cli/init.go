package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/keepstore/keep/internal/config"
	"github.com/keepstore/keep/internal/core"
	"github.com/keepstore/keep/internal/worker"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a store in the current directory",
		Long:  "Create a .keep store in the current directory (or at --store) and write its configuration with auto-detected providers.",
		Run:   runInit,
	}

	RootCmd.AddCommand(cmd)
}

func runInit(cmd *cobra.Command, args []string) {
	dir := storeFlag
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			exitErr("init", err)
		}
		dir = filepath.Join(cwd, config.DirName)
	}

	m, err := core.Open(dir, core.Options{
		Logger:      newLogger(),
		SpawnWorker: worker.Spawn,
	})
	if err != nil {
		exitErr("init", err)
	}
	defer m.Close()

	fmt.Printf("initialized store at %s\n", dir)
	printJSON(m.Config())
}
