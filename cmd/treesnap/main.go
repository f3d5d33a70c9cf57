package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "treesnap",
		Short:   "Snapshot directory trees into a shareable document",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newSnapshotCmd(), newProfilesCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
