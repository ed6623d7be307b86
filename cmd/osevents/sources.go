package main

import (
	"os"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:     "sources",
	Short:   "List built-in sources and their settings",
	GroupID: "events",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := cfg.SourceSettings()
		if jsonOutput {
			printJSON(os.Stdout, settings)
			return nil
		}
		printSourcesTable(os.Stdout, settings, cfg.RehostEnabled())
		return nil
	},
}
