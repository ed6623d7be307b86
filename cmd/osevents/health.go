package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/osevents/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of a running server",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := eventsClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			printJSON(os.Stdout, map[string]string{"status": status})
		} else {
			fmt.Printf("Health: %s\n", ui.RenderSuccess(status))
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
