// Command osevents crawls local event listings and serves them over HTTP.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/osevents/internal/client"
	"github.com/alfredjeanlab/osevents/internal/config"
	"github.com/alfredjeanlab/osevents/internal/ui"
)

var (
	envFile    string
	httpURL    string
	authToken  string
	jsonOutput bool

	cfg          *config.Config
	eventsClient client.EventsClient
)

var rootCmd = &cobra.Command{
	Use:           "osevents <command>",
	Short:         "Aggregate local event listings",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(envFile)
		if err != nil {
			return err
		}
		cfg = c
		installLogger(cfg)
		ui.SetColor(ui.ShouldUseColor(os.Stdout))

		if httpURL == "" {
			httpURL = cfg.HTTPURL
		}
		if authToken == "" {
			authToken = cfg.AuthToken
		}
		eventsClient = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if eventsClient != nil {
			eventsClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", "", "server URL for client commands (default $OSEVENTS_HTTP_URL or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer token for the crawl trigger (default $OSEVENTS_AUTH_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Events
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderFailure("Error:"), err)
		os.Exit(1)
	}
}
