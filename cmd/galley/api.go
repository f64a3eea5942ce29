package main

import (
	"github.com/spf13/cobra"

	"github.com/galleykit/galley/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Galley server via HTTP.

These commands require a running server (galley serve).
Use --server to specify a custom server URL.

Examples:
  galley api health                    # Check server health
  galley api scan start "Joy of Cooking"
  galley api scan review <id> finish   # Save the recipe, complete the session
  galley api sessions                  # List scan sessions
  galley api recipes                   # List extracted recipes`,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan workflow commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8090", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Scan workflow as subcommand group
	scanCmd.AddCommand((&endpoints.StartScanEndpoint{}).Command(getServerURL))
	scanCmd.AddCommand((&endpoints.ListScansEndpoint{}).Command(getServerURL))
	scanCmd.AddCommand((&endpoints.GetScanEndpoint{}).Command(getServerURL))
	scanCmd.AddCommand((&endpoints.CloseScanEndpoint{}).Command(getServerURL))
	scanCmd.AddCommand((&endpoints.SkipCoverEndpoint{}).Command(getServerURL))
	scanCmd.AddCommand((&endpoints.ReviewEndpoint{}).Command(getServerURL))
	scanCmd.AddCommand((&endpoints.ScanMoreEndpoint{}).Command(getServerURL))

	// Session and recipe reads at top level of api
	apiCmd.AddCommand((&endpoints.ListSessionsEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.GetSessionEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ListRecipesEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.GetRecipeEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(apiCmd)
}
