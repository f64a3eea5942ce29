package main

import (
	"github.com/spf13/cobra"

	"github.com/galleykit/galley/internal/api"
	"github.com/galleykit/galley/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "galley",
	Short: "Cookbook digitization with AI-powered recipe extraction",
	Long: `Galley turns photographs of cookbook pages into structured recipes.

A scan session walks through a physical cookbook: photograph the cover,
photograph each recipe page, review what the AI extracted, and save.
Recipes that span multiple pages are merged into one. Sessions and
recipes are persisted in DefraDB; the original photographs stay on disk.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.galley/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "galley home directory (default: ~/.galley)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
