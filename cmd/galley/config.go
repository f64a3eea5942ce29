package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/galleykit/galley/internal/api"
	"github.com/galleykit/galley/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage galley configuration",
	Long: `Manage galley configuration.

Configuration lives at ~/.galley/config.yaml (or the path given with
--config). API keys can reference environment variables with ${VAR}
syntax so secrets stay out of the file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}

		path := cfgFile
		if path == "" {
			path = h.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}

		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		return api.Output(cfgMgr.Get())
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
