// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/trackrank/trackrank/internal/config"
	"github.com/trackrank/trackrank/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the TrackRank CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trackrank",
		Short: "TrackRank - account and session management",
		Long: `TrackRank manages user accounts and browser sessions for the
TrackRank service: registration, password changes, session pruning,
and database migrations.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCreateUserCmd())
	cmd.AddCommand(NewDeleteUserCmd())
	cmd.AddCommand(NewPruneCmd())

	return cmd
}

// loadConfig loads configuration from the config file and command
// flags. Load validates before returning.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}

// setupLogging installs the default logger per the loaded configuration.
func setupLogging(cfg *config.Config) {
	logging.SetDefault("trackrank", version, cfg.Log.Format)
}
