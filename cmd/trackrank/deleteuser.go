// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/trackrank/trackrank/internal/auth"
	authpg "github.com/trackrank/trackrank/internal/auth/postgres"
	"github.com/trackrank/trackrank/internal/store"
)

// NewDeleteUserCmd creates the delete-user subcommand.
func NewDeleteUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-user <username>",
		Short: "Delete a user account",
		Long: `Delete a user account and all of its sessions. Sessions are removed
by the database through the foreign key cascade.`,
		Args: cobra.ExactArgs(1),
		RunE: runDeleteUser,
	}
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	return cmd
}

func runDeleteUser(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	ctx := cmd.Context()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := auth.NewService(
		authpg.NewAccountRepository(pool),
		authpg.NewSessionRepository(pool),
		auth.NewArgon2idHasher(),
	)
	if err != nil {
		return err
	}

	if err := svc.DeleteAccount(ctx, args[0]); err != nil {
		return err
	}

	cmd.Printf("Deleted account %q\n", args[0])
	return nil
}
