// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package main

import (
	"bufio"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/trackrank/trackrank/internal/access"
	"github.com/trackrank/trackrank/internal/auth"
	authpg "github.com/trackrank/trackrank/internal/auth/postgres"
	"github.com/trackrank/trackrank/internal/store"
)

// NewCreateUserCmd creates the create-user subcommand.
func NewCreateUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create a new user account",
		Long: `Create a new user account with the given username. The password is
read from the --password flag, or from standard input when the flag
is not set.`,
		Args: cobra.ExactArgs(1),
		RunE: runCreateUser,
	}
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("level", "user", "access level (user, editor, admin)")
	cmd.Flags().String("password", "", "password for the new account (read from stdin if empty)")
	return cmd
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	username := args[0]

	levelName, err := cmd.Flags().GetString("level")
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	level, err := access.ParseLevel(levelName)
	if err != nil {
		return err
	}

	password, err := cmd.Flags().GetString("password")
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if password == "" {
		cmd.Print("Password: ")
		line, readErr := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if readErr != nil && line == "" {
			return oops.Code("INPUT_READ_FAILED").With("operation", "read password").Wrap(readErr)
		}
		password = strings.TrimRight(line, "\r\n")
	}

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

	account, err := svc.Register(ctx, username, password, level)
	if err != nil {
		return err
	}

	cmd.Printf("Created account %q with level %s\n", account.Username, account.AccessLevel)
	return nil
}
