// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/trackrank/trackrank/internal/auth"
	authpg "github.com/trackrank/trackrank/internal/auth/postgres"
	"github.com/trackrank/trackrank/internal/observability"
	"github.com/trackrank/trackrank/internal/store"
)

// NewPruneCmd creates the prune subcommand.
func NewPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove expired sessions",
		Long: `Remove all expired sessions from the database. With --daemon, keeps
running and sweeps on the configured interval, exposing metrics and
health probes on the observability address.`,
		RunE: runPrune,
	}
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().Duration("session.prune_interval", 0, "sweep interval in daemon mode")
	cmd.Flags().String("observability.addr", "", "observability listen address")
	cmd.Flags().Bool("daemon", false, "run continuously, sweeping on the configured interval")
	return cmd
}

func runPrune(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	daemon, err := cmd.Flags().GetBool("daemon")
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
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

	if !daemon {
		pruned, err := svc.PruneExpired(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("Pruned %d expired sessions\n", pruned)
		return nil
	}

	return runPruneDaemon(ctx, cfg.Session.PruneInterval, cfg.Observability.Addr, svc, pool)
}

// runPruneDaemon sweeps on a ticker until interrupted, serving metrics
// and health probes while running.
func runPruneDaemon(ctx context.Context, interval time.Duration, obsAddr string, svc *auth.Service, pool interface{ Ping(context.Context) error }) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs := observability.NewServer(obsAddr, func() bool {
		return pool.Ping(ctx) == nil
	})
	errCh, err := obs.Start()
	if err != nil {
		return oops.Code("OBSERVABILITY_START_FAILED").With("addr", obsAddr).Wrap(err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stopErr := obs.Stop(stopCtx); stopErr != nil {
			slog.Warn("observability server shutdown failed", "error", stopErr)
		}
	}()

	pruner, err := auth.NewPruner(svc, interval, slog.Default())
	if err != nil {
		return err
	}

	slog.Info("prune daemon started",
		"interval", interval,
		"observability_addr", obs.Addr())

	done := make(chan struct{})
	go func() {
		defer close(done)
		pruner.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		<-done
		slog.Info("prune daemon stopped")
		return nil
	case serveErr := <-errCh:
		if serveErr != nil {
			return oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(serveErr)
		}
		<-done
		return nil
	}
}
