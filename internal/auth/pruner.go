// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// DefaultPruneInterval is how often the background pruner sweeps
// expired sessions when no interval is configured.
const DefaultPruneInterval = time.Hour

// Pruner periodically deletes expired sessions. Validation rejects
// expired rows lazily on read, so the sweep only bounds table growth;
// it holds no lock that blocks the request path.
type Pruner struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewPruner creates a Pruner sweeping at the given interval.
func NewPruner(service *Service, interval time.Duration, logger *slog.Logger) (*Pruner, error) {
	if service == nil {
		return nil, oops.Errorf("service is required")
	}
	if interval <= 0 {
		return nil, oops.Code("POLICY_INVALID").Errorf("prune interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		service:  service,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run sweeps once immediately, then on every tick until the context is
// cancelled. Sweep failures are logged and do not stop the loop.
func (p *Pruner) Run(ctx context.Context) {
	p.sweep(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Pruner) sweep(ctx context.Context) {
	count, err := p.service.PruneExpired(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("session prune failed", "error", err)
		return
	}
	if count > 0 {
		p.logger.Info("pruned expired sessions", "count", count)
	}
}
