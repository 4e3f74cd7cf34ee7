// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package sync

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/appconnect-x/clipcore/clipboard"
	"github.com/appconnect-x/clipcore/internal/logger"
	"github.com/appconnect-x/clipcore/internal/metrics"
)

// Sweeper periodically invokes store.Sweep(now()) (spec §4.K). It is
// scoped to the context passed to Run: cancellation joins the background
// goroutine before returning, matching the rest of this codebase's
// scoped-task lifecycle pattern.
type Sweeper struct {
	Store    clipboard.Store
	Interval time.Duration
	Now      func() time.Time
	Log      logger.Logger
}

// NewSweeper constructs a Sweeper with production defaults for Now/Log.
func NewSweeper(store clipboard.Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		Store:    store,
		Interval: interval,
		Now:      time.Now,
		Log:      logger.NewDefaultLogger(),
	}
}

// Run blocks until ctx is cancelled, sweeping at Interval. It is
// intended to be launched via errgroup.Group.Go from the owning
// component so teardown cancels and joins it.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	count, err := s.Store.Sweep(ctx, s.Now().UnixMilli())
	if err != nil {
		s.Log.Error("sweep failed", logger.Error(err))
		return
	}
	metrics.SweepDeletions.WithLabelValues().Add(float64(count))
	s.Log.Info("sweep completed", logger.Int("deleted", count))
}

// RunScoped launches the sweeper in g and returns immediately; g.Wait()
// (typically called from component teardown) blocks until the sweeper's
// context is cancelled and its goroutine exits.
func (s *Sweeper) RunScoped(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return s.Run(ctx) })
}
