// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

// Package retention runs the daily event pruning pass. The engine is a
// supervised service that fires once per day at a configured wall-clock
// time and delegates the delete to the store's selected strategy.
package retention

import (
	"context"
	"time"

	"github.com/tomtom215/foreground/internal/cache"
	"github.com/tomtom215/foreground/internal/config"
	"github.com/tomtom215/foreground/internal/database"
	"github.com/tomtom215/foreground/internal/logging"
	"github.com/tomtom215/foreground/internal/metrics"
)

// Engine schedules and executes retention passes. It implements
// suture.Service; a failed pass is logged and counted, never fatal — the
// next day's pass runs regardless.
type Engine struct {
	db    *database.DB
	clock cache.Clock

	mode   database.RetentionMode
	hour   int
	minute int
	name   string
}

// NewEngine creates a retention engine from config.
func NewEngine(db *database.DB, cfg *config.RetentionConfig, clock cache.Clock) *Engine {
	if clock == nil {
		clock = cache.SystemClock{}
	}
	return &Engine{
		db:     db,
		clock:  clock,
		mode:   database.RetentionMode(cfg.Mode),
		hour:   cfg.Hour,
		minute: cfg.Minute,
		name:   "retention-engine",
	}
}

// Serve implements suture.Service. Each iteration computes the next
// wall-clock fire time from the current clock, so clock adjustments and
// long passes cannot accumulate drift.
func (e *Engine) Serve(ctx context.Context) error {
	for {
		now := e.clock.Now()
		next := nextRun(now, e.hour, e.minute)
		logging.Info().Time("next_run", next).Str("mode", string(e.mode)).Msg("Retention pass scheduled")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			e.RunOnce(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (e *Engine) String() string {
	return e.name
}

// RunOnce executes a single retention pass followed by a storage
// checkpoint. Failures are recorded and logged; data from before the pass
// is untouched on failure because the delete runs in one transaction.
func (e *Engine) RunOnce(ctx context.Context) {
	start := time.Now()
	deleted, err := e.db.RunRetention(ctx, e.mode)
	metrics.RetentionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RetentionRunsTotal.WithLabelValues(string(e.mode), "error").Inc()
		logging.Error().Err(err).Str("mode", string(e.mode)).Msg("Retention pass failed")
		return
	}

	metrics.RetentionRunsTotal.WithLabelValues(string(e.mode), "success").Inc()
	if deleted > 0 {
		metrics.RetentionDeletedRows.Add(float64(deleted))
	}
	logging.Info().Int64("deleted", deleted).Str("mode", string(e.mode)).Msg("Retention pass complete")

	// Reclaim the space freed by the delete. Runs outside the retention
	// transaction; a failed checkpoint only delays compaction.
	if err := e.db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Post-retention checkpoint failed")
	}
}

// nextRun returns the next occurrence of hour:minute strictly after now,
// in now's location.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
