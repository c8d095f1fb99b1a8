// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/foreground/internal/logging"
)

// RetentionMode selects what a retention pass deletes.
type RetentionMode string

const (
	// RetentionKeepLatest deletes every event for a device except the one
	// with the latest timestamp, ties broken by highest row id.
	RetentionKeepLatest RetentionMode = "keep-latest"

	// RetentionWipe deletes all events.
	RetentionWipe RetentionMode = "wipe"
)

// rankingDelete removes superseded rows with a window-function bulk delete.
// Used when the capability probe confirmed ranking support.
const rankingDelete = `
DELETE FROM events WHERE id IN (
	SELECT id FROM (
		SELECT id, ROW_NUMBER() OVER (
			PARTITION BY machine
			ORDER BY access_time DESC, id DESC
		) AS rn
		FROM events
	) ranked
	WHERE rn > 1
)`

// selfJoinDelete removes rows dominated by a newer row for the same device.
// Fallback for engines without window functions; final state is identical
// to rankingDelete.
const selfJoinDelete = `
DELETE FROM events WHERE EXISTS (
	SELECT 1 FROM events newer
	WHERE newer.machine = events.machine
	  AND (newer.access_time > events.access_time
		OR (newer.access_time = events.access_time AND newer.id > events.id))
)`

// RunRetention executes one retention pass inside a single transaction and
// returns the number of deleted rows. On any failure the transaction is
// rolled back and prior data is untouched. The storage compaction pass
// (CHECKPOINT) is the caller's responsibility and runs outside the
// transaction.
func (db *DB) RunRetention(ctx context.Context, mode RetentionMode) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var query string
	switch mode {
	case RetentionWipe:
		query = `DELETE FROM events`
	case RetentionKeepLatest:
		if db.rankingSupported {
			query = rankingDelete
		} else {
			query = selfJoinDelete
		}
	default:
		return 0, fmt.Errorf("unknown retention mode %q", mode)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin retention transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, query)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Warn().Err(rbErr).Msg("Retention rollback failed")
		}
		return 0, fmt.Errorf("retention delete failed: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		// Not all drivers report affected rows; the pass still counts.
		deleted = -1
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit retention transaction: %w", err)
	}
	return deleted, nil
}
