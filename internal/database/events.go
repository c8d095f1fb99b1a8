// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/foreground/internal/models"
)

// InsertEvent appends one event and fills in its store-assigned ID.
func (db *DB) InsertEvent(ctx context.Context, event *models.Event) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO events (machine, window_title, app, access_time, raw_json)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		event.Machine, event.WindowTitle, event.App, event.AccessTime.UTC(), event.RawJSON,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// LastEventTime returns the most recent stored event time for a device.
// The second return is false when the device has no events.
func (db *DB) LastEventTime(ctx context.Context, machine string) (time.Time, bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var last sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT MAX(access_time) FROM events WHERE machine = ?`, machine,
	).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last event time: %w", err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	return last.Time, true, nil
}

// QueryEvents returns events newest first. A nil machines slice means no
// device filter; an empty non-nil slice short-circuits to no rows (an owner
// filter that resolved to nothing must not widen to a global query).
func (db *DB) QueryEvents(ctx context.Context, machines []string, limit int) ([]models.Event, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if machines != nil && len(machines) == 0 {
		return []models.Event{}, nil
	}

	var rows *sql.Rows
	var err error
	if machines == nil {
		rows, err = db.conn.QueryContext(ctx,
			`SELECT id, machine, window_title, app, access_time, raw_json
			 FROM events ORDER BY access_time DESC, id DESC LIMIT ?`, limit)
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(machines)), ",")
		args := make([]interface{}, 0, len(machines)+1)
		for _, m := range machines {
			args = append(args, m)
		}
		args = append(args, limit)
		rows, err = db.conn.QueryContext(ctx, fmt.Sprintf(
			`SELECT id, machine, window_title, app, access_time, raw_json
			 FROM events WHERE machine IN (%s)
			 ORDER BY access_time DESC, id DESC LIMIT ?`, placeholders), args...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// LatestPerDevice returns each device's most recent event (ties broken by
// highest row id), ordered by device. The dominated-row predicate works on
// every engine, so this query does not depend on the capability probe.
func (db *DB) LatestPerDevice(ctx context.Context) ([]models.Event, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, machine, window_title, app, access_time, raw_json
		 FROM events
		 WHERE NOT EXISTS (
			SELECT 1 FROM events newer
			WHERE newer.machine = events.machine
			  AND (newer.access_time > events.access_time
				OR (newer.access_time = events.access_time AND newer.id > events.id))
		 )
		 ORDER BY machine ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	events := []models.Event{}
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Machine, &e.WindowTitle, &e.App, &e.AccessTime, &e.RawJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event row iteration failed: %w", err)
	}
	return events, nil
}
