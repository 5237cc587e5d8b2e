// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package evidence archives every evaluated cycle to sqlite. The in-memory
// run state caps observation history to keep the state file small; the
// archive keeps the full record for post-run analysis.
package evidence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/teradata-labs/vigil/internal/sqlitedriver"
	"github.com/teradata-labs/vigil/pkg/state"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	monitor     TEXT    NOT NULL,
	cycle       INTEGER NOT NULL,
	observed_at TEXT    NOT NULL,
	changed     INTEGER NOT NULL,
	error       TEXT    NOT NULL DEFAULT '',
	class       TEXT    NOT NULL,
	expected    INTEGER NOT NULL,
	actual      INTEGER NOT NULL,
	agent       TEXT    NOT NULL,
	score       REAL    NOT NULL,
	variant     TEXT    NOT NULL DEFAULT '',
	diff        TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cycles_monitor ON cycles(run_id, monitor, cycle);
`

// Archive is a sqlite-backed record of evaluated cycles.
type Archive struct {
	db     *sql.DB
	runID  string
	logger *zap.Logger
}

// Open creates or opens the archive at path and ensures the schema exists.
func Open(path, runID string, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening evidence archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing evidence schema: %w", err)
	}

	logger.Debug("opened evidence archive", zap.String("path", path))
	return &Archive{db: db, runID: runID, logger: logger}, nil
}

// Record stores one evaluated cycle. Variant is the configuration value the
// active experiment had in force for the cycle (e.g. "selector"), empty when
// no experiment was running.
func (a *Archive) Record(ctx context.Context, monitor string, obs state.Observation, eval state.Evaluation, score float64, variant string) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO cycles (run_id, monitor, cycle, observed_at, changed, error,
			class, expected, actual, agent, score, variant, diff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.runID, monitor, obs.Cycle, obs.Timestamp.Format(time.RFC3339Nano),
		boolInt(obs.Changed), obs.Error,
		string(eval.Classification), boolInt(eval.ExpectedChange), boolInt(eval.ActualChange),
		eval.AgentCorrect.String(), score, variant, obs.DiffSnippet)
	if err != nil {
		return fmt.Errorf("recording cycle evidence: %w", err)
	}
	return nil
}

// Count returns the number of archived cycles for a monitor in this run.
func (a *Archive) Count(ctx context.Context, monitor string) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cycles WHERE run_id = ? AND monitor = ?`,
		a.runID, monitor).Scan(&n)
	return n, err
}

// CountByMonitor returns archived cycle counts for all monitors in this run.
func (a *Archive) CountByMonitor(ctx context.Context) (map[string]int, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT monitor, COUNT(*) FROM cycles WHERE run_id = ? GROUP BY monitor`,
		a.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var monitor string
		var n int
		if err := rows.Scan(&monitor, &n); err != nil {
			return nil, err
		}
		counts[monitor] = n
	}
	return counts, rows.Err()
}

// ScoresByVariant returns a monitor's archived cycle scores grouped by the
// variant value in force, keyed by value. Cycles with no experiment running
// group under the empty key.
func (a *Archive) ScoresByVariant(ctx context.Context, monitor string) (map[string][]float64, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT variant, score FROM cycles WHERE run_id = ? AND monitor = ? ORDER BY cycle`,
		a.runID, monitor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := map[string][]float64{}
	for rows.Next() {
		var variant string
		var score float64
		if err := rows.Scan(&variant, &score); err != nil {
			return nil, err
		}
		scores[variant] = append(scores[variant], score)
	}
	return scores, rows.Err()
}

// ClassTotals returns confusion-matrix totals for a monitor from the full
// archive, unaffected by the in-memory history caps.
func (a *Archive) ClassTotals(ctx context.Context, monitor string) (map[state.Class]int, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT class, COUNT(*) FROM cycles WHERE run_id = ? AND monitor = ? GROUP BY class`,
		a.runID, monitor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := map[state.Class]int{}
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, err
		}
		totals[state.Class(class)] = n
	}
	return totals, rows.Err()
}

// Close releases the underlying database handle.
func (a *Archive) Close() error { return a.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
