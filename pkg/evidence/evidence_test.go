// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package evidence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/vigil/pkg/state"
)

func openArchive(t *testing.T, runID string) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "evidence.db"), runID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestRecordAndCount(t *testing.T) {
	a := openArchive(t, "run1")
	ctx := context.Background()

	obs := state.Observation{
		Cycle:     1,
		Timestamp: time.Now().UTC(),
		Changed:   true,
	}
	eval := state.Evaluation{
		Cycle:          1,
		Classification: state.ClassTP,
		ExpectedChange: true,
		ActualChange:   true,
		AgentCorrect:   state.True,
	}
	require.NoError(t, a.Record(ctx, "price_watch", obs, eval, 0.82, "selector"))
	require.NoError(t, a.Record(ctx, "price_watch", state.Observation{Cycle: 2, Timestamp: time.Now().UTC()},
		state.Evaluation{Cycle: 2, Classification: state.ClassTN}, 0.75, ""))
	require.NoError(t, a.Record(ctx, "news_watch", state.Observation{Cycle: 1, Timestamp: time.Now().UTC(), Error: "timeout"},
		state.Evaluation{Cycle: 1, Classification: state.ClassTN}, 0.40, ""))

	n, err := a.Count(ctx, "price_watch")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts, err := a.CountByMonitor(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"price_watch": 2, "news_watch": 1}, counts)
}

func TestScoresByVariant(t *testing.T) {
	a := openArchive(t, "run1")
	ctx := context.Background()

	for i, rec := range []struct {
		variant string
		score   float64
	}{
		{"auto", 0.60},
		{"selector", 0.80},
		{"auto", 0.70},
		{"", 0.50}, // no experiment running
	} {
		require.NoError(t, a.Record(ctx, "m",
			state.Observation{Cycle: i + 1, Timestamp: time.Now().UTC()},
			state.Evaluation{Cycle: i + 1, Classification: state.ClassTN}, rec.score, rec.variant))
	}

	scores, err := a.ScoresByVariant(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.60, 0.70}, scores["auto"])
	assert.Equal(t, []float64{0.80}, scores["selector"])
	assert.Equal(t, []float64{0.50}, scores[""])
}

func TestClassTotals(t *testing.T) {
	a := openArchive(t, "run1")
	ctx := context.Background()

	for i, class := range []state.Class{state.ClassTP, state.ClassTN, state.ClassTN, state.ClassFP} {
		require.NoError(t, a.Record(ctx, "m",
			state.Observation{Cycle: i + 1, Timestamp: time.Now().UTC()},
			state.Evaluation{Cycle: i + 1, Classification: class}, 0.5, ""))
	}

	totals, err := a.ClassTotals(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, 1, totals[state.ClassTP])
	assert.Equal(t, 2, totals[state.ClassTN])
	assert.Equal(t, 1, totals[state.ClassFP])
	assert.Zero(t, totals[state.ClassFN])
}

func TestRunIsolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.db")
	ctx := context.Background()

	a1, err := Open(path, "run1", nil)
	require.NoError(t, err)
	defer a1.Close()
	require.NoError(t, a1.Record(ctx, "m", state.Observation{Cycle: 1, Timestamp: time.Now().UTC()},
		state.Evaluation{Cycle: 1, Classification: state.ClassTN}, 0.5, ""))

	a2, err := Open(path, "run2", nil)
	require.NoError(t, err)
	defer a2.Close()

	n, err := a2.Count(ctx, "m")
	require.NoError(t, err)
	assert.Zero(t, n, "counts are scoped to the archive's run id")
}
