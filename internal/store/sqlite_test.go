package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-dedupe/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "dedupe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleRun(id, owner string, startedAt time.Time) model.Run {
	return model.Run{
		ID:                 id,
		OwnerID:            owner,
		Status:             model.RunStatusComplete,
		EligibleProperties: 4,
		PairsEnumerated:    6,
		PairsPassedFunnel:  2,
		OracleUsed:         true,
		OracleCalls:        2,
		FallbackCount:      1,
		MatchCount:         2,
		StartedAt:          startedAt,
		Duration:           1500 * time.Millisecond,
	}
}

func sampleMatches(runID string) []model.Match {
	return []model.Match{
		{
			RunID: runID, Rank: 1, PairKey: "p1|p2", PropertyAID: "p1", PropertyBID: "p2",
			BasicScore: 92.5, Similarity: 95, Confidence: 90, Recommendation: "merge",
			Explanation: "same flat", Reasons: []string{"same address", "same rent"},
		},
		{
			RunID: runID, Rank: 2, PairKey: "p3|p4", PropertyAID: "p3", PropertyBID: "p4",
			BasicScore: 71, Similarity: 50, Confidence: 30, Recommendation: "review",
			UsedFallback: true, Explanation: "oracle timeout",
		},
	}
}

func TestSQLiteStore_SaveAndGetRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveRun(ctx, sampleRun("run-1", "owner-1", started), sampleMatches("run-1")))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 6, got.PairsEnumerated)
	assert.True(t, got.OracleUsed)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, started.Equal(got.StartedAt))

	matches, err := s.ListMatches(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "p1|p2", matches[0].PairKey)
	assert.Equal(t, []string{"same address", "same rent"}, matches[0].Reasons)
	assert.True(t, matches[1].UsedFallback)
	assert.Empty(t, matches[1].Reasons)
	assert.Equal(t, "run-1", matches[1].RunID)
}

func TestSQLiteStore_GetRun_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SaveRun_Idempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	run := sampleRun("run-1", "", time.Now().UTC())
	matches := sampleMatches("run-1")

	require.NoError(t, s.SaveRun(ctx, run, matches))

	run.Status = model.RunStatusCancelled
	matches[0].Confidence = 99
	require.NoError(t, s.SaveRun(ctx, run, matches))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCancelled, got.Status)

	stored, err := s.ListMatches(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.InDelta(t, 99, stored[0].Confidence, 0.001)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveRun(ctx, sampleRun("run-1", "owner-1", base), nil))
	require.NoError(t, s.SaveRun(ctx, sampleRun("run-2", "owner-2", base.Add(time.Hour)), nil))
	cancelled := sampleRun("run-3", "owner-1", base.Add(2*time.Hour))
	cancelled.Status = model.RunStatusCancelled
	require.NoError(t, s.SaveRun(ctx, cancelled, nil))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-3", all[0].ID, "newest first")

	owned, err := s.ListRuns(ctx, RunFilter{OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	done, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	assert.Len(t, done, 2)

	page, err := s.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "run-2", page[0].ID)
}

func TestSQLiteStore_ListMatches_UnknownRun(t *testing.T) {
	s := newTestSQLite(t)

	matches, err := s.ListMatches(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, matches)
}
