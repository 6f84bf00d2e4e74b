package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locator-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleState(runID string, completed bool) *model.RunState {
	state := &model.RunState{
		RunID:         runID,
		StartedAt:     "2025-10-08T12:00:00Z",
		ZipTotal:      3,
		ZipProcessed:  2,
		BlockedCount:  1,
		ErrorCount:    0,
		UniqueDealers: 5,
		ZipSummaries: []model.ZipSummary{
			{ZipCode: "90001", DealerCount: 4, NewUniqueDealers: 4, Attempts: 1, ObservedAt: "2025-10-08T12:01:00Z"},
			{ZipCode: "90002", DealerCount: 3, NewUniqueDealers: 1, Attempts: 2, ObservedAt: "2025-10-08T12:02:00Z"},
		},
		BlockedEvents: []model.BlockedEvent{
			{ZipCode: "90003", Issues: "Unexpected status code 403", Resolution: "exhausted", Attempts: 3},
		},
	}
	if completed {
		state.CompletedAt = "2025-10-08T12:05:00Z"
	}
	return state
}

func TestSQLiteRecordAndGetRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, sampleState("20251008T120000Z", true), "/data/runs/20251008T120000Z"))

	listing, state, err := s.GetRun(ctx, "20251008T120000Z")
	require.NoError(t, err)
	assert.Equal(t, "20251008T120000Z", listing.RunID)
	assert.Equal(t, 3, listing.ZipTotal)
	assert.Equal(t, 5, listing.UniqueDealers)
	assert.NotNil(t, listing.CompletedAt)
	assert.Equal(t, "/data/runs/20251008T120000Z", listing.OutputDir)

	require.Len(t, state.ZipSummaries, 2)
	assert.Equal(t, "90001", state.ZipSummaries[0].ZipCode)
	require.Len(t, state.BlockedEvents, 1)
	assert.Equal(t, "exhausted", state.BlockedEvents[0].Resolution)
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, _, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRecordRunReplaces(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, sampleState("run1", false), "/out"))

	updated := sampleState("run1", true)
	updated.UniqueDealers = 9
	updated.ZipSummaries = updated.ZipSummaries[:1]
	require.NoError(t, s.RecordRun(ctx, updated, "/out"))

	listing, state, err := s.GetRun(ctx, "run1")
	require.NoError(t, err)
	assert.Equal(t, 9, listing.UniqueDealers)
	assert.NotNil(t, listing.CompletedAt)
	assert.Len(t, state.ZipSummaries, 1)

	listings, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, listings, 1, "re-recording must not duplicate the run")
}

func TestSQLiteListRunsFilters(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, sampleState("20251008T120000Z", true), ""))

	incomplete := sampleState("20251009T120000Z", false)
	incomplete.StartedAt = "2025-10-09T12:00:00Z"
	require.NoError(t, s.RecordRun(ctx, incomplete, ""))

	aborted := sampleState("20251010T120000Z", true)
	aborted.StartedAt = "2025-10-10T12:00:00Z"
	aborted.Aborted = true
	require.NoError(t, s.RecordRun(ctx, aborted, ""))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "20251010T120000Z", all[0].RunID, "newest first")

	completed, err := s.ListRuns(ctx, RunFilter{OnlyCompleted: true})
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	abortedOnly, err := s.ListRuns(ctx, RunFilter{OnlyAborted: true})
	require.NoError(t, err)
	require.Len(t, abortedOnly, 1)
	assert.True(t, abortedOnly[0].Aborted)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "20251009T120000Z", limited[0].RunID)
}
