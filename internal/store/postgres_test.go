package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresRecordRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	state := sampleState("20251008T120000Z", true)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM zip_summaries`).
		WithArgs("20251008T120000Z").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"zip_summaries"},
		[]string{"run_id", "zip_code", "dealer_count", "new_unique", "attempts", "observed_at"}).
		WillReturnResult(2)

	err := s.RecordRun(context.Background(), state, "/data/runs/20251008T120000Z")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRunNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT run_id, started_at, completed_at`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, _, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Date(2025, 10, 8, 12, 0, 0, 0, time.UTC)
	completed := started.Add(5 * time.Minute)
	outputDir := "/data/runs/20251008T120000Z"
	stateJSON := []byte(`{"run_id":"20251008T120000Z","zip_total":3}`)

	rows := pgxmock.NewRows([]string{
		"run_id", "started_at", "completed_at", "zip_total", "zip_processed",
		"unique_dealers", "blocked_count", "error_count", "aborted", "output_dir", "state",
	}).AddRow("20251008T120000Z", started, &completed, 3, 2, 5, 1, 0, false, &outputDir, stateJSON)

	mock.ExpectQuery(`SELECT run_id, started_at, completed_at`).
		WithArgs("20251008T120000Z").
		WillReturnRows(rows)

	listing, state, err := s.GetRun(context.Background(), "20251008T120000Z")
	require.NoError(t, err)
	assert.Equal(t, 3, listing.ZipTotal)
	require.NotNil(t, listing.CompletedAt)
	assert.Equal(t, completed, *listing.CompletedAt)
	assert.Equal(t, "20251008T120000Z", state.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Date(2025, 10, 8, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"run_id", "started_at", "completed_at", "zip_total", "zip_processed",
		"unique_dealers", "blocked_count", "error_count", "aborted", "output_dir", "state",
	}).AddRow("run1", started, (*time.Time)(nil), 3, 2, 5, 1, 0, false, (*string)(nil), []byte(`{}`))

	mock.ExpectQuery(`SELECT run_id, started_at, completed_at`).
		WillReturnRows(rows)

	listings, err := s.ListRuns(context.Background(), RunFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "run1", listings[0].RunID)
	assert.Nil(t, listings[0].CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
