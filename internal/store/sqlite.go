package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/locator-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	started_at     DATETIME NOT NULL,
	completed_at   DATETIME,
	zip_total      INTEGER NOT NULL,
	zip_processed  INTEGER NOT NULL,
	unique_dealers INTEGER NOT NULL,
	blocked_count  INTEGER NOT NULL,
	error_count    INTEGER NOT NULL,
	aborted        INTEGER NOT NULL DEFAULT 0,
	output_dir     TEXT,
	state          TEXT NOT NULL,
	recorded_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS zip_summaries (
	run_id       TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	zip_code     TEXT NOT NULL,
	dealer_count INTEGER NOT NULL,
	new_unique   INTEGER NOT NULL,
	attempts     INTEGER NOT NULL,
	observed_at  TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_zip_summaries_run ON zip_summaries(run_id);
CREATE INDEX IF NOT EXISTS idx_zip_summaries_zip ON zip_summaries(zip_code);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordRun(ctx context.Context, state *model.RunState, outputDir string) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run state")
	}
	startedAt, completedAt := parseRunTimes(state)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, completed_at, zip_total, zip_processed,
			unique_dealers, blocked_count, error_count, aborted, output_dir, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			zip_total = excluded.zip_total,
			zip_processed = excluded.zip_processed,
			unique_dealers = excluded.unique_dealers,
			blocked_count = excluded.blocked_count,
			error_count = excluded.error_count,
			aborted = excluded.aborted,
			output_dir = excluded.output_dir,
			state = excluded.state,
			recorded_at = datetime('now')`,
		state.RunID, startedAt, completedAt, state.ZipTotal, state.ZipProcessed,
		state.UniqueDealers, state.BlockedCount, state.ErrorCount, boolInt(state.Aborted),
		outputDir, string(stateJSON),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert run %s", state.RunID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM zip_summaries WHERE run_id = ?`, state.RunID); err != nil {
		return eris.Wrapf(err, "sqlite: clear zip summaries %s", state.RunID)
	}
	for _, zs := range state.ZipSummaries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO zip_summaries (run_id, zip_code, dealer_count, new_unique, attempts, observed_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			state.RunID, zs.ZipCode, zs.DealerCount, zs.NewUniqueDealers, zs.Attempts, zs.ObservedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert zip summary %s/%s", state.RunID, zs.ZipCode)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit record run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.RunListing, *model.RunState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, completed_at, zip_total, zip_processed,
			unique_dealers, blocked_count, error_count, aborted, output_dir, state
		FROM runs WHERE run_id = ?`, runID)

	listing, stateJSON, err := scanRunRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
		}
		return nil, nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	var state model.RunState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, nil, eris.Wrapf(err, "sqlite: parse run state %s", runID)
	}
	return listing, &state, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunListing, error) {
	query := `
		SELECT run_id, started_at, completed_at, zip_total, zip_processed,
			unique_dealers, blocked_count, error_count, aborted, output_dir, state
		FROM runs`
	var conds []string
	if filter.OnlyCompleted {
		conds = append(conds, "completed_at IS NOT NULL")
	}
	if filter.OnlyAborted {
		conds = append(conds, "aborted = 1")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC"

	var args []any
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var listings []model.RunListing
	for rows.Next() {
		listing, _, err := scanRunRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run row")
		}
		listings = append(listings, *listing)
	}
	return listings, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunRow(row rowScanner) (*model.RunListing, string, error) {
	var listing model.RunListing
	var completedAt sql.NullTime
	var outputDir sql.NullString
	var aborted int
	var stateJSON string

	err := row.Scan(&listing.RunID, &listing.StartedAt, &completedAt, &listing.ZipTotal,
		&listing.ZipProcessed, &listing.UniqueDealers, &listing.BlockedCount,
		&listing.ErrorCount, &aborted, &outputDir, &stateJSON)
	if err != nil {
		return nil, "", err
	}
	if completedAt.Valid {
		t := completedAt.Time
		listing.CompletedAt = &t
	}
	listing.OutputDir = outputDir.String
	listing.Aborted = aborted != 0
	return &listing, stateJSON, nil
}

// parseRunTimes converts the state's RFC3339 strings into column values.
// An unparseable or empty completed_at stays NULL.
func parseRunTimes(state *model.RunState) (time.Time, *time.Time) {
	startedAt, err := time.Parse(time.RFC3339, state.StartedAt)
	if err != nil {
		startedAt = time.Now().UTC()
	}
	if state.CompletedAt == "" {
		return startedAt, nil
	}
	completedAt, err := time.Parse(time.RFC3339, state.CompletedAt)
	if err != nil {
		return startedAt, nil
	}
	return startedAt, &completedAt
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
