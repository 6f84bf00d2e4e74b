package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/db"
	"github.com/sells-group/locator-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(5)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	started_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ,
	zip_total      INTEGER NOT NULL,
	zip_processed  INTEGER NOT NULL,
	unique_dealers INTEGER NOT NULL,
	blocked_count  INTEGER NOT NULL,
	error_count    INTEGER NOT NULL,
	aborted        BOOLEAN NOT NULL DEFAULT false,
	output_dir     TEXT,
	state          JSONB NOT NULL,
	recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, state *model.RunState, outputDir string) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run state")
	}
	startedAt, completedAt := parseRunTimes(state)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (run_id, started_at, completed_at, zip_total, zip_processed,
			unique_dealers, blocked_count, error_count, aborted, output_dir, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			zip_total = EXCLUDED.zip_total,
			zip_processed = EXCLUDED.zip_processed,
			unique_dealers = EXCLUDED.unique_dealers,
			blocked_count = EXCLUDED.blocked_count,
			error_count = EXCLUDED.error_count,
			aborted = EXCLUDED.aborted,
			output_dir = EXCLUDED.output_dir,
			state = EXCLUDED.state,
			recorded_at = now()`,
		state.RunID, startedAt, completedAt, state.ZipTotal, state.ZipProcessed,
		state.UniqueDealers, state.BlockedCount, state.ErrorCount, state.Aborted,
		outputDir, stateJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert run %s", state.RunID)
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM zip_summaries WHERE run_id = $1`, state.RunID); err != nil {
		return eris.Wrapf(err, "postgres: clear zip summaries %s", state.RunID)
	}

	rows := make([][]any, 0, len(state.ZipSummaries))
	for _, zs := range state.ZipSummaries {
		rows = append(rows, []any{state.RunID, zs.ZipCode, zs.DealerCount, zs.NewUniqueDealers, zs.Attempts, zs.ObservedAt})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "zip_summaries",
		[]string{"run_id", "zip_code", "dealer_count", "new_unique", "attempts", "observed_at"}, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy zip summaries %s", state.RunID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.RunListing, *model.RunState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, started_at, completed_at, zip_total, zip_processed,
			unique_dealers, blocked_count, error_count, aborted, output_dir, state
		FROM runs WHERE run_id = $1`, runID)

	listing, stateJSON, err := scanPostgresRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
		}
		return nil, nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	var state model.RunState
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, nil, eris.Wrapf(err, "postgres: parse run state %s", runID)
	}
	return listing, &state, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunListing, error) {
	query := `
		SELECT run_id, started_at, completed_at, zip_total, zip_processed,
			unique_dealers, blocked_count, error_count, aborted, output_dir, state
		FROM runs`
	var conds []string
	if filter.OnlyCompleted {
		conds = append(conds, "completed_at IS NOT NULL")
	}
	if filter.OnlyAborted {
		conds = append(conds, "aborted = true")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET " + strconv.Itoa(filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var listings []model.RunListing
	for rows.Next() {
		listing, _, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run row")
		}
		listings = append(listings, *listing)
	}
	return listings, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func scanPostgresRun(row pgx.Row) (*model.RunListing, []byte, error) {
	var listing model.RunListing
	var completedAt *time.Time
	var outputDir *string
	var stateJSON []byte

	err := row.Scan(&listing.RunID, &listing.StartedAt, &completedAt, &listing.ZipTotal,
		&listing.ZipProcessed, &listing.UniqueDealers, &listing.BlockedCount,
		&listing.ErrorCount, &listing.Aborted, &outputDir, &stateJSON)
	if err != nil {
		return nil, nil, err
	}
	listing.CompletedAt = completedAt
	if outputDir != nil {
		listing.OutputDir = *outputDir
	}
	return &listing, stateJSON, nil
}
