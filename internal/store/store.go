// Package store indexes finished crawl runs so the runs and serve commands
// can answer "what ran, when, with what outcome" without walking output
// directories. SQLite is the default backend; Postgres is available for
// shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/model"
)

// ErrNotFound is returned by GetRun when no run matches the given ID.
var ErrNotFound = eris.New("run not found")

// RunFilter narrows a run listing.
type RunFilter struct {
	OnlyCompleted bool
	OnlyAborted   bool
	Limit         int
	Offset        int
}

// Store is the persistence interface for the run index.
type Store interface {
	// RecordRun indexes a finished run; recording the same run_id again
	// replaces the previous entry.
	RecordRun(ctx context.Context, state *model.RunState, outputDir string) error
	GetRun(ctx context.Context, runID string) (*model.RunListing, *model.RunState, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunListing, error)

	Migrate(ctx context.Context) error
	Close() error
}
