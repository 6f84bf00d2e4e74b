package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/store"
)

// initStore opens the run index backend named by the config. A "none"
// driver returns nil, nil: callers treat a nil store as indexing disabled.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "locator_runs.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "", "none":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
