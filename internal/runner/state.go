// Package runner drives the ZIP iteration loop: it calls the locator per
// ZIP, routes blocked and failed lookups through the retry policy, feeds
// successes into the dealer accumulator, and persists run state at every
// flush point so an interrupted crawl can be resumed.
package runner

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/model"
)

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "runner: create dir %s", dir)
	}
	return nil
}

// writeJSON persists v as indented JSON via a temp file and rename, so a
// crash mid-write never leaves a truncated artifact behind.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "runner: marshal %s", filepath.Base(path))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "runner: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "runner: rename %s", path)
	}
	return nil
}

// WriteState persists the run state into the run directory.
func WriteState(runDir string, state *model.RunState) error {
	return writeJSON(filepath.Join(runDir, model.RunStateFilename), state)
}

// LoadState reads a run state from a run directory or a direct file path.
func LoadState(location string) (*model.RunState, string, error) {
	path := location
	info, err := os.Stat(location)
	if err != nil {
		return nil, "", eris.Wrapf(err, "runner: stat run state %s", location)
	}
	if info.IsDir() {
		path = filepath.Join(location, model.RunStateFilename)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "runner: read run state %s", path)
	}
	var state model.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, "", eris.Wrapf(err, "runner: parse run state %s", path)
	}
	return &state, filepath.Dir(path), nil
}
