package runner

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locator-cli/internal/locator"
	"github.com/sells-group/locator-cli/internal/model"
)

// Resume policies select which ZIPs a resumed run targets.
const (
	ResumeSkip    = "skip"    // drop already-processed ZIPs
	ResumeBlocked = "blocked" // only previously blocked ZIPs
	ResumeAll     = "all"     // no filtering
)

// LoadResumeState reconstructs a prior run's processed/blocked ZIP sets and
// dealer snapshot from its persisted state. location may be the run
// directory or the state file itself. A missing state file is an error; a
// missing dealer snapshot is not, the resumed run just starts empty.
func LoadResumeState(location, manualLogPath string) (*model.ResumeState, error) {
	state, runDir, err := LoadState(location)
	if err != nil {
		return nil, err
	}

	rs := &model.ResumeState{
		RunID:         state.RunID,
		ProcessedZips: make(map[string]bool, len(state.ZipSummaries)),
		BlockedZips:   make(map[string]bool, len(state.BlockedEvents)),
		ManualLogPath: manualLogPath,
	}
	for _, s := range state.ZipSummaries {
		rs.ProcessedZips[s.ZipCode] = true
	}
	for _, b := range state.BlockedEvents {
		rs.BlockedZips[b.ZipCode] = true
	}

	snapshotPath := state.Artifacts.NormalizedJSON
	if snapshotPath == "" {
		snapshotPath = model.NormalizedFilename
	}
	if !filepath.IsAbs(snapshotPath) {
		snapshotPath = filepath.Join(runDir, snapshotPath)
	}
	rs.SnapshotPath = snapshotPath

	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Warn("dealer snapshot missing, resuming with empty accumulator",
				zap.String("path", snapshotPath))
			return rs, nil
		}
		return nil, eris.Wrapf(err, "runner: read dealer snapshot %s", snapshotPath)
	}
	if err := json.Unmarshal(data, &rs.Snapshot); err != nil {
		return nil, eris.Wrapf(err, "runner: parse dealer snapshot %s", snapshotPath)
	}
	return rs, nil
}

// LoadManualAttentionZips replays the shared manual-attention log and
// returns the distinct ZIPs it mentions, zero-padded, in first-appearance
// order. With runIDFilter set, only entries whose artifact path mentions
// that run are included. Unparseable lines are skipped.
func LoadManualAttentionZips(logPath, runIDFilter string) ([]string, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, eris.Wrapf(err, "runner: open manual log %s", logPath)
	}
	defer f.Close()

	var zips []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry model.ManualAttentionEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			zap.L().Warn("skipping malformed manual log line", zap.Error(err))
			continue
		}
		if runIDFilter != "" && !strings.Contains(entry.RunBlock, runIDFilter) {
			continue
		}
		zip := locator.PadZip(entry.ZipCode)
		if zip == "" || seen[zip] {
			continue
		}
		seen[zip] = true
		zips = append(zips, zip)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "runner: scan manual log %s", logPath)
	}
	return zips, nil
}

// ApplyResumePolicy filters the target ZIP list for a resumed run.
// extraZips (e.g. a manual-log replay) is unioned in under the blocked
// policy before filtering.
func ApplyResumePolicy(targets []string, rs *model.ResumeState, policy string, extraZips []string) []string {
	if rs == nil {
		return targets
	}
	switch policy {
	case ResumeBlocked:
		wanted := make(map[string]bool, len(rs.BlockedZips))
		for zip := range rs.BlockedZips {
			wanted[zip] = true
		}
		for _, zip := range extraZips {
			wanted[zip] = true
		}
		var out []string
		for _, zip := range targets {
			if wanted[zip] {
				out = append(out, zip)
			}
		}
		return out
	case ResumeAll:
		return targets
	default: // ResumeSkip
		var out []string
		for _, zip := range targets {
			if !rs.ProcessedZips[zip] {
				out = append(out, zip)
			}
		}
		return out
	}
}
