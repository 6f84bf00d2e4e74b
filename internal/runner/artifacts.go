package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/locator"
	"github.com/sells-group/locator-cli/internal/model"
)

const timestampLayout = "20060102T150405Z"

// blockedArtifact is the forensic payload written for every blocked lookup.
type blockedArtifact struct {
	ArtifactID  string            `json:"artifact_id"`
	ZipCode     string            `json:"zip_code"`
	Issues      []string          `json:"issues"`
	Payload     map[string]string `json:"payload,omitempty"`
	StatusCode  int               `json:"status_code"`
	ContentType string            `json:"content_type,omitempty"`
	BodySnippet string            `json:"body_snippet,omitempty"`
	Attempt     int               `json:"attempt"`
	DetectedAt  string            `json:"detected_at"`
}

// writeBlockedArtifact captures a blocked response under
// <runDir>/blocked_zips/ and returns the artifact path.
func writeBlockedArtifact(runDir, zipCode string, issues []string, payload map[string]string, res *locator.SearchResult, attempt int, now time.Time) (string, error) {
	blockedDir := filepath.Join(runDir, "blocked_zips")
	if err := os.MkdirAll(blockedDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "runner: create blocked dir %s", blockedDir)
	}

	ts := now.UTC().Format(timestampLayout)
	// Attempt suffix keeps repeated blocks within the same second distinct.
	path := filepath.Join(blockedDir, fmt.Sprintf("%s_%s_a%d_blocked.json", ts, zipCode, attempt))

	artifact := blockedArtifact{
		ArtifactID: uuid.NewString(),
		ZipCode:    zipCode,
		Issues:     issues,
		Payload:    payload,
		Attempt:    attempt,
		DetectedAt: ts,
	}
	if res != nil {
		artifact.StatusCode = res.StatusCode
		artifact.ContentType = res.ContentType
		snippet := res.Body
		if len(snippet) > 2000 {
			snippet = snippet[:2000]
		}
		artifact.BodySnippet = string(snippet)
	}

	if err := writeJSON(path, artifact); err != nil {
		return "", err
	}
	return path, nil
}

// appendManualAttention appends one entry to the shared manual-attention
// log. The entry is serialized first and written with a single O_APPEND
// write, so concurrent readers always see whole newline-delimited records.
func appendManualAttention(logPath string, entry model.ManualAttentionEntry) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return eris.Wrapf(err, "runner: create manual log dir for %s", logPath)
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "runner: marshal manual attention entry")
	}
	line = append(line, '\n')

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return eris.Wrapf(err, "runner: open manual log %s", logPath)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return eris.Wrapf(err, "runner: append manual log %s", logPath)
	}
	return nil
}

// zipArtifact is the per-ZIP raw capture written on success when raw
// artifacts are enabled.
type zipArtifact struct {
	ZipCode     string                   `json:"zip_code"`
	RequestedAt string                   `json:"requested_at"`
	Payload     map[string]string        `json:"payload"`
	Centroid    model.Centroid           `json:"centroid"`
	StatusCode  int                      `json:"status_code"`
	DealerCount int                      `json:"dealer_count"`
	Response    json.RawMessage          `json:"response,omitempty"`
	Normalized  []model.NormalizedDealer `json:"normalized_dealers"`
}

// writeZipArtifact stores the raw response and normalized records for one
// successful ZIP under <runDir>/zip_runs/<ts>_<zip>/.
func writeZipArtifact(runDir, zipCode string, payload map[string]string, centroid model.Centroid, res *locator.SearchResult, normalized []model.NormalizedDealer, now time.Time) (string, error) {
	ts := now.UTC().Format(timestampLayout)
	dir := filepath.Join(runDir, "zip_runs", fmt.Sprintf("%s_%s", ts, zipCode))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "runner: create zip artifact dir %s", dir)
	}

	artifact := zipArtifact{
		ZipCode:     zipCode,
		RequestedAt: ts,
		Payload:     payload,
		Centroid:    centroid,
		DealerCount: len(normalized),
		Normalized:  normalized,
	}
	if res != nil {
		artifact.StatusCode = res.StatusCode
		if json.Valid(res.Body) {
			artifact.Response = json.RawMessage(res.Body)
		}
	}

	if err := writeJSON(filepath.Join(dir, "summary.json"), artifact); err != nil {
		return "", err
	}
	return dir, nil
}
