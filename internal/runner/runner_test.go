package runner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locator-cli/internal/locator"
	"github.com/sells-group/locator-cli/internal/model"
	"github.com/sells-group/locator-cli/internal/resilience"
)

type searchStep struct {
	res *locator.SearchResult
	err error
}

// scriptedClient pops one scripted step per Search call for a ZIP,
// repeating the last step once the script runs out.
type scriptedClient struct {
	script map[string][]searchStep
	calls  map[string]int
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{script: map[string][]searchStep{}, calls: map[string]int{}}
}

func (c *scriptedClient) add(zip string, step searchStep) {
	c.script[zip] = append(c.script[zip], step)
}

func (c *scriptedClient) Search(_ context.Context, req locator.SearchRequest) (*locator.SearchResult, error) {
	c.calls[req.ZipCode]++
	steps := c.script[req.ZipCode]
	if len(steps) == 0 {
		return nil, errors.New("no script for zip " + req.ZipCode)
	}
	idx := c.calls[req.ZipCode] - 1
	if idx >= len(steps) {
		idx = len(steps) - 1
	}
	return steps[idx].res, steps[idx].err
}

func okStep(names ...string) searchStep {
	list := make([]map[string]any, 0, len(names))
	for _, name := range names {
		list = append(list, map[string]any{
			"company_name": name,
			"contact_addr": "123 Main St\nLos Angeles, CA 90001",
			"phone":        "555-0001",
		})
	}
	payload := &locator.SearchPayload{Code: 1}
	payload.Data.List = list
	body, _ := json.Marshal(map[string]any{"code": 1, "data": map[string]any{"list": list}})
	return searchStep{res: &locator.SearchResult{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        body,
		Payload:     payload,
	}}
}

func blockedStep() searchStep {
	return searchStep{res: &locator.SearchResult{
		StatusCode:  403,
		ContentType: "text/html",
		Body:        []byte("<html>Access Denied</html>"),
	}}
}

func testCentroids(zips ...string) map[string]model.Centroid {
	lat, lng := 34.0, -118.0
	out := make(map[string]model.Centroid, len(zips))
	for _, zip := range zips {
		out[zip] = model.Centroid{Zip: zip, City: "Los Angeles", State: "CA", Latitude: &lat, Longitude: &lng}
	}
	return out
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		OutputDir:     dir,
		ManualLogPath: filepath.Join(dir, "manual_attention.log"),
		Retry:         resilience.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Multiplier: 2.0},
		SkipRaw:       true,
	}
}

func TestRunCleanCompletion(t *testing.T) {
	client := newScriptedClient()
	client.add("90001", okStep("Alpha Optics", "Beta Tactical"))
	client.add("90002", okStep("Alpha Optics"))

	ctrl := New(client, testConfig(t))
	outcome, err := ctrl.Run(context.Background(), []string{"90001", "90002"}, testCentroids("90001", "90002"))
	require.NoError(t, err)

	state := outcome.State
	assert.Equal(t, 2, state.ZipProcessed)
	assert.Equal(t, 2, state.UniqueDealers, "same dealer from both zips merges")
	assert.Equal(t, 0, state.BlockedCount)
	assert.Equal(t, 0, state.ErrorCount)
	assert.False(t, state.Aborted)
	assert.NotEmpty(t, state.CompletedAt)

	require.Len(t, state.ZipSummaries, 2)
	assert.Equal(t, 2, state.ZipSummaries[0].DealerCount)
	assert.Equal(t, 2, state.ZipSummaries[0].NewUniqueDealers)
	assert.Equal(t, 1, state.ZipSummaries[1].Attempts)
	assert.Equal(t, 0, state.ZipSummaries[1].NewUniqueDealers)

	// All flush artifacts exist.
	for _, name := range []string{
		model.RunStateFilename,
		model.RunSummaryFilename,
		model.NormalizedFilename,
		model.MetricsFilename,
		model.DeliverableCSV,
	} {
		_, err := os.Stat(filepath.Join(outcome.RunDir, name))
		assert.NoError(t, err, name)
	}

	loaded, _, err := LoadState(outcome.RunDir)
	require.NoError(t, err)
	assert.Equal(t, state.RunID, loaded.RunID)
	assert.NotEmpty(t, loaded.CompletedAt)
}

func TestRunBlockedThenRecovers(t *testing.T) {
	client := newScriptedClient()
	client.add("90001", blockedStep())
	client.add("90001", blockedStep())
	client.add("90001", okStep("Alpha Optics"))

	ctrl := New(client, testConfig(t))
	outcome, err := ctrl.Run(context.Background(), []string{"90001"}, testCentroids("90001"))
	require.NoError(t, err)

	state := outcome.State
	assert.Empty(t, state.BlockedEvents, "recovered zip leaves no blocked event")
	require.Len(t, state.ZipSummaries, 1)
	assert.Equal(t, 3, state.ZipSummaries[0].Attempts)

	// Every blocked attempt still left an artifact and a manual log entry.
	artifacts, err := filepath.Glob(filepath.Join(outcome.RunDir, "blocked_zips", "*_90001_*_blocked.json"))
	require.NoError(t, err)
	assert.Len(t, artifacts, 2)

	entries := readManualLog(t, ctrl.cfg.ManualLogPath)
	assert.Len(t, entries, 2)
	assert.Equal(t, "90001", entries[0].ZipCode)
}

func TestRunBlockedExhausted(t *testing.T) {
	client := newScriptedClient()
	client.add("90001", blockedStep())
	client.add("90002", okStep("Beta Tactical"))

	ctrl := New(client, testConfig(t))
	outcome, err := ctrl.Run(context.Background(), []string{"90001", "90002"}, testCentroids("90001", "90002"))
	require.NoError(t, err)

	state := outcome.State
	require.Len(t, state.BlockedEvents, 1)
	event := state.BlockedEvents[0]
	assert.Equal(t, "90001", event.ZipCode)
	assert.Equal(t, "exhausted", event.Resolution)
	assert.Equal(t, 3, event.Attempts)
	assert.Contains(t, event.Issues, "Unexpected status code 403")

	// The run kept going.
	require.Len(t, state.ZipSummaries, 1)
	assert.Equal(t, "90002", state.ZipSummaries[0].ZipCode)
	assert.False(t, state.Aborted)
	assert.NotEmpty(t, state.CompletedAt)
}

func TestRunSkipDecision(t *testing.T) {
	client := newScriptedClient()
	client.add("90001", blockedStep())

	cfg := testConfig(t)
	cfg.Decider = resilience.StaticProvider{Decision: resilience.DecisionSkip}
	ctrl := New(client, cfg)

	outcome, err := ctrl.Run(context.Background(), []string{"90001"}, testCentroids("90001"))
	require.NoError(t, err)

	require.Len(t, outcome.State.BlockedEvents, 1)
	assert.Equal(t, "skipped", outcome.State.BlockedEvents[0].Resolution)
	assert.Equal(t, 1, outcome.State.BlockedEvents[0].Attempts)
	assert.Equal(t, 1, client.calls["90001"], "skip stops further attempts")
}

func TestRunAbortDecision(t *testing.T) {
	client := newScriptedClient()
	client.add("90001", blockedStep())
	client.add("90002", okStep("Beta Tactical"))

	cfg := testConfig(t)
	cfg.Decider = resilience.StaticProvider{Decision: resilience.DecisionAbort}
	ctrl := New(client, cfg)

	outcome, err := ctrl.Run(context.Background(), []string{"90001", "90002"}, testCentroids("90001", "90002"))
	require.NoError(t, err)

	state := outcome.State
	assert.True(t, state.Aborted)
	require.Len(t, state.BlockedEvents, 1)
	assert.Equal(t, "aborted", state.BlockedEvents[0].Resolution)
	assert.Empty(t, state.ZipSummaries, "abort leaves later zips unprocessed")
	assert.Equal(t, 0, client.calls["90002"])
	assert.NotEmpty(t, state.CompletedAt, "final flush still closes the run")
}

func TestRunTransientErrorRetried(t *testing.T) {
	client := newScriptedClient()
	client.add("90001", searchStep{err: resilience.NewTransientError(errors.New("i/o timeout"), 0)})
	client.add("90001", okStep("Alpha Optics"))

	ctrl := New(client, testConfig(t))
	outcome, err := ctrl.Run(context.Background(), []string{"90001"}, testCentroids("90001"))
	require.NoError(t, err)

	assert.Empty(t, outcome.State.ErrorEvents)
	require.Len(t, outcome.State.ZipSummaries, 1)
	assert.Equal(t, 2, outcome.State.ZipSummaries[0].Attempts)
}

func TestRunPermanentError(t *testing.T) {
	client := newScriptedClient()
	client.add("90001", searchStep{err: errors.New("unexpected payload shape")})
	client.add("90002", okStep("Beta Tactical"))

	ctrl := New(client, testConfig(t))
	outcome, err := ctrl.Run(context.Background(), []string{"90001", "90002"}, testCentroids("90001", "90002"))
	require.NoError(t, err)

	state := outcome.State
	require.Len(t, state.ErrorEvents, 1)
	assert.Equal(t, "90001", state.ErrorEvents[0].ZipCode)
	assert.Equal(t, 1, state.ErrorEvents[0].Attempts, "non-transient errors are not retried")
	require.Len(t, state.ZipSummaries, 1)
}

func TestRunMissingCentroid(t *testing.T) {
	client := newScriptedClient()
	client.add("90002", okStep("Beta Tactical"))

	ctrl := New(client, testConfig(t))
	outcome, err := ctrl.Run(context.Background(), []string{"90001", "90002"}, testCentroids("90002"))
	require.NoError(t, err)

	require.Len(t, outcome.State.ErrorEvents, 1)
	assert.Equal(t, "centroid missing", outcome.State.ErrorEvents[0].Error)
	assert.Equal(t, 0, client.calls["90001"])
}

func TestRunNoZips(t *testing.T) {
	ctrl := New(newScriptedClient(), testConfig(t))
	_, err := ctrl.Run(context.Background(), nil, testCentroids())
	require.ErrorIs(t, err, ErrNoZips)
}

func TestRunPeriodicFlush(t *testing.T) {
	client := newScriptedClient()
	client.add("90001", okStep("Alpha Optics"))
	client.add("90002", blockedStep())
	client.add("90003", okStep("Gamma Arms"))

	cfg := testConfig(t)
	cfg.FlushEvery = 1
	cfg.Decider = resilience.StaticProvider{Decision: resilience.DecisionSkip}
	ctrl := New(client, cfg)

	outcome, err := ctrl.Run(context.Background(), []string{"90001", "90002", "90003"}, testCentroids("90001", "90002", "90003"))
	require.NoError(t, err)

	// Periodic flushes include blocked/errored zips in the cadence.
	assert.Equal(t, 2, outcome.State.ZipProcessed)
	assert.Equal(t, 1, outcome.State.BlockedCount)

	var snapshot []map[string]any
	data, err := os.ReadFile(filepath.Join(outcome.RunDir, model.NormalizedFilename))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.Len(t, snapshot, 2)
}

func readManualLog(t *testing.T, path string) []model.ManualAttentionEntry {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []model.ManualAttentionEntry
	for _, line := range splitLines(string(data)) {
		if line == "" {
			continue
		}
		var entry model.ManualAttentionEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
