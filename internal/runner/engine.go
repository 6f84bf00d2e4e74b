package runner

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locator-cli/internal/dealer"
	"github.com/sells-group/locator-cli/internal/export"
	"github.com/sells-group/locator-cli/internal/locator"
	"github.com/sells-group/locator-cli/internal/model"
	"github.com/sells-group/locator-cli/internal/resilience"
)

// ErrNoZips is returned when the target list is empty after filtering.
var ErrNoZips = eris.New("runner: no zip codes selected")

// RunRecorder indexes a finished run. The store package provides the real
// implementation; a nil recorder disables indexing.
type RunRecorder interface {
	RecordRun(ctx context.Context, state *model.RunState, outputDir string) error
}

// Config carries the knobs for one run. All paths are explicit: the
// controller never assumes a working directory.
type Config struct {
	OutputDir         string
	ManualLogPath     string
	Distance          int
	Category          string
	FlushEvery        int
	SkipRaw           bool
	DeliverableFields []string
	WriteXLSX         bool
	Retry             resilience.Policy
	Decider           resilience.DecisionProvider
	Resume            *model.ResumeState
	Recorder          RunRecorder

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID  string
	RunDir string
	State  *model.RunState
}

// Controller owns the sequential ZIP loop. Processing is strictly one ZIP
// at a time: conservative pacing is the point, so there is no parallelism
// and no locking.
type Controller struct {
	cfg    Config
	client locator.Client
	acc    *dealer.Accumulator
	log    *zap.Logger
	now    func() time.Time
}

// New builds a controller. The decision provider defaults to automatic
// retry, which matches unattended operation; the run command swaps in a
// terminal prompt when requested.
func New(client locator.Client, cfg Config) *Controller {
	if cfg.Decider == nil {
		cfg.Decider = resilience.StaticProvider{Decision: resilience.DecisionRetry}
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Controller{
		cfg:    cfg,
		client: client,
		acc:    dealer.NewAccumulator(),
		log:    zap.L().With(zap.String("component", "runner")),
		now:    now,
	}
}

// Run processes the target ZIPs in order. It returns ErrNoZips for an
// empty target list; an operator abort is not an error, the outcome's
// state carries the Aborted flag. The final flush always happens, even
// when the loop stops early.
func (c *Controller) Run(ctx context.Context, targets []string, centroids map[string]model.Centroid) (*Outcome, error) {
	if len(targets) == 0 {
		return nil, ErrNoZips
	}

	started := c.now().UTC()
	runID := started.Format(timestampLayout)
	runDir := filepath.Join(c.cfg.OutputDir, runID)
	if err := ensureDir(runDir); err != nil {
		return nil, err
	}

	if c.cfg.Resume != nil && len(c.cfg.Resume.Snapshot) > 0 {
		if err := c.acc.LoadSnapshot(c.cfg.Resume.Snapshot); err != nil {
			return nil, eris.Wrap(err, "runner: seed accumulator from snapshot")
		}
		c.log.Info("seeded accumulator from prior run",
			zap.String("resume_run", c.cfg.Resume.RunID),
			zap.Int("dealers", c.acc.Len()),
		)
	}

	state := &model.RunState{
		RunID:       runID,
		StartedAt:   started.Format(time.RFC3339),
		ZipTotal:    len(targets),
		RetryPolicy: c.cfg.Retry.Snapshot(),
		Artifacts: model.ArtifactManifest{
			NormalizedJSON: model.NormalizedFilename,
			DeliverableCSV: model.DeliverableCSV,
			MetricsJSON:    model.MetricsFilename,
		},
		ZipSummaries:  []model.ZipSummary{},
		BlockedEvents: []model.BlockedEvent{},
		ErrorEvents:   []model.ErrorEvent{},
	}
	if c.cfg.WriteXLSX {
		state.Artifacts.DeliverableXLSX = model.DeliverableXLSX
	}

	handled := 0
	for idx, zipCode := range targets {
		if ctx.Err() != nil {
			c.log.Warn("context canceled, stopping before next zip", zap.String("zip", zipCode))
			break
		}

		c.log.Info("processing zip",
			zap.String("zip", zipCode),
			zap.Int("position", idx+1),
			zap.Int("total", len(targets)),
		)
		aborted := c.processZip(ctx, zipCode, centroids, runDir, state)
		handled++

		if aborted {
			state.Aborted = true
			c.log.Warn("run aborted by operator decision", zap.String("zip", zipCode))
			break
		}
		if c.cfg.FlushEvery > 0 && handled%c.cfg.FlushEvery == 0 {
			c.flush(runDir, state, false)
		}
	}

	c.flush(runDir, state, true)

	if c.cfg.Recorder != nil {
		if err := c.cfg.Recorder.RecordRun(ctx, state, runDir); err != nil {
			c.log.Error("failed to index run", zap.Error(err))
		}
	}

	c.log.Info("run complete",
		zap.String("run_id", runID),
		zap.Int("zips_processed", state.ZipProcessed),
		zap.Int("unique_dealers", state.UniqueDealers),
		zap.Int("blocked", state.BlockedCount),
		zap.Int("errors", state.ErrorCount),
		zap.Bool("aborted", state.Aborted),
	)
	return &Outcome{RunID: runID, RunDir: runDir, State: state}, nil
}

// processZip drives one ZIP through its attempt budget. The returned flag
// is true only when an operator decision aborted the whole run.
func (c *Controller) processZip(ctx context.Context, zipCode string, centroids map[string]model.Centroid, runDir string, state *model.RunState) bool {
	centroid, ok := centroids[zipCode]
	if !ok {
		state.ErrorEvents = append(state.ErrorEvents, model.ErrorEvent{
			ZipCode: zipCode,
			Error:   "centroid missing",
		})
		c.log.Error("zip missing from centroid mapping", zap.String("zip", zipCode))
		return false
	}

	req := locator.SearchRequest{
		ZipCode:  zipCode,
		Centroid: centroid,
		Distance: c.cfg.Distance,
		Category: c.cfg.Category,
	}
	payload, err := locator.PreparePayload(req)
	if err != nil {
		state.ErrorEvents = append(state.ErrorEvents, model.ErrorEvent{
			ZipCode: zipCode,
			Error:   err.Error(),
		})
		c.log.Error("failed to prepare lookup payload", zap.String("zip", zipCode), zap.Error(err))
		return false
	}

	maxAttempts := c.cfg.Retry.MaxAttempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.cfg.Retry.Sleep(ctx, attempt); err != nil {
			state.ErrorEvents = append(state.ErrorEvents, model.ErrorEvent{
				ZipCode:  zipCode,
				Error:    "canceled during backoff",
				Attempts: attempt,
			})
			return false
		}

		res, err := c.client.Search(ctx, req)
		if err != nil {
			if resilience.IsTransient(err) && attempt < maxAttempts {
				c.log.Warn("transient lookup failure, retrying",
					zap.String("zip", zipCode),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				continue
			}
			state.ErrorEvents = append(state.ErrorEvents, model.ErrorEvent{
				ZipCode:  zipCode,
				Error:    err.Error(),
				Attempts: attempt,
			})
			c.log.Error("lookup failed permanently", zap.String("zip", zipCode), zap.Error(err))
			return false
		}

		issues := locator.DetectIssues(res)
		if len(issues) > 0 {
			artifact := c.recordBlock(runDir, zipCode, issues, payload, res, attempt)
			if attempt < maxAttempts {
				switch c.cfg.Decider.Resolve(zipCode, attempt, issues) {
				case resilience.DecisionRetry:
					continue
				case resilience.DecisionAbort:
					c.appendBlockedEvent(state, zipCode, issues, artifact, "aborted", attempt)
					return true
				default:
					c.appendBlockedEvent(state, zipCode, issues, artifact, "skipped", attempt)
					return false
				}
			}
			c.appendBlockedEvent(state, zipCode, issues, artifact, "exhausted", attempt)
			return false
		}

		c.recordSuccess(runDir, zipCode, payload, centroid, res, state, attempt)
		return false
	}
	return false
}

// recordBlock writes the blocked artifact and manual-log entry for one
// blocked attempt. Both happen for every blocked response, whatever the
// eventual resolution.
func (c *Controller) recordBlock(runDir, zipCode string, issues []string, payload map[string]string, res *locator.SearchResult, attempt int) string {
	now := c.now()
	artifact, err := writeBlockedArtifact(runDir, zipCode, issues, payload, res, attempt, now)
	if err != nil {
		c.log.Error("failed to write blocked artifact", zap.String("zip", zipCode), zap.Error(err))
	}
	if c.cfg.ManualLogPath != "" {
		entry := model.ManualAttentionEntry{
			RunBlock:  artifact,
			ZipCode:   zipCode,
			Issues:    strings.Join(issues, "; "),
			Timestamp: now.UTC().Format(timestampLayout),
		}
		if err := appendManualAttention(c.cfg.ManualLogPath, entry); err != nil {
			c.log.Error("failed to append manual attention log", zap.String("zip", zipCode), zap.Error(err))
		}
	}
	c.log.Warn("zip flagged as blocked",
		zap.String("zip", zipCode),
		zap.Int("attempt", attempt),
		zap.Strings("issues", issues),
	)
	return artifact
}

func (c *Controller) appendBlockedEvent(state *model.RunState, zipCode string, issues []string, artifact, resolution string, attempts int) {
	state.BlockedEvents = append(state.BlockedEvents, model.BlockedEvent{
		ZipCode:    zipCode,
		Issues:     strings.Join(issues, "; "),
		Artifact:   artifact,
		Resolution: resolution,
		Attempts:   attempts,
	})
}

func (c *Controller) recordSuccess(runDir, zipCode string, payload map[string]string, centroid model.Centroid, res *locator.SearchResult, state *model.RunState, attempt int) {
	var list []map[string]any
	if res.Payload != nil {
		list = res.Payload.Data.List
	}
	normalized := locator.NormalizeAll(list, zipCode)
	observedAt := c.now()

	total, created := c.acc.Ingest(normalized, zipCode, observedAt, state.RunID)

	artifactDir := ""
	if !c.cfg.SkipRaw {
		dir, err := writeZipArtifact(runDir, zipCode, payload, centroid, res, normalized, observedAt)
		if err != nil {
			c.log.Error("failed to write zip artifact", zap.String("zip", zipCode), zap.Error(err))
		} else {
			artifactDir = dir
		}
	}

	state.ZipSummaries = append(state.ZipSummaries, model.ZipSummary{
		ZipCode:          zipCode,
		DealerCount:      len(normalized),
		NewUniqueDealers: created,
		TotalDealersSeen: total,
		Attempts:         attempt,
		ArtifactPath:     artifactDir,
		ObservedAt:       observedAt.UTC().Format(time.RFC3339),
	})
	c.log.Info("zip ingested",
		zap.String("zip", zipCode),
		zap.Int("dealers", len(normalized)),
		zap.Int("new_unique", created),
		zap.Int("attempt", attempt),
	)
}

// flush persists the full current picture: aggregate snapshot, deliverable
// tables, metrics, and run state. Persistence failures are logged, never
// fatal; the next flush retries. Only the final flush stamps CompletedAt
// and writes the terminal run summary.
func (c *Controller) flush(runDir string, state *model.RunState, final bool) {
	now := c.now().UTC().Format(time.RFC3339)
	state.ZipProcessed = len(state.ZipSummaries)
	state.BlockedCount = len(state.BlockedEvents)
	state.ErrorCount = len(state.ErrorEvents)
	state.UniqueDealers = c.acc.Len()
	state.FlushedAt = now
	if final {
		state.CompletedAt = now
	}

	aggs := c.acc.ToList()
	if err := writeJSON(filepath.Join(runDir, model.NormalizedFilename), aggs); err != nil {
		c.log.Error("flush: dealer snapshot write failed", zap.Error(err))
	}

	if issues := export.Validate(aggs); len(issues) > 0 {
		c.log.Warn("flush: validation issues in snapshot", zap.Int("count", len(issues)))
		for _, issue := range issues {
			c.log.Debug("validation issue", zap.String("issue", issue))
		}
	}

	if err := export.WriteDeliverableCSV(aggs, filepath.Join(runDir, model.DeliverableCSV), c.cfg.DeliverableFields); err != nil {
		c.log.Error("flush: deliverable csv write failed", zap.Error(err))
	}
	if c.cfg.WriteXLSX {
		if err := export.WriteDeliverableXLSX(aggs, filepath.Join(runDir, model.DeliverableXLSX), c.cfg.DeliverableFields); err != nil {
			c.log.Error("flush: deliverable xlsx write failed", zap.Error(err))
		}
	}
	if err := writeJSON(filepath.Join(runDir, model.MetricsFilename), export.ComputeMetrics(aggs)); err != nil {
		c.log.Error("flush: metrics write failed", zap.Error(err))
	}

	if err := WriteState(runDir, state); err != nil {
		c.log.Error("flush: run state write failed", zap.Error(err))
	}
	if final {
		if err := writeJSON(filepath.Join(runDir, model.RunSummaryFilename), state); err != nil {
			c.log.Error("flush: run summary write failed", zap.Error(err))
		}
	}
}
