package model

import "time"

// Artifact filenames are load-bearing for resume: a prior run is
// reconstructed from these exact keys and files.
const (
	RunStateFilename   = "run_state.json"
	RunSummaryFilename = "run_summary.json"
	NormalizedFilename = "normalized_dealers.json"
	MetricsFilename    = "metrics.json"
	DeliverableCSV     = "dealers.csv"
	DeliverableXLSX    = "dealers.xlsx"
)

// ZipSummary records the outcome of one successfully processed ZIP code.
type ZipSummary struct {
	ZipCode          string `json:"zip_code"`
	DealerCount      int    `json:"dealer_count"`
	NewUniqueDealers int    `json:"new_unique_dealers"`
	TotalDealersSeen int    `json:"total_dealers_seen"`
	Attempts         int    `json:"attempts"`
	ArtifactPath     string `json:"artifact_path,omitempty"`
	ObservedAt       string `json:"observed_at"`
}

// BlockedEvent records a ZIP whose processing ended in an anti-automation
// block. Resolution is one of "exhausted", "skipped", or "aborted".
type BlockedEvent struct {
	ZipCode    string `json:"zip_code"`
	Issues     string `json:"issues"`
	Artifact   string `json:"artifact,omitempty"`
	Resolution string `json:"resolution"`
	Attempts   int    `json:"attempts"`
}

// ErrorEvent records a ZIP that failed permanently for a non-block reason.
type ErrorEvent struct {
	ZipCode  string `json:"zip_code"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts,omitempty"`
}

// RetrySnapshot preserves the retry tuning a run was executed with, so a
// resumed run can be audited against the original parameters.
type RetrySnapshot struct {
	MaxRetries        int     `json:"max_retries"`
	BaseDelaySeconds  float64 `json:"base_delay_seconds"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// ArtifactManifest maps artifact roles to paths relative to the run
// directory (absolute paths are tolerated on load).
type ArtifactManifest struct {
	NormalizedJSON  string `json:"normalized_json"`
	DeliverableCSV  string `json:"deliverable_csv,omitempty"`
	DeliverableXLSX string `json:"deliverable_xlsx,omitempty"`
	MetricsJSON     string `json:"metrics_json,omitempty"`
}

// RunState is the durable bookkeeping for one orchestrator run. It is
// rewritten at every flush; CompletedAt stays empty until the final flush,
// so an interrupted run is recognizably incomplete.
type RunState struct {
	RunID         string           `json:"run_id"`
	StartedAt     string           `json:"started_at"`
	CompletedAt   string           `json:"completed_at,omitempty"`
	FlushedAt     string           `json:"flushed_at,omitempty"`
	ZipTotal      int              `json:"zip_total"`
	ZipProcessed  int              `json:"zip_processed"`
	BlockedCount  int              `json:"blocked_count"`
	ErrorCount    int              `json:"error_count"`
	UniqueDealers int              `json:"unique_dealers"`
	Aborted       bool             `json:"aborted"`
	ZipSummaries  []ZipSummary     `json:"zip_summaries"`
	BlockedEvents []BlockedEvent   `json:"blocked_events"`
	ErrorEvents   []ErrorEvent     `json:"error_events"`
	RetryPolicy   RetrySnapshot    `json:"retry_policy"`
	Artifacts     ArtifactManifest `json:"artifacts"`
}

// ResumeState is the read-only view of a prior run used to seed a new one.
// It is constructed once at startup and never mutated.
type ResumeState struct {
	RunID         string
	ProcessedZips map[string]bool
	BlockedZips   map[string]bool
	Snapshot      []map[string]any
	SnapshotPath  string
	ManualLogPath string
}

// ManualAttentionEntry is one line of the shared newline-delimited manual
// attention log. Each entry is appended in a single atomic write.
type ManualAttentionEntry struct {
	RunBlock  string `json:"run_block"`
	ZipCode   string `json:"zip_code"`
	Issues    string `json:"issues"`
	Timestamp string `json:"timestamp"`
}

// RunListing is the condensed row returned by the run index store.
type RunListing struct {
	RunID         string     `json:"run_id"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ZipTotal      int        `json:"zip_total"`
	ZipProcessed  int        `json:"zip_processed"`
	UniqueDealers int        `json:"unique_dealers"`
	BlockedCount  int        `json:"blocked_count"`
	ErrorCount    int        `json:"error_count"`
	Aborted       bool       `json:"aborted"`
	OutputDir     string     `json:"output_dir,omitempty"`
}
