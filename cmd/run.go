package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locator-cli/internal/locator"
	"github.com/sells-group/locator-cli/internal/model"
	"github.com/sells-group/locator-cli/internal/resilience"
	"github.com/sells-group/locator-cli/internal/runner"
)

// errAborted maps an operator abort to its own exit code in main.
var errAborted = eris.New("run aborted by operator")

var (
	runZipCSV        string
	runZips          []string
	runMaxZips       int
	runOutputDir     string
	runDistance      int
	runCategory      string
	runTimeoutSecs   int
	runUserAgent     string
	runRPS           float64
	runMaxRetries    int
	runRetryBase     float64
	runRetryMult     float64
	runFlushEvery    int
	runPromptOnBlock bool
	runSkipRaw       bool
	runXLSX          bool
	runFields        []string
	runResumeFrom    string
	runResumePolicy  string
	runManualLog     string
	runNoStore       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl the dealer locator across ZIP centroids",
	RunE: func(cmd *cobra.Command, args []string) error {
		// SIGINT stops the ZIP loop; the controller still runs its final
		// flush so the partial run stays resumable.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("component", "cli"))

		applyRunFlagOverrides(cmd)
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		centroids, err := locator.LoadCentroids(cfg.Locator.ZipCSV)
		if err != nil {
			return eris.Wrap(err, "load centroids")
		}

		targets := selectTargets(centroids)

		var resume *model.ResumeState
		if runResumeFrom != "" {
			resume, err = runner.LoadResumeState(runResumeFrom, cfg.Run.ManualLog)
			if err != nil {
				return eris.Wrap(err, "load resume state")
			}

			var extra []string
			if runManualLog != "" {
				extra, err = runner.LoadManualAttentionZips(runManualLog, "")
				if err != nil {
					return eris.Wrap(err, "load manual attention log")
				}
			}

			before := len(targets)
			targets = runner.ApplyResumePolicy(targets, resume, runResumePolicy, extra)
			log.Info("resume state applied",
				zap.String("source", runResumeFrom),
				zap.String("policy", runResumePolicy),
				zap.Int("targets_before", before),
				zap.Int("targets_after", len(targets)),
			)
		}

		if runMaxZips > 0 && len(targets) > runMaxZips {
			targets = targets[:runMaxZips]
		}

		var recorder runner.RunRecorder
		if !runNoStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close() //nolint:errcheck
				if err := st.Migrate(ctx); err != nil {
					return eris.Wrap(err, "migrate store")
				}
				recorder = st
			}
		}

		client := locator.NewHTTPClient(locator.HTTPOptions{
			Endpoint:          cfg.Locator.Endpoint,
			UserAgent:         cfg.Locator.UserAgent,
			Timeout:           time.Duration(cfg.Locator.TimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.Locator.RequestsPerSecond,
		})

		var decider resilience.DecisionProvider
		if runPromptOnBlock {
			decider = resilience.PromptProvider{In: os.Stdin, Out: os.Stderr}
		}

		ctrl := runner.New(client, runner.Config{
			OutputDir:     cfg.Run.OutputDir,
			ManualLogPath: cfg.Run.ManualLog,
			Distance:      cfg.Locator.Distance,
			Category:      cfg.Locator.Category,
			FlushEvery:    cfg.Run.FlushEvery,
			SkipRaw:       cfg.Run.SkipRaw,

			DeliverableFields: cfg.Export.Fields,
			WriteXLSX:         cfg.Export.XLSX || runXLSX,

			Retry: resilience.Policy{
				MaxRetries: cfg.Retry.MaxRetries,
				BaseDelay:  time.Duration(cfg.Retry.BaseDelaySecs * float64(time.Second)),
				Multiplier: cfg.Retry.BackoffMultiplier,
			},
			Decider:  decider,
			Resume:   resume,
			Recorder: recorder,
		})

		outcome, err := ctrl.Run(ctx, targets, centroids)
		if err != nil {
			return eris.Wrap(err, "crawl run")
		}

		log.Info("run complete",
			zap.String("run_id", outcome.RunID),
			zap.String("run_dir", outcome.RunDir),
			zap.Int("zips_processed", outcome.State.ZipProcessed),
			zap.Int("unique_dealers", outcome.State.UniqueDealers),
			zap.Int("blocked", outcome.State.BlockedCount),
			zap.Int("errors", outcome.State.ErrorCount),
			zap.Bool("aborted", outcome.State.Aborted),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome.State); err != nil {
			return eris.Wrap(err, "write run summary")
		}

		if outcome.State.Aborted {
			return errAborted
		}
		return nil
	},
}

// applyRunFlagOverrides folds changed flags into the loaded config so a
// single effective configuration flows into the controller.
func applyRunFlagOverrides(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("zip-csv") {
		cfg.Locator.ZipCSV = runZipCSV
	}
	if f.Changed("output-dir") {
		cfg.Run.OutputDir = runOutputDir
	}
	if f.Changed("distance") {
		cfg.Locator.Distance = runDistance
	}
	if f.Changed("category") {
		cfg.Locator.Category = runCategory
	}
	if f.Changed("timeout") {
		cfg.Locator.TimeoutSecs = runTimeoutSecs
	}
	if f.Changed("user-agent") {
		cfg.Locator.UserAgent = runUserAgent
	}
	if f.Changed("rps") {
		cfg.Locator.RequestsPerSecond = runRPS
	}
	if f.Changed("max-retries") {
		cfg.Retry.MaxRetries = runMaxRetries
	}
	if f.Changed("retry-base") {
		cfg.Retry.BaseDelaySecs = runRetryBase
	}
	if f.Changed("retry-multiplier") {
		cfg.Retry.BackoffMultiplier = runRetryMult
	}
	if f.Changed("flush-every") {
		cfg.Run.FlushEvery = runFlushEvery
	}
	if f.Changed("skip-raw") {
		cfg.Run.SkipRaw = runSkipRaw
	}
	if f.Changed("fields") {
		cfg.Export.Fields = runFields
	}
	if f.Changed("manual-log") {
		cfg.Run.ManualLog = runManualLog
	}
	if runNoStore {
		cfg.Store.Driver = "none"
	}
}

// selectTargets returns the ZIPs to process: the --zip flags when given,
// otherwise every centroid in ascending order.
func selectTargets(centroids map[string]model.Centroid) []string {
	if len(runZips) > 0 {
		targets := make([]string, 0, len(runZips))
		for _, z := range runZips {
			targets = append(targets, locator.PadZip(z))
		}
		return targets
	}

	targets := make([]string, 0, len(centroids))
	for z := range centroids {
		targets = append(targets, z)
	}
	sort.Strings(targets)
	return targets
}

func init() {
	runCmd.Flags().StringVar(&runZipCSV, "zip-csv", "", "ZIP centroid CSV path (default from config)")
	runCmd.Flags().StringSliceVar(&runZips, "zip", nil, "specific ZIP code to crawl (repeatable; default all centroids)")
	runCmd.Flags().IntVar(&runMaxZips, "max-zips", 0, "process at most N ZIPs (0 = no limit)")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "run output directory root (default from config)")
	runCmd.Flags().IntVar(&runDistance, "distance", 0, "search radius in miles (default from config)")
	runCmd.Flags().StringVar(&runCategory, "category", "", "dealer category filter (default from config)")
	runCmd.Flags().IntVar(&runTimeoutSecs, "timeout", 0, "per-request timeout in seconds (default from config)")
	runCmd.Flags().StringVar(&runUserAgent, "user-agent", "", "User-Agent header override")
	runCmd.Flags().Float64Var(&runRPS, "rps", 0, "max requests per second (default from config)")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", 0, "retries after the first attempt (default from config)")
	runCmd.Flags().Float64Var(&runRetryBase, "retry-base", 0, "base retry delay in seconds (default from config)")
	runCmd.Flags().Float64Var(&runRetryMult, "retry-multiplier", 0, "backoff multiplier (default from config)")
	runCmd.Flags().IntVar(&runFlushEvery, "flush-every", 0, "flush artifacts every N handled ZIPs (0 = final flush only)")
	runCmd.Flags().BoolVar(&runPromptOnBlock, "prompt-on-block", false, "ask on the terminal when a ZIP is blocked instead of retrying automatically")
	runCmd.Flags().BoolVar(&runSkipRaw, "skip-raw", false, "skip writing per-ZIP raw response artifacts")
	runCmd.Flags().BoolVar(&runXLSX, "xlsx", false, "also write the XLSX deliverable")
	runCmd.Flags().StringSliceVar(&runFields, "fields", nil, "deliverable columns (default from config)")
	runCmd.Flags().StringVar(&runResumeFrom, "resume-from", "", "prior run directory or run_state.json to resume from")
	runCmd.Flags().StringVar(&runResumePolicy, "resume-policy", runner.ResumeSkip, "resume policy: skip, blocked, or all")
	runCmd.Flags().StringVar(&runManualLog, "manual-log", "", "manual attention log; with --resume-from its ZIPs join the target list")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "do not index the finished run")
	rootCmd.AddCommand(runCmd)
}
