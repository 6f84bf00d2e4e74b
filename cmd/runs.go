package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/locator-cli/internal/model"
	"github.com/sells-group/locator-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect crawl run history",
	Long:  "Commands for listing and viewing indexed crawl runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initRunsStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.RunFilter{Limit: limit, Offset: offset}
		switch status {
		case "":
		case "completed":
			filter.OnlyCompleted = true
		case "aborted":
			filter.OnlyAborted = true
		default:
			return eris.Errorf("unknown status filter: %s", status)
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full state of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initRunsStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		_, state, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	},
}

// initRunsStore opens the configured store and refuses the "none" driver,
// which has nothing to inspect.
func initRunsStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("runs"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("run indexing is disabled (store.driver is none)")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.RunListing) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN_ID\tSTARTED\tZIPS\tDEALERS\tBLOCKED\tERRORS\tSTATUS")
	_, _ = fmt.Fprintln(w, "------\t-------\t----\t-------\t-------\t------\t------")

	for _, r := range runs {
		status := "incomplete"
		switch {
		case r.Aborted:
			status = "aborted"
		case r.CompletedAt != nil:
			dur := r.CompletedAt.Sub(r.StartedAt).Round(time.Second)
			status = fmt.Sprintf("completed in %s", dur)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%d\t%d\t%s\n",
			r.RunID,
			r.StartedAt.Format("2006-01-02 15:04"),
			r.ZipProcessed,
			r.ZipTotal,
			r.UniqueDealers,
			r.BlockedCount,
			r.ErrorCount,
			status,
		)
	}
	_ = w.Flush()
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (completed, aborted)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "skip the first N runs")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
