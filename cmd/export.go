package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locator-cli/internal/dealer"
	"github.com/sells-group/locator-cli/internal/export"
)

// errValidationFailed maps --fail-on-validation to its own exit code in main.
var errValidationFailed = eris.New("deliverable validation failed")

var (
	exportOutput    string
	exportFields    []string
	exportDelimiter string
	exportXLSX      bool
	exportMetrics   string
	exportFullCSV   string
	exportFailOnBad bool
)

var exportCmd = &cobra.Command{
	Use:   "export <normalized_dealers.json>",
	Short: "Regenerate deliverables from a normalized dealer snapshot",
	Long:  "Reads the normalized dealer JSON a run produced and rewrites the deliverable CSV, and optionally the XLSX, full CSV, and metrics files, without re-crawling.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zap.L().With(zap.String("component", "export"))

		applyExportFlagOverrides(cmd)

		input := args[0]
		raw, err := os.ReadFile(input)
		if err != nil {
			return eris.Wrap(err, "read snapshot")
		}

		var snapshot []map[string]any
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			return eris.Wrap(err, "parse snapshot")
		}

		acc := dealer.NewAccumulator()
		if err := acc.LoadSnapshot(snapshot); err != nil {
			return eris.Wrap(err, "load snapshot")
		}
		aggs := acc.ToList()

		issues := export.Validate(aggs)
		for _, issue := range issues {
			log.Warn("validation issue", zap.String("issue", issue))
		}

		output := exportOutput
		if output == "" {
			output = strings.TrimSuffix(input, filepath.Ext(input)) + ".csv"
		}

		if err := export.WriteDeliverableCSV(aggs, output, cfg.Export.Fields); err != nil {
			return eris.Wrap(err, "write deliverable csv")
		}
		log.Info("deliverable written", zap.String("path", output), zap.Int("dealers", len(aggs)))

		if exportXLSX {
			path := strings.TrimSuffix(output, filepath.Ext(output)) + ".xlsx"
			if err := export.WriteDeliverableXLSX(aggs, path, cfg.Export.Fields); err != nil {
				return eris.Wrap(err, "write deliverable xlsx")
			}
			log.Info("xlsx written", zap.String("path", path))
		}

		if exportFullCSV != "" {
			if err := export.WriteFullCSV(aggs, exportFullCSV, cfg.Export.ListDelimiter); err != nil {
				return eris.Wrap(err, "write full csv")
			}
			log.Info("full csv written", zap.String("path", exportFullCSV))
		}

		if exportMetrics != "" {
			m := export.ComputeMetrics(aggs)
			data, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return eris.Wrap(err, "marshal metrics")
			}
			if err := os.WriteFile(exportMetrics, append(data, '\n'), 0o644); err != nil {
				return eris.Wrap(err, "write metrics")
			}
			log.Info("metrics written", zap.String("path", exportMetrics))
		}

		if exportFailOnBad && len(issues) > 0 {
			return eris.Wrapf(errValidationFailed, "%d issues", len(issues))
		}
		return nil
	},
}

func applyExportFlagOverrides(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("fields") {
		cfg.Export.Fields = exportFields
	}
	if f.Changed("delimiter") {
		cfg.Export.ListDelimiter = exportDelimiter
	}
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "deliverable CSV path (default: input with .csv extension)")
	exportCmd.Flags().StringSliceVar(&exportFields, "fields", nil, "deliverable columns (default from config)")
	exportCmd.Flags().StringVar(&exportDelimiter, "delimiter", "", "list join delimiter for the full CSV (default from config)")
	exportCmd.Flags().BoolVar(&exportXLSX, "xlsx", false, "also write the XLSX deliverable")
	exportCmd.Flags().StringVar(&exportMetrics, "metrics", "", "also write run metrics JSON to this path")
	exportCmd.Flags().StringVar(&exportFullCSV, "full-csv", "", "also write the full per-field CSV to this path")
	exportCmd.Flags().BoolVar(&exportFailOnBad, "fail-on-validation", false, "exit non-zero when validation finds issues")
	rootCmd.AddCommand(exportCmd)
}
