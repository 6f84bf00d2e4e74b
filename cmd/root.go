package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locator-cli/internal/config"
	"github.com/sells-group/locator-cli/internal/runner"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "locator-cli",
	Short: "Dealer locator crawl orchestrator",
	Long:  "Iterates ZIP centroids against the Holosun dealer locator, deduplicates results across overlapping search radii, and writes CSV/XLSX deliverables with full run state for resume.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		switch {
		case errors.Is(err, runner.ErrNoZips):
			os.Exit(2)
		case errors.Is(err, errAborted):
			os.Exit(3)
		case errors.Is(err, errValidationFailed):
			os.Exit(3)
		default:
			os.Exit(1)
		}
	}
}
