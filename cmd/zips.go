package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/locator-cli/internal/locator"
)

var zipsCheckCSV string

var zipsCmd = &cobra.Command{
	Use:   "zips [zip...]",
	Short: "Check ZIP centroid coverage",
	Long:  "Loads the centroid CSV and reports coverage. With ZIP arguments, lists which of them are missing a centroid; crawling those ZIPs would only produce error events.",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyZipsFlagOverrides(cmd)

		centroids, err := locator.LoadCentroids(cfg.Locator.ZipCSV)
		if err != nil {
			return eris.Wrap(err, "load centroids")
		}

		fmt.Printf("%s: %d ZIP centroids\n", cfg.Locator.ZipCSV, len(centroids))

		if len(args) == 0 {
			return nil
		}

		var missing []string
		for _, z := range args {
			padded := locator.PadZip(z)
			if _, ok := centroids[padded]; !ok {
				missing = append(missing, padded)
			}
		}

		if len(missing) == 0 {
			fmt.Printf("all %d requested ZIPs covered\n", len(args))
			return nil
		}

		fmt.Fprintf(os.Stderr, "%d of %d requested ZIPs missing centroids:\n", len(missing), len(args))
		for _, z := range missing {
			fmt.Fprintln(os.Stderr, "  "+z)
		}
		return eris.Errorf("%d ZIPs missing centroids", len(missing))
	},
}

func applyZipsFlagOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("zip-csv") {
		cfg.Locator.ZipCSV = zipsCheckCSV
	}
}

func init() {
	zipsCmd.Flags().StringVar(&zipsCheckCSV, "zip-csv", "", "ZIP centroid CSV path (default from config)")
	rootCmd.AddCommand(zipsCmd)
}
