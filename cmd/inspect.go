package cmd

import (
	"archive/zip"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vitalsync/healthimport/internal/aggregate"
	"github.com/vitalsync/healthimport/internal/archive"
	"github.com/vitalsync/healthimport/internal/extractor"
)

// inspectCmd dry-runs extraction and aggregation on a local archive.
var inspectCmd = &cobra.Command{
	Use:   "inspect <archive.zip>",
	Short: "Dry-run extraction on a local archive without touching the store",
	Long: `Scans a local export archive, streams its export document through the
extractor, runs both aggregation algorithms, and prints per-kind counters and
the metric rows that would be persisted. Nothing is written anywhere; useful
for checking what an uploaded archive will produce before processing it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		archivePath := args[0]

		zr, err := zip.OpenReader(archivePath)
		if err != nil {
			return fmt.Errorf("open archive %s: %w", archivePath, err)
		}
		defer zr.Close()

		exportFile, err := archive.LocateExportFile(logger, &zr.Reader)
		if err != nil {
			return err
		}
		rc, err := exportFile.Open()
		if err != nil {
			return fmt.Errorf("open export entry %s: %w", exportFile.Name, err)
		}
		defer rc.Close()

		result, err := extractor.Run(cmd.Context(), logger, rc)
		if err != nil {
			return err
		}

		rows := result.Direct
		rows = append(rows, aggregate.DayBuckets(logger, result.Intervals)...)
		rows = append(rows, aggregate.PairReadings(logger, result.Paired)...)

		fmt.Printf("--- Extraction Summary: %s ---\n", exportFile.Name)
		fmt.Printf("records scanned:   %d\n", result.Stats.Scanned)
		fmt.Printf("records matched:   %d\n", result.Stats.Matched)
		fmt.Printf("records malformed: %d\n", result.Stats.Malformed)

		kinds := make([]string, 0, len(result.Stats.PerKind))
		for k := range result.Stats.PerKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			ks := result.Stats.PerKind[k]
			fmt.Printf("  %-55s count=%-6d first=%s last=%s\n",
				k, ks.Count, ks.First.Format("2006-01-02"), ks.Last.Format("2006-01-02"))
		}

		fmt.Printf("\n--- Metric Rows (%d) ---\n", len(rows))
		for _, row := range rows {
			fmt.Printf("%-20s %10.2f %-8s %s\n",
				row.Code, row.Value, row.Unit, row.MeasuredAt.Format("2006-01-02 15:04:05 -0700"))
		}
		return nil
	},
}
