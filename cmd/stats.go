package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitalsync/healthimport/internal/db"
)

var statsUserID string

// statsCmd summarizes persisted metric values per code.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize persisted metric values per metric code",
	Long: `Reports, per metric code, how many values have been persisted and the time
range they cover. Use --user to restrict the summary to one user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := openDB(ctx)
		if err != nil {
			return err
		}

		summaries, err := db.SummarizeMetricValues(ctx, conn, statsUserID)
		if err != nil {
			return err
		}

		fmt.Println("--- Persisted Metric Values ---")
		fmt.Printf("%-20s | %-8s | %-12s | %s\n", "Code", "Count", "First", "Latest")
		fmt.Println(strings.Repeat("-", 60))
		for _, s := range summaries {
			fmt.Printf("%-20s | %-8d | %-12s | %s\n",
				s.Code, s.Count, s.FirstAt.UTC().Format("2006-01-02"), s.LatestAt.UTC().Format("2006-01-02"))
		}
		fmt.Printf("%d metric codes with data.\n", len(summaries))
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVarP(&statsUserID, "user", "u", "", "Restrict the summary to one user identifier")
}
