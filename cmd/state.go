package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitalsync/healthimport/internal/db"
)

var stateLimit int
var stateFilterStatus string

// stateCmd shows recent import queue rows.
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "View recent import queue items and their status",
	Long: `Queries the import queue table and displays the most recent items, newest
first. Use --status to filter by lifecycle status (uploaded, processing,
completed, failed) and --limit to bound the output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if stateFilterStatus != "" {
			switch stateFilterStatus {
			case db.StatusUploaded, db.StatusProcessing, db.StatusCompleted, db.StatusFailed:
			default:
				return fmt.Errorf("invalid status filter: %s", stateFilterStatus)
			}
		}

		conn, err := openDB(ctx)
		if err != nil {
			return err
		}
		imports, err := db.ListImports(ctx, conn, stateFilterStatus, stateLimit)
		if err != nil {
			return err
		}

		fmt.Printf("--- Import Queue (limit %d) ---\n", stateLimit)
		fmt.Printf("%-36s | %-10s | %-25s | %-12s | %s\n", "ID", "Status", "Uploaded (UTC)", "Size", "Error")
		fmt.Println(strings.Repeat("-", 110))
		for _, imp := range imports {
			fmt.Printf("%-36s | %-10s | %-25s | %-12d | %s\n",
				imp.ID, imp.Status, imp.UploadedAt.UTC().Format("2006-01-02 15:04:05"),
				imp.SizeBytes, imp.ErrorMessage.String)
		}
		fmt.Printf("Displayed %d items.\n", len(imports))
		return nil
	},
}

func init() {
	stateCmd.Flags().IntVarP(&stateLimit, "limit", "n", 50, "Limit the number of queue items displayed")
	stateCmd.Flags().StringVarP(&stateFilterStatus, "status", "s", "", "Filter items by status (uploaded, processing, completed, failed)")
}
