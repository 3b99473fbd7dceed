package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vitalsync/healthimport/internal/app"
	"github.com/vitalsync/healthimport/internal/db"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Interactive dashboard over the import queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := openDB(cmd.Context())
		if err != nil {
			return err
		}

		fetch := func(ctx context.Context, limit int) ([]db.Import, error) {
			return db.ListImports(ctx, conn, "", limit)
		}

		model := app.NewModel(fetch)
		if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("running dashboard: %w", err)
		}
		return nil
	},
}
