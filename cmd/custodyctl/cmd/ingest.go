package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ndewijer/custody-ingest/internal/service"
)

func newIngestCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest statement files",
		Long: `Ingest one or more statement files. Files are routed to a parser by name,
processed in file date order, and reconciled per holding.

Examples:
  custodyctl ingest portef_AB12_20251205.csv
  custodyctl ingest --user alice exports/*.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]service.File, 0, len(args))
			for _, path := range args {
				// #nosec G304 -- paths are given by the operator
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				files = append(files, service.File{Name: filepath.Base(path), Content: content, UserID: userID})
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			outcomes, err := a.Ingestion.IngestBatch(cmd.Context(), files)
			if err != nil {
				return err
			}
			failed := 0
			for _, o := range outcomes {
				if o.Err != nil {
					failed++
				}
			}
			summaries := make([]any, len(outcomes))
			for i, o := range outcomes {
				summaries[i] = o.Summary
			}
			if err := printJSON(cmd.OutOrStdout(), summaries); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user recorded as the source of the files")
	return cmd
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Ingest every file waiting in the inbox directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Ingestion.ScanInbox(cmd.Context(), a.Inbox())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}
