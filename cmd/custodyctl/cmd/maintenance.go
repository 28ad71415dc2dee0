package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ndewijer/custody-ingest/internal/database"
	"github.com/ndewijer/custody-ingest/internal/validation"
)

func newDedupCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Resolve duplicate holdings",
		Long: `Run one deduplication pass. In delete mode older duplicates are removed;
in flag mode they are kept and marked.

Examples:
  custodyctl dedup
  custodyctl dedup --mode flag`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateDedupMode(mode); err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Maintenance.RunDedup(cmd.Context(), mode)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "delete or flag (default from DEDUP_MODE)")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [isin]...",
		Short: "Classify holdings through OpenFIGI",
		Long: `Without arguments, classify every holding whose security type is unknown.
With ISINs, force a fresh lookup for those ISINs. Requires ENRICHMENT_ENABLED=true.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				if err := validation.ValidateISINs(args); err != nil {
					return err
				}
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				summary, err := a.Maintenance.ClassifyUnknown(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			}
			summary, err := a.Maintenance.Reclassify(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			v, err := database.SchemaVersion(cmd.Context(), a.DB)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int64{"schemaVersion": v})
		},
	}
}
