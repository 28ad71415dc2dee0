package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ndewijer/custody-ingest/internal/sealing"
	"github.com/ndewijer/custody-ingest/internal/ticker"
	"github.com/ndewijer/custody-ingest/internal/version"
)

func newNormalizeCmd() *cobra.Command {
	var hints ticker.Hints

	cmd := &cobra.Command{
		Use:   "normalize <symbol>",
		Short: "Print a ticker in SYMBOL.EXCHANGE form",
		Long: `Normalize a bare or suffixed ticker. Hints are used in order:
exchange, country, currency.

Examples:
  custodyctl normalize MC
  custodyctl normalize xyz --currency CHF`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized := ticker.Normalize(args[0], hints)
			if normalized == "" {
				return fmt.Errorf("symbol is empty")
			}
			fmt.Fprintln(cmd.OutOrStdout(), normalized)
			return nil
		},
	}
	cmd.Flags().StringVar(&hints.Exchange, "exchange", "", "exchange suffix, MIC or venue name")
	cmd.Flags().StringVar(&hints.Country, "country", "", "ISO country code")
	cmd.Flags().StringVar(&hints.Currency, "currency", "", "quote currency")
	return cmd
}

func newGenKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate a payload sealing key for PAYLOAD_SEALING_KEYS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := sealing.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "custodyctl version %s\n", version.Version)
		},
	}
}
