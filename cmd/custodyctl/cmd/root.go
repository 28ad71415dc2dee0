package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/ndewijer/custody-ingest/internal/app"
	"github.com/ndewijer/custody-ingest/internal/config"
	"github.com/ndewijer/custody-ingest/internal/logging"
)

var dbPath string

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "custodyctl",
		Short: "Operate the custody statement store from the command line",
		Long: `custodyctl runs the same pipeline as the server against a local store.

It can:
  - Ingest bank statement files and scan the inbox
  - Run deduplication and security classification
  - Apply schema migrations
  - Normalize tickers and generate payload sealing keys

Configuration is read from the environment and .env, like the server.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides DATABASE_PATH)")

	cmd.AddCommand(
		newIngestCmd(),
		newScanCmd(),
		newDedupCmd(),
		newClassifyCmd(),
		newMigrateCmd(),
		newNormalizeCmd(),
		newGenKeyCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openApp loads configuration and opens the store. Logs go to stderr so
// command output stays parseable.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, "console")
	return app.New(cmd.Context(), cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
