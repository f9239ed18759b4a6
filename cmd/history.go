package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"file-validator-service/internal/config"
	"file-validator-service/internal/logging"
	"file-validator-service/internal/store"
)

var (
	historyLimit int
	historyID    string
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded validation runs",
	Long: `Show validation runs recorded with --db, newest first.

Examples:
  # Last 20 runs
  file-validator history --db-path ./data/validations.db

  # One run with its logs and report tables as JSON
  file-validator history --id 6f1c... --json`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("db-path") {
			cfg.Database.Path = dbPath
		}
		logging.Init(cfg.LoggerConfig())

		runs, err := store.Open(cfg.StoreConfig())
		if err != nil {
			return err
		}
		defer runs.Close()

		var found []*store.ValidationRecord
		if historyID != "" {
			rec, err := runs.Get(cmd.Context(), historyID)
			if err != nil {
				return err
			}
			found = append(found, rec)
		} else if found, err = runs.List(cmd.Context(), historyLimit); err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), found, historyJSON)
	},
}

func init() {
	historyCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: validator.yaml or FV_CONFIG_PATH)")
	historyCmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite database path")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyID, "id", "", "Show a single run")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print runs as JSON")
}

func printHistory(w io.Writer, found []*store.ValidationRecord, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(found, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal runs: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if len(found) == 0 {
		fmt.Fprintln(w, "No validation runs recorded")
		return nil
	}
	fmt.Fprintf(w, "%-36s %-19s %-10s %-12s %s\n", "ID", "STARTED", "STATUS", "NAME", "INPUT")
	for _, rec := range found {
		fmt.Fprintf(w, "%-36s %-19s %-10s %-12s %s\n",
			rec.ID, rec.StartedAt.Format(time.DateTime), rec.Status, rec.Name, rec.InputPath)
	}
	return nil
}
