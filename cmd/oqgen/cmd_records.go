package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/oqgen/internal/adapters/audit"
	"github.com/0xcro3dile/oqgen/internal/adapters/runstore"
)

var (
	historyLimit int
	historyJSON  bool
	auditLogPath string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent pipeline runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runstore.Open(runsPath(cfg.Paths.DataDir))
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if historyJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No runs recorded")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tRUN ID\tDOCUMENT\tCATEGORY\tTESTS\tSTATUS")
		for _, r := range records {
			category := "-"
			if r.Category != 0 {
				category = fmt.Sprintf("%d (%.2f)", r.Category, r.Confidence)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.StartedAt.Local().Format(time.DateTime), r.RunID, r.DocumentName, category, r.TestCount, r.Status)
		}
		return tw.Flush()
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute the audit hash chain and report the first broken record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := auditLogPath
		if path == "" {
			path = auditPath(cfg.Paths.OutputDir)
		}

		res, err := audit.Verify(path)
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no audit log at %s", path)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !res.Valid {
			fmt.Fprintf(out, "%s: chain broken at line %d after %d valid records: %s\n",
				path, res.BrokenAt, res.Records, res.Reason)
			return fmt.Errorf("%w at line %d", audit.ErrBrokenChain, res.BrokenAt)
		}
		fmt.Fprintf(out, "%s: %d records, chain intact\n  head %s\n", path, res.Records, res.LastHash)
		return nil
	},
}

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge base",
}

var kbClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every document from the knowledge base",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApplication(cmd.Context(), cfg, logger, false)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.ingest.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clearing knowledge base: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Knowledge base cleared")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the oqgen version",
	Args:  cobra.NoArgs,
	// No configuration needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "oqgen", version)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print runs as JSON")

	auditVerifyCmd.Flags().StringVar(&auditLogPath, "path", "", "Audit log to verify (default <output_dir>/audit/audit.jsonl)")
	auditCmd.AddCommand(auditVerifyCmd)
	kbCmd.AddCommand(kbClearCmd)
}
