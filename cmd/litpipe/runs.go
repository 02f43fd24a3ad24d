// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/litpipe/internal/ledger"
	"github.com/pdiddy/litpipe/internal/report"
)

const defaultLedgerPath = "outputs/litpipe.db"

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect runs recorded in the ledger",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a recorded run; a unique ID prefix is enough",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find recorded records by title, keyword, or summary text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRunsSearch,
}

func init() {
	runsCmd.PersistentFlags().String("ledger", defaultLedgerPath, "SQLite ledger path")
	runsListCmd.Flags().Int("limit", 20, "maximum runs to list")
	runsSearchCmd.Flags().Int("limit", 20, "maximum records to return")
	runsShowCmd.Flags().String("format", "table", "output format: table, json, csv, csl, or markdown")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsSearchCmd)
	rootCmd.AddCommand(runsCmd)
}

// openLedger opens the ledger named by --ledger, or by ledger.path in the
// config file when the flag is not given.
func openLedger(cmd *cobra.Command) (*ledger.Store, error) {
	path, _ := cmd.Flags().GetString("ledger")
	if !cmd.Flags().Changed("ledger") && viper.IsSet("ledger.path") {
		path = viper.GetString("ledger.path")
	}
	return ledger.Open(path)
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	store, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tMODE\tORIGIN\tRECORDS\tFULLTEXT\tQUERY")
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		query := r.Query
		if r.Cancelled {
			query += " (cancelled)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			id, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Mode, r.Origin, r.Records, r.Fulltext, query)
	}
	return tw.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()
	if format == "table" {
		fmt.Fprintf(out, "Run %s (%s, %s)\n\n", run.ID, run.Mode, run.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	return report.Write(out, format, report.Report{
		Query:     run.Query,
		Records:   run.Records,
		Stats:     run.Stats,
		Aggregate: run.Aggregate,
	})
}

func runRunsSearch(cmd *cobra.Command, args []string) error {
	store, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	hits, err := store.Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}
	return writeHits(cmd.OutOrStdout(), hits)
}

// writeHits prints one line per matching record with the run it came from.
func writeHits(w io.Writer, hits []ledger.Hit) error {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No matching records.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPOS\tYEAR\tSOURCE\tTITLE")
	for _, h := range hits {
		id := h.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", id, h.Position+1, h.Record.Year, h.Record.TextSource, h.Record.Title)
	}
	return tw.Flush()
}

