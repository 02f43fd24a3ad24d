// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/litpipe/internal/ledger"
	"github.com/pdiddy/litpipe/internal/observability"
	"github.com/pdiddy/litpipe/internal/pipeline"
	"github.com/pdiddy/litpipe/internal/report"
	"github.com/pdiddy/litpipe/pkg/types"
)

var runFlagKeys = map[string]string{
	"mode":          "source.mode",
	"cache":         "source.cache_path",
	"save-cache":    "source.save_cache",
	"max-records":   "max_records",
	"workers":       "workers",
	"artifacts-dir": "fulltext.artifacts_dir",
	"pdf-image":     "fulltext.pdf_image",
	"ledger":        "ledger.path",
}

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Retrieve, rank, acquire, and summarize literature for a query",
	Long: `Run fetches candidates for the query, merges duplicates, drops records
outside the recency window, and ranks the rest by citation count. Each
ranked record then goes through full-text acquisition and summarization.

Records whose full text cannot be retrieved keep a summary labeled
[metadata-derived]. Interrupting the run returns the records completed so
far, in ranked order.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("query", "", "search query (or pass it as arguments)")
	runCmd.Flags().String("mode", string(defaults.Source.Mode), "offline, online, or online-with-fallback")
	runCmd.Flags().String("cache", "", "candidate cache file (JSON, or YAML by extension)")
	runCmd.Flags().String("save-cache", "", "write live candidates to this cache file")
	runCmd.Flags().Int("max-records", defaults.MaxRecords, "maximum ranked records to acquire and summarize (0 = all)")
	runCmd.Flags().Int("workers", defaults.Workers, "concurrent full-text acquisitions")
	runCmd.Flags().String("artifacts-dir", defaults.Fulltext.ArtifactsDir, "artifact store for downloaded full text")
	runCmd.Flags().String("pdf-image", "", "container image that converts PDF on stdin to text on stdout")
	runCmd.Flags().String("format", "table", "output format: table, json, csv, csl, or markdown")
	runCmd.Flags().StringP("output", "o", "", "write the report to this file instead of stdout")
	runCmd.Flags().String("summaries-dir", "", "also write one Markdown summary per record here")
	runCmd.Flags().String("ledger", "", "record the run in this SQLite ledger")
	runCmd.Flags().String("metrics-file", "", "write Prometheus metrics in textfile format here")
	addSourceFlags(runCmd, runFlagKeys)

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	if query == "" {
		query = strings.Join(args, " ")
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("provide a query with --query or as arguments")
	}

	cfg, err := loadConfig(cmd, runFlagKeys)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	p, err := pipeline.FromConfig(ctx, cfg, log, pipeline.WithMetrics(metrics))
	if err != nil {
		return err
	}

	started := time.Now()
	res, runErr := p.Run(ctx, query)

	if path := viper.GetString("ledger.path"); path != "" && res != nil {
		if err := recordRun(context.WithoutCancel(ctx), path, cfg.Source.Mode, started, res); err != nil {
			log.Warn().Err(err).Msg("recording run in ledger failed")
		}
	}
	if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			log.Warn().Err(err).Msg("writing metrics failed")
		}
	}
	if runErr != nil {
		return runErr
	}

	if dir, _ := cmd.Flags().GetString("summaries-dir"); dir != "" {
		if _, err := report.WriteSummaries(dir, res.Records); err != nil {
			return err
		}
	}

	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	return writeReport(cmd.OutOrStdout(), output, format, report.Report{
		Query:     res.Query,
		Records:   res.Records,
		Stats:     res.Stats,
		Aggregate: res.Aggregate,
	})
}

// recordRun saves a finished run in the ledger.
func recordRun(ctx context.Context, path string, mode types.Mode, started time.Time, res *pipeline.Result) error {
	store, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.Save(ctx, &ledger.Run{
		Query:     res.Query,
		Mode:      mode,
		StartedAt: started,
		Stats:     res.Stats,
		Aggregate: res.Aggregate,
		Records:   res.Records,
	})
	if err != nil {
		return err
	}
	log.Info().Str("run", id).Str("ledger", path).Msg("run recorded")
	return nil
}

// writeReport renders r to path, or to stdout when path is empty.
func writeReport(stdout io.Writer, path, format string, r report.Report) error {
	if path == "" {
		return report.Write(stdout, format, r)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := report.Write(f, format, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
