// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litpipe/internal/source"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage candidate caches for offline runs",
}

var cacheBuildFlagKeys = map[string]string{}

var cacheBuildCmd = &cobra.Command{
	Use:   "build [query]",
	Short: "Fetch candidates from the live backend and write a cache file",
	Long: `Build queries the live backend once and writes the normalized
candidates to --output. The file is JSON unless the name ends in .yaml or
.yml, and an offline run reads it back with --cache.`,
	RunE: runCacheBuild,
}

func init() {
	cacheBuildCmd.Flags().String("query", "", "search query (or pass it as arguments)")
	cacheBuildCmd.Flags().StringP("output", "o", "", "cache file to write")
	_ = cacheBuildCmd.MarkFlagRequired("output")
	addSourceFlags(cacheBuildCmd, cacheBuildFlagKeys)

	cacheCmd.AddCommand(cacheBuildCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheBuild(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	if query == "" {
		query = strings.Join(args, " ")
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("provide a query with --query or as arguments")
	}
	output, _ := cmd.Flags().GetString("output")

	cfg, err := loadConfig(cmd, cacheBuildFlagKeys)
	if err != nil {
		return err
	}
	backend, err := source.NewBackend(cfg.Source.Backend)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q := source.Query{Text: query, MaxResults: cfg.Source.MaxResults}
	if w := cfg.Rank.RecencyWindowYears; w > 0 {
		q.FromYear = cfg.Rank.ReferenceYear(time.Now()) - w
	}
	batch, err := source.NewLiveFetcher(backend, nil, cfg.Source, log).Fetch(ctx, q)
	if err != nil {
		return err
	}
	for _, w := range batch.Warnings {
		log.Warn().Msg(w)
	}
	if err := source.WriteCache(output, query, batch.Candidates); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d candidates to %s\n", len(batch.Candidates), output)
	return nil
}
