// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the litpipe CLI: retrieve literature
// for a query, rank and dedup it, acquire full text, and summarize.
package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/litpipe/internal/observability"
	"github.com/pdiddy/litpipe/internal/secrets"
	"github.com/pdiddy/litpipe/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds contact details loaded from the secrets directory at startup.
var loadedSecrets map[string]string

// log is the process logger, built once flags and config are known.
var log = zerolog.Nop()

// rootCmd is the base command for the litpipe CLI.
var rootCmd = &cobra.Command{
	Use:   "litpipe",
	Short: "Literature retrieval, full-text acquisition, and summarization",
	Long: `litpipe finds highly cited recent literature for a query, merges duplicate
records, tries to obtain each record's full text, and writes structured
summaries. When full text cannot be retrieved the record is kept with a
clearly labeled metadata-derived summary.

Runs can use a live bibliographic API, a pre-built candidate cache, or the
live API with the cache as fallback.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		logCfg := types.DefaultPipelineConfig().Logging
		if v := viper.GetString("logging.level"); v != "" {
			logCfg.Level = v
		}
		if v := viper.GetString("logging.format"); v != "" {
			logCfg.Format = v
		}
		if cmd.Flags().Changed("log-level") {
			logCfg.Level = level
		}
		if cmd.Flags().Changed("log-format") {
			logCfg.Format = format
		}
		log = observability.NewLogger(logCfg, os.Stderr)

		if f := viper.ConfigFileUsed(); f != "" {
			log.Debug().Str("path", f).Msg("using config file")
		}

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, log)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./litpipe.yaml or ~/.config/litpipe/litpipe.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: console or json")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of secret files (crossref-mailto, openalex-email)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("litpipe")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "litpipe"))
		}
	}

	viper.SetEnvPrefix("LITPIPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
