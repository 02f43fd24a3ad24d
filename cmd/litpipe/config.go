// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/litpipe/internal/secrets"
	"github.com/pdiddy/litpipe/pkg/types"
)

// defaults supplies flag defaults so an unset flag never overrides a value
// from the config file with something different from the built-in default.
var defaults = types.DefaultPipelineConfig()

// loadConfig binds the command's flags to configuration keys and decodes the
// merged configuration (flags, LITPIPE_* environment, config file) over the
// built-in defaults. Secrets fill the polite-pool contact.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (types.PipelineConfig, error) {
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return types.PipelineConfig{}, fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}

	cfg := types.DefaultPipelineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	if _, err := types.ParseMode(string(cfg.Source.Mode)); err != nil {
		return cfg, err
	}
	secrets.Apply(loadedSecrets, &cfg)
	return cfg, nil
}

// addSourceFlags registers the metadata source flags shared by run and
// cache build.
func addSourceFlags(cmd *cobra.Command, keys map[string]string) {
	cmd.Flags().String("backend", defaults.Source.Backend, "live backend: crossref or openalex")
	cmd.Flags().Int("max-results", defaults.Source.MaxResults, "maximum candidates to request or read")
	cmd.Flags().Int("years", defaults.Rank.RecencyWindowYears, "recency window in years (0 disables)")
	cmd.Flags().Int("current-year", 0, "reference year for the recency window (default: this year)")
	cmd.Flags().String("email", "", "contact email for the Crossref/OpenAlex polite pool")

	keys["backend"] = "source.backend"
	keys["max-results"] = "source.max_results"
	keys["years"] = "rank.recency_window_years"
	keys["current-year"] = "rank.current_year"
	keys["email"] = "source.email"
}
