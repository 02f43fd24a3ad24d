// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads contact details and credentials from a directory of
// plain-text files. Each file is one secret: the filename is the key and the
// trimmed contents are the value.
//
// Recognized keys: crossref-mailto, openalex-email.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/pkg/types"
)

// Key names understood by Apply.
const (
	CrossrefMailto = "crossref-mailto"
	OpenAlexEmail  = "openalex-email"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, log zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills the polite-pool contact from secrets when the configuration
// does not already name one, and advertises it in both User-Agent headers.
// The Crossref mailto wins over the OpenAlex email.
func Apply(secrets map[string]string, cfg *types.PipelineConfig) {
	if cfg.Source.Email == "" {
		for _, key := range []string{CrossrefMailto, OpenAlexEmail} {
			if v := secrets[key]; v != "" {
				cfg.Source.Email = v
				break
			}
		}
	}
	if cfg.Source.Email == "" {
		return
	}
	cfg.Source.UserAgent = withMailto(cfg.Source.UserAgent, cfg.Source.Email)
	cfg.Fulltext.UserAgent = withMailto(cfg.Fulltext.UserAgent, cfg.Source.Email)
}

func withMailto(ua, email string) string {
	if ua == "" || strings.Contains(ua, "mailto:") {
		return ua
	}
	return fmt.Sprintf("%s (mailto:%s)", ua, email)
}
