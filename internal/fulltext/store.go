// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// textSuffix names the extracted-text sidecar. It is written after the raw
// artifact, so its presence means the entry is complete.
const textSuffix = ".fulltext.txt"

// Store is an append-only artifact directory keyed by record fingerprint.
// Every file is written to a temporary name and renamed into place, so
// concurrent runs sharing a directory never observe partial files.
type Store struct {
	Dir string
}

// Artifact is a completed store entry.
type Artifact struct {
	RawPath  string
	TextPath string
	Text     string
}

// Slug maps a fingerprint to a filesystem-safe stem. DOIs stay readable;
// a short hash keeps stems unique after character replacement.
func Slug(fingerprint string) string {
	h := sha256.Sum256([]byte(fingerprint))
	suffix := fmt.Sprintf("%x", h[:6])
	if doi, ok := strings.CutPrefix(fingerprint, "doi:"); ok {
		safe := strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
				return r
			default:
				return '-'
			}
		}, doi)
		if len(safe) > 80 {
			safe = safe[:80]
		}
		return safe + "-" + suffix
	}
	return "title-" + suffix
}

// Lookup returns the completed artifact for fingerprint. A missing entry is
// reported with ok=false and is never an error.
func (s *Store) Lookup(fingerprint string) (Artifact, bool) {
	stem := filepath.Join(s.Dir, Slug(fingerprint))
	textPath := stem + textSuffix
	data, err := os.ReadFile(textPath)
	if err != nil || len(data) == 0 {
		return Artifact{}, false
	}

	art := Artifact{TextPath: textPath, Text: string(data)}
	matches, _ := filepath.Glob(stem + ".*")
	for _, m := range matches {
		if m != textPath {
			art.RawPath = m
			break
		}
	}
	if art.RawPath == "" {
		art.RawPath = textPath
	}
	return art, true
}

// Save writes the raw body and then the text sidecar, each atomically, and
// returns the raw artifact path.
func (s *Store) Save(fingerprint, ext string, raw []byte, text string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}
	stem := filepath.Join(s.Dir, Slug(fingerprint))
	rawPath := stem + ext
	if err := writeAtomic(rawPath, raw); err != nil {
		return "", err
	}
	if err := writeAtomic(stem+textSuffix, []byte(text)); err != nil {
		return "", err
	}
	return rawPath, nil
}

// writeAtomic writes data to a temporary file in the destination directory
// and renames it into place.
func writeAtomic(destPath string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), "~partial-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing artifact: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
