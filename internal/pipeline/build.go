// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/internal/container"
	"github.com/pdiddy/litpipe/internal/fulltext"
	"github.com/pdiddy/litpipe/internal/source"
	"github.com/pdiddy/litpipe/pkg/types"
)

// FromConfig assembles a Pipeline from configuration: the mode decides
// which of the live backend and cache are built, and the artifact store and
// optional PDF converter are attached to the acquirer.
func FromConfig(ctx context.Context, cfg types.PipelineConfig, log zerolog.Logger, opts ...Option) (*Pipeline, error) {
	mode, err := types.ParseMode(string(cfg.Source.Mode))
	if err != nil {
		return nil, err
	}

	var live, cache source.Source
	if mode != types.ModeOffline {
		backend, err := source.NewBackend(cfg.Source.Backend)
		if err != nil {
			return nil, err
		}
		client := &http.Client{Timeout: cfg.Source.Timeout}
		live = source.NewLiveFetcher(backend, client, cfg.Source, log)
	}
	if mode != types.ModeOnline && cfg.Source.CachePath != "" {
		cache = &source.CacheReader{Path: cfg.Source.CachePath}
	}
	src, err := source.Select(mode, live, cache, log)
	if err != nil {
		return nil, err
	}

	acqOpts := []fulltext.Option{
		fulltext.Offline(mode == types.ModeOffline),
		fulltext.WithEmail(cfg.Source.Email),
		fulltext.WithLogger(log),
	}
	if cfg.Fulltext.ArtifactsDir != "" {
		acqOpts = append(acqOpts, fulltext.WithStore(&fulltext.Store{Dir: cfg.Fulltext.ArtifactsDir}))
	}
	if conv := pdfConverter(ctx, cfg.Fulltext.PDFImage, log); conv != nil {
		acqOpts = append(acqOpts, fulltext.WithPDFConverter(conv))
	}
	acq := fulltext.New(cfg.Fulltext, nil, acqOpts...)

	return New(cfg, src, acq, append([]Option{WithLogger(log)}, opts...)...), nil
}

// pdfConverter returns a container-backed converter for image, or nil when
// no image is configured or no runtime can run it. PDFs then degrade as
// unsupported content.
func pdfConverter(ctx context.Context, image string, log zerolog.Logger) fulltext.PDFConverter {
	if image == "" {
		return nil
	}
	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("PDF extraction disabled")
		return nil
	}
	conv, err := fulltext.NewContainerPDFConverter(ctx, rt, image)
	if err != nil {
		log.Warn().Err(err).Msg("PDF extraction disabled")
		return nil
	}
	return conv
}
