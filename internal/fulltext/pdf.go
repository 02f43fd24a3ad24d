// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/litpipe/internal/container"
)

// ContainerPDFConverter converts PDFs by piping them through a converter
// image (for example one wrapping pdftotext) that reads a PDF on stdin and
// writes plain text to stdout.
type ContainerPDFConverter struct {
	runtime container.Runtime
	image   string
}

// NewContainerPDFConverter verifies that image exists in rt before
// returning the converter.
func NewContainerPDFConverter(ctx context.Context, rt container.Runtime, image string) (*ContainerPDFConverter, error) {
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("PDF converter image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerPDFConverter{runtime: rt, image: image}, nil
}

// ConvertPDF runs the converter image over pdf.
func (c *ContainerPDFConverter) ConvertPDF(ctx context.Context, pdf io.Reader) (string, error) {
	var out bytes.Buffer
	if err := c.runtime.Run(ctx, c.image, pdf, &out); err != nil {
		return "", fmt.Errorf("converting PDF with %s: %w", c.image, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("%w: %s produced no output", ErrEmptyText, c.image)
	}
	return out.String(), nil
}
