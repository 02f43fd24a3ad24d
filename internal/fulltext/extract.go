// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// minWords is the shortest extraction accepted as full text. Shorter
// results are usually paywall stubs or cookie banners.
const minWords = 40

const acceptHeader = "application/pdf, application/jats+xml;q=0.9, application/xml;q=0.9, text/html;q=0.8, text/plain;q=0.7, */*;q=0.1"

// mediaTypeOf returns the bare media type, sniffing the body when the
// server sent none or a generic binary type.
func mediaTypeOf(header string, body []byte) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil || mt == "" || mt == "application/octet-stream" || mt == "binary/octet-stream" {
		switch {
		case bytes.HasPrefix(body, []byte("%PDF-")):
			return "application/pdf"
		case bytes.HasPrefix(bytes.TrimSpace(body), []byte("<?xml")):
			return "application/xml"
		}
		mt, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}
	return strings.ToLower(mt)
}

// extensionFor maps a media type to the raw artifact extension.
func extensionFor(mediaType string) string {
	switch {
	case mediaType == "application/pdf":
		return ".pdf"
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return ".html"
	case isXML(mediaType):
		return ".xml"
	case mediaType == "text/plain":
		return ".txt"
	default:
		return ".bin"
	}
}

func isXML(mediaType string) bool {
	return mediaType == "application/xml" || mediaType == "text/xml" ||
		(strings.HasSuffix(mediaType, "+xml") && mediaType != "application/xhtml+xml")
}

// extract converts a fetched body into plain text, one paragraph per line.
func (a *Acquirer) extract(ctx context.Context, mediaType string, body []byte, pageURL string) (string, error) {
	var (
		text string
		err  error
	)
	switch {
	case mediaType == "text/plain":
		text = string(body)
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		text, err = extractHTML(body, pageURL)
	case isXML(mediaType):
		text, err = extractXML(body)
	case mediaType == "application/pdf":
		if a.converter == nil {
			return "", fmt.Errorf("%w: %s (no PDF converter configured)", ErrUnsupportedContent, mediaType)
		}
		text, err = a.converter.ConvertPDF(ctx, bytes.NewReader(body))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, mediaType)
	}
	if err != nil {
		return "", err
	}

	text = cleanText(text)
	if n := len(strings.Fields(text)); n < minWords {
		return "", fmt.Errorf("%w: %d words from %s", ErrEmptyText, n, mediaType)
	}
	return text, nil
}

// extractHTML runs readability over the page and falls back to the whole
// document body when readability finds no article.
func extractHTML(body []byte, pageURL string) (string, error) {
	parsedURL, _ := url.Parse(pageURL)
	if article, err := readability.FromReader(bytes.NewReader(body), parsedURL); err == nil && article.Content != "" {
		if text, err := htmlBlocks(strings.NewReader(article.Content)); err == nil && len(strings.Fields(text)) >= minWords {
			return text, nil
		}
	}
	return htmlBlocks(bytes.NewReader(body))
}

func htmlBlocks(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, figure, form").Remove()
	return blocks(doc, htmlBlockTags, nil), nil
}

var htmlBlockTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "li": true, "blockquote": true, "pre": true,
}

// JATS elements read as paragraphs. Section titles keep headings such as
// "Abstract" and "Results" on their own line.
var jatsBlockTags = map[string]bool{
	"article-title": true, "title": true, "p": true,
}

// extractXML reads JATS (and similar) article XML. The abstract element gets
// an explicit heading so the summarizer can find it.
func extractXML(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing XML: %w", err)
	}
	doc.Find("ref-list, table-wrap, fig, xref, back").Remove()
	return blocks(doc, jatsBlockTags, map[string]string{"abstract": "Abstract"}), nil
}

// blocks walks the document in order and emits the text of each block
// element on its own line. headings inserts a fixed line before matching
// elements.
func blocks(doc *goquery.Document, tags map[string]bool, headings map[string]string) string {
	var lines []string
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		if h, ok := headings[name]; ok {
			lines = append(lines, h)
		}
		if !tags[name] {
			return
		}
		// A block inside another block is covered by the outer text.
		if s.ParentsFiltered(blockSelector(tags)).Length() > 0 {
			return
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			lines = append(lines, t)
		}
	})
	if len(lines) == 0 {
		return doc.Text()
	}
	return strings.Join(lines, "\n")
}

func blockSelector(tags map[string]bool) string {
	names := make([]string, 0, len(tags))
	for t := range tags {
		names = append(names, t)
	}
	return strings.Join(names, ", ")
}

// cleanText collapses whitespace within lines and drops blank lines.
func cleanText(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
