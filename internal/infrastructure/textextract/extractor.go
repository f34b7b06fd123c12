// Package textextract turns uploaded report files into plain text for the
// analysis pipeline.  Plain text passes through directly; PDFs and scans go
// to the external extraction service.
package textextract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/medtext/reportiq/internal/domain/report"
	"github.com/medtext/reportiq/pkg/errors"
)

// TextExtractor produces a RawDocument from an uploaded file.
type TextExtractor interface {
	// Supports reports whether this extractor handles the content type.
	Supports(contentType string) bool
	// Extract returns the document text tagged with its source format.
	Extract(ctx context.Context, filename, contentType string, data []byte) (*report.RawDocument, error)
}

// PlainTextExtractor passes UTF-8 text through unchanged.
type PlainTextExtractor struct{}

// NewPlainTextExtractor returns the passthrough extractor.
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) Supports(contentType string) bool {
	return strings.HasPrefix(baseContentType(contentType), "text/")
}

func (e *PlainTextExtractor) Extract(ctx context.Context, filename, contentType string, data []byte) (*report.RawDocument, error) {
	if !utf8.Valid(data) {
		return nil, errors.New(errors.ErrCodeNoExtractableText, "document is not valid UTF-8 text")
	}
	return &report.RawDocument{
		Text:   string(data),
		Format: report.SourcePlainText,
	}, nil
}

// Router dispatches to the first extractor that supports the content type.
type Router struct {
	extractors []TextExtractor
}

// NewRouter builds a dispatcher over the given extractors, tried in order.
func NewRouter(extractors ...TextExtractor) *Router {
	return &Router{extractors: extractors}
}

func (r *Router) Supports(contentType string) bool {
	for _, e := range r.extractors {
		if e.Supports(contentType) {
			return true
		}
	}
	return false
}

func (r *Router) Extract(ctx context.Context, filename, contentType string, data []byte) (*report.RawDocument, error) {
	for _, e := range r.extractors {
		if e.Supports(contentType) {
			return e.Extract(ctx, filename, contentType, data)
		}
	}
	return nil, errors.New(errors.ErrCodeUnsupportedMedia, "no extractor for content type "+contentType)
}

// baseContentType strips parameters like "; charset=utf-8".
func baseContentType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
