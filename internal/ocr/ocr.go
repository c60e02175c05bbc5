// Package ocr turns specification PDFs into plain text.
package ocr

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bidquote/internal/config"
)

// Extractor extracts text content from PDF files.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath, WithMaxPages(cfg.MaxPages)), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// Pages splits extracted text on the form feeds pdftotext emits between
// pages. A trailing empty page is dropped.
func Pages(text string) []string {
	if text == "" {
		return nil
	}
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}
