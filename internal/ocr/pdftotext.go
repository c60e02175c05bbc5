package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PdfToText shells out to poppler's pdftotext.
type PdfToText struct {
	binPath  string
	maxPages int
}

// PdfOption configures a PdfToText.
type PdfOption func(*PdfToText)

// WithMaxPages stops extraction after n pages. n <= 0 reads the whole file.
func WithMaxPages(n int) PdfOption {
	return func(p *PdfToText) { p.maxPages = n }
}

// NewPdfToText returns an extractor using binPath, or "pdftotext" from PATH.
func NewPdfToText(binPath string, opts ...PdfOption) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	p := &PdfToText{binPath: binPath}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *PdfToText) args(pdfPath string) []string {
	// -layout keeps the column alignment of 仕様書 tables.
	args := []string{"-layout", "-enc", "UTF-8"}
	if p.maxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(p.maxPages))
	}
	return append(args, pdfPath, "-")
}

// ExtractText returns the UTF-8 text of pdfPath, pages separated by form feeds.
func (p *PdfToText) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return "", eris.Wrapf(err, "ocr: open %s", pdfPath)
	}

	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binPath, p.args(pdfPath)...)
	cmd.Stdout, cmd.Stderr = &out, &errOut
	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, errOut.String())
	}

	text := out.String()
	zap.L().Debug("ocr: extracted pdf",
		zap.String("path", pdfPath),
		zap.Int("pages", len(Pages(text))),
		zap.Int("max_pages", p.maxPages),
	)
	return text, nil
}
