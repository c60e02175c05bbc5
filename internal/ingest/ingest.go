// Package ingest reads bid specification documents (仕様書) into text and
// tables for classification and item generation.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/fetcher"
	"github.com/sells-group/bidquote/internal/ocr"
)

// Table is one tabular block of a document, e.g. a worksheet.
type Table struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// Document is the extracted content of a spec file.
type Document struct {
	Path      string  `json:"path"`
	Text      string  `json:"text"`
	Tables    []Table `json:"tables,omitempty"`
	PageCount int     `json:"page_count"`
}

// Ingestor dispatches on file extension.
type Ingestor struct {
	pdf        ocr.Extractor
	csvCharset string
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithCSVCharset sets the charset of .csv inputs (e.g. "shift_jis").
func WithCSVCharset(charset string) Option {
	return func(i *Ingestor) { i.csvCharset = charset }
}

// New creates an Ingestor. pdf may be nil when PDF input is not expected.
func New(pdf ocr.Extractor, opts ...Option) *Ingestor {
	i := &Ingestor{pdf: pdf}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Ingest extracts a Document from the file at path.
func (i *Ingestor) Ingest(ctx context.Context, path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "ingest: stat %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var (
		doc *Document
		err error
	)
	switch ext {
	case ".pdf":
		doc, err = i.ingestPDF(ctx, path)
	case ".xlsx":
		doc, err = ingestXLSX(path)
	case ".csv":
		doc, err = i.ingestCSV(ctx, path)
	case ".txt", ".md":
		doc, err = ingestText(path)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("ingest: document loaded",
		zap.String("path", path),
		zap.Int("pages", doc.PageCount),
		zap.Int("tables", len(doc.Tables)),
		zap.Int("chars", len([]rune(doc.Text))),
	)
	return doc, nil
}

func (i *Ingestor) ingestPDF(ctx context.Context, path string) (*Document, error) {
	if i.pdf == nil {
		return nil, eris.New("ingest: no pdf extractor configured")
	}
	text, err := i.pdf.ExtractText(ctx, path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: pdf")
	}
	return &Document{Path: path, Text: text, PageCount: len(ocr.Pages(text))}, nil
}

func ingestXLSX(path string) (*Document, error) {
	sheets, err := fetcher.ReadWorkbook(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: xlsx")
	}
	doc := &Document{Path: path, PageCount: len(sheets)}
	var b strings.Builder
	for _, s := range sheets {
		doc.Tables = append(doc.Tables, Table{Name: s.Name, Rows: s.Rows})
		b.WriteString("## " + s.Name + "\n")
		writeRows(&b, s.Rows)
	}
	doc.Text = b.String()
	return doc, nil
}

func (i *Ingestor) ingestCSV(ctx context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	rows, err := fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{Charset: i.csvCharset, TrimSpace: true})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: csv")
	}
	var b strings.Builder
	writeRows(&b, rows)
	return &Document{
		Path:      path,
		Text:      b.String(),
		Tables:    []Table{{Name: filepath.Base(path), Rows: rows}},
		PageCount: 1,
	}, nil
}

func ingestText(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	return &Document{Path: path, Text: string(data), PageCount: 1}, nil
}

// writeRows joins non-empty cells of each row with a tab.
func writeRows(b *strings.Builder, rows [][]string) {
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, c := range row {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) == 0 {
			continue
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteByte('\n')
	}
}
