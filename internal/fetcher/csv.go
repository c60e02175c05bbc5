// Package fetcher reads tabular source files (CSV, JSON, XLSX) into rows
// and records for the KB importer and the spec ingestor.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter rune   // default ','
	Charset   string // e.g. "shift_jis"; default UTF-8 with optional BOM
	Comment   rune   // comment character (0 = none)
	SkipRows  int    // number of leading rows to drop
	TrimSpace bool
}

// ReadCSV reads every record from r. Rows may have a variable number of
// fields. Estimating spreadsheets exported from Excel are often Shift_JIS or
// carry a UTF-8 BOM; both are decoded to plain UTF-8.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	src, err := decodeCharset(r, opts.Charset)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(src)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for i := 0; ; i++ {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: read row %d", i+1)
		}
		if i < opts.SkipRows {
			continue
		}

		if opts.TrimSpace {
			for j, field := range record {
				record[j] = strings.TrimSpace(field)
			}
		}
		rows = append(rows, record)
	}

	return rows, nil
}

func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}
