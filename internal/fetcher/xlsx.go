package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of leading rows to drop
}

// Sheet is the string content of one worksheet.
type Sheet struct {
	Name string
	Rows [][]string
}

// ReadXLSX reads one worksheet and returns its rows as string slices.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

// ReadWorkbook reads every worksheet in file order. Fully blank rows are
// dropped.
func ReadWorkbook(path string) ([]Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheets := make([]Sheet, 0, len(f.Sheets))
	for _, s := range f.Sheets {
		out := Sheet{Name: s.Name}
		for _, row := range s.Rows {
			cells := rowToStrings(row)
			if isBlank(cells) {
				continue
			}
			out.Rows = append(out.Rows, cells)
		}
		sheets = append(sheets, out)
	}
	return sheets, nil
}

// FindHeader returns the index of the first row containing every one of the
// required labels, or -1.
func FindHeader(rows [][]string, required ...string) int {
	for i, row := range rows {
		found := 0
		for _, want := range required {
			for _, cell := range row {
				if strings.TrimSpace(cell) == want {
					found++
					break
				}
			}
		}
		if found == len(required) {
			return i
		}
	}
	return -1
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	// Trailing empty cells are formatting noise.
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
