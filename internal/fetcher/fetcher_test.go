package fetcher

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/japanese"
)

func createTestXLSX(t *testing.T, sheets [][2]any) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s[0].(string))
		require.NoError(t, err)
		for _, rowData := range s[1].([][]string) {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, [][2]any{
		{"表紙", [][]string{{"御見積書"}}},
		{"内訳", [][]string{
			{"名称", "仕様", "数量", "単位", "単価"},
			{"白ガス管", "15A", "93", "m", "8990"},
		}},
	})

	t.Run("by name", func(t *testing.T) {
		rows, err := ReadXLSX(path, XLSXOptions{SheetName: "内訳", SkipRows: 1})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, []string{"白ガス管", "15A", "93", "m", "8990"}, rows[0])
	})

	t.Run("by index", func(t *testing.T) {
		rows, err := ReadXLSX(path, XLSXOptions{})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"御見積書"}}, rows)
	})

	t.Run("missing sheet", func(t *testing.T) {
		_, err := ReadXLSX(path, XLSXOptions{SheetName: "nope"})
		assert.Error(t, err)
		_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 5})
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadXLSX(filepath.Join(t.TempDir(), "none.xlsx"), XLSXOptions{})
		assert.Error(t, err)
	})
}

func TestReadWorkbook(t *testing.T) {
	path := createTestXLSX(t, [][2]any{
		{"A", [][]string{{"x", "", ""}, {"", ""}, {"y"}}},
		{"B", [][]string{}},
	})

	sheets, err := ReadWorkbook(path)
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Equal(t, "A", sheets[0].Name)
	assert.Equal(t, [][]string{{"x"}, {"y"}}, sheets[0].Rows)
	assert.Empty(t, sheets[1].Rows)
}

func TestFindHeader(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"御見積書"},
		{"項番", "名称", "仕様", "数量", "単位", "単価", "金額"},
		{"1", "白ガス管"},
	}
	assert.Equal(t, 1, FindHeader(rows, "名称", "単価"))
	assert.Equal(t, -1, FindHeader(rows, "名称", "メーカー"))
	assert.Equal(t, -1, FindHeader(nil, "名称"))
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	t.Run("utf8 with BOM", func(t *testing.T) {
		t.Parallel()
		in := "\ufeff名称,単価\n白ガス管, 8990 \n"
		rows, err := ReadCSV(context.Background(), strings.NewReader(in), CSVOptions{TrimSpace: true})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"名称", "単価"}, {"白ガス管", "8990"}}, rows)
	})

	t.Run("shift_jis", func(t *testing.T) {
		t.Parallel()
		encoded, err := japanese.ShiftJIS.NewEncoder().String("名称,単価\nガスメーター,12000\n")
		require.NoError(t, err)

		rows, err := ReadCSV(context.Background(), strings.NewReader(encoded), CSVOptions{Charset: "shift_jis", SkipRows: 1})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"ガスメーター", "12000"}}, rows)
	})

	t.Run("variable fields and tabs", func(t *testing.T) {
		t.Parallel()
		rows, err := ReadCSV(context.Background(), strings.NewReader("a\tb\nc\n"), CSVOptions{Delimiter: '\t'})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, rows)
	})

	t.Run("unknown charset", func(t *testing.T) {
		t.Parallel()
		_, err := ReadCSV(context.Background(), strings.NewReader("a"), CSVOptions{Charset: "klingon"})
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ReadCSV(ctx, strings.NewReader("a,b\n"), CSVOptions{})
		assert.Error(t, err)
	})
}

func TestEachJSONElement(t *testing.T) {
	t.Parallel()

	t.Run("walks raw elements", func(t *testing.T) {
		t.Parallel()
		var got []string
		err := EachJSONElement(context.Background(), strings.NewReader(`[{"a":1}, 2, "x"]`), func(i int, raw json.RawMessage) error {
			got = append(got, string(raw))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{`{"a":1}`, `2`, `"x"`}, got)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		err := EachJSONElement(context.Background(), strings.NewReader(""), func(int, json.RawMessage) error {
			t.Fatal("unexpected element")
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("not an array", func(t *testing.T) {
		t.Parallel()
		err := EachJSONElement(context.Background(), strings.NewReader(`{"a":1}`), func(int, json.RawMessage) error { return nil })
		assert.Error(t, err)
	})

	t.Run("callback error stops", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := EachJSONElement(context.Background(), strings.NewReader(`[1,2,3]`), func(int, json.RawMessage) error {
			calls++
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 1, calls)
	})
}

func TestDecodeJSONObject(t *testing.T) {
	t.Parallel()

	type obj struct {
		Name string `json:"name"`
	}
	got, err := DecodeJSONObject[obj](strings.NewReader(`{"name":"ガス"}`))
	require.NoError(t, err)
	assert.Equal(t, "ガス", got.Name)

	_, err = DecodeJSONObject[obj](strings.NewReader(`{`))
	assert.Error(t, err)
}
