package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

type fakeExtractor struct {
	text string
	err  error
	path string
}

func (f *fakeExtractor) ExtractText(_ context.Context, pdfPath string) (string, error) {
	f.path = pdfPath
	return f.text, f.err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngest_PDF(t *testing.T) {
	ext := &fakeExtractor{text: "工事名称 ○○小学校改修工事\f延床面積 3,200㎡\f"}
	path := writeFile(t, "spec.pdf", "%PDF-1.4")

	doc, err := New(ext).Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, ext.path)
	assert.Equal(t, 2, doc.PageCount)
	assert.Contains(t, doc.Text, "小学校")
	assert.Empty(t, doc.Tables)
}

func TestIngest_PDFErrors(t *testing.T) {
	path := writeFile(t, "spec.PDF", "%PDF-1.4")

	_, err := New(nil).Ingest(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pdf extractor")

	_, err = New(&fakeExtractor{err: errors.New("boom")}).Ingest(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: pdf")
}

func TestIngest_Text(t *testing.T) {
	for _, name := range []string{"spec.txt", "spec.md"} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, "都市ガス設備工事\n白ガス管 20A")
			doc, err := New(nil).Ingest(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, "都市ガス設備工事\n白ガス管 20A", doc.Text)
			assert.Equal(t, 1, doc.PageCount)
		})
	}
}

func TestIngest_CSV(t *testing.T) {
	path := writeFile(t, "items.csv", "名称,仕様,数量\n白ガス管, 20A ,10\n,,\n")
	doc, err := New(nil).Ingest(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, doc.Tables, 1)
	assert.Equal(t, "items.csv", doc.Tables[0].Name)
	assert.Equal(t, []string{"白ガス管", "20A", "10"}, doc.Tables[0].Rows[1])
	assert.Equal(t, "名称\t仕様\t数量\n白ガス管\t20A\t10\n", doc.Text)
}

func TestIngest_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("設備概要")
	require.NoError(t, err)
	for _, vals := range [][]string{{"項目", "内容"}, {"延床面積", "3200"}, {"", ""}} {
		row := sheet.AddRow()
		for _, v := range vals {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "spec.xlsx")
	require.NoError(t, f.Save(path))

	doc, err := New(nil).Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.PageCount)
	require.Len(t, doc.Tables, 1)
	assert.Equal(t, "設備概要", doc.Tables[0].Name)
	assert.Len(t, doc.Tables[0].Rows, 2)
	assert.Equal(t, "## 設備概要\n項目\t内容\n延床面積\t3200\n", doc.Text)
}

func TestIngest_Errors(t *testing.T) {
	_, err := New(nil).Ingest(context.Background(), "/nonexistent/spec.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: stat")

	path := writeFile(t, "spec.docx", "x")
	_, err = New(nil).Ingest(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported file type ".docx"`)
}
