package ocr

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidquote/internal/config"
)

func TestNewExtractor(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantErr  string
	}{
		{"local", "local", ""},
		{"default", "", ""},
		{"unknown", "mistral", `unknown provider "mistral"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := NewExtractor(config.OCRConfig{Provider: tt.provider, PdfToTextPath: "/usr/bin/pdftotext"})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &PdfToText{}, ext)
		})
	}
}

func TestPdfToText_BinPath(t *testing.T) {
	p := NewPdfToText("")
	assert.Equal(t, "pdftotext", p.binPath)

	p = NewPdfToText("/custom/pdftotext")
	assert.Equal(t, "/custom/pdftotext", p.binPath)
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spec.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644))
	return path
}

func TestPdfToText_ExtractText_BinaryNotFound(t *testing.T) {
	p := NewPdfToText("/nonexistent/pdftotext")
	_, err := p.ExtractText(context.Background(), writePDF(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestPdfToText_ExtractText_MissingFile(t *testing.T) {
	p := NewPdfToText("")
	_, err := p.ExtractText(context.Background(), "/nonexistent/spec.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr: open")
}

func TestPdfToText_ExtractText_Success(t *testing.T) {
	dir := t.TempDir()
	fakeBin := filepath.Join(dir, "pdftotext")
	script := "#!/bin/sh\nprintf '機械設備工事\\f電気設備工事\\f'\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0o755))

	p := NewPdfToText(fakeBin)
	text, err := p.ExtractText(context.Background(), writePDF(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"機械設備工事", "電気設備工事"}, Pages(text))
}

func TestPdfToText_Args(t *testing.T) {
	tests := []struct {
		name     string
		maxPages int
		want     []string
	}{
		{"all pages", 0, []string{"-layout", "-enc", "UTF-8", "a.pdf", "-"}},
		{"negative", -3, []string{"-layout", "-enc", "UTF-8", "a.pdf", "-"}},
		{"limited", 40, []string{"-layout", "-enc", "UTF-8", "-f", "1", "-l", "40", "a.pdf", "-"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPdfToText("", WithMaxPages(tt.maxPages)).args("a.pdf"))
		})
	}
}

func TestPdfToText_ExtractText_PassesPageLimit(t *testing.T) {
	dir := t.TempDir()
	fakeBin := filepath.Join(dir, "pdftotext")
	script := "#!/bin/sh\necho \"$@\"\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0o755))

	ext, err := NewExtractor(config.OCRConfig{PdfToTextPath: fakeBin, MaxPages: 5})
	require.NoError(t, err)
	text, err := ext.ExtractText(context.Background(), writePDF(t))
	require.NoError(t, err)
	assert.Contains(t, text, "-f 1 -l 5")
}

func TestPages(t *testing.T) {
	assert.Nil(t, Pages(""))
	assert.Equal(t, []string{"one"}, Pages("one"))
	assert.Equal(t, []string{"one", "two"}, Pages("one\ftwo\f\n"))
	assert.Equal(t, []string{"one", "", "three"}, Pages("one\f\fthree"))
}
