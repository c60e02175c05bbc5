package generate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"bare", `[{"a":1}]`, `[{"a":1}]`, false},
		{"code fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`, false},
		{"prose around", "以下が結果です。\n[1, 2]\n以上", `[1, 2]`, false},
		{"line comment", "[1, // 一つ目\n2]", "[1, \n2]", false},
		{"no array", "申し訳ありません", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.text, '[', ']')
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripComments_KeepsURLsInStrings(t *testing.T) {
	in := `{"url": "https://example.jp/a", "note": "a \"//\" b"} // trailing`
	assert.Equal(t, `{"url": "https://example.jp/a", "note": "a \"//\" b"} `, stripComments(in))
}

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{`12.5`, ptr(12.5)},
		{`"1,200"`, ptr(1200)},
		{`null`, nil},
		{`""`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f flexFloat
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.Equal(t, tt.want, f.v)
		})
	}

	var f flexFloat
	assert.Error(t, json.Unmarshal([]byte(`"約100"`), &f))
}

func TestFlexString(t *testing.T) {
	var s struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "15A", "b": 1, "c": null}`), &s))
	assert.Equal(t, flexString("15A"), s.A)
	assert.Equal(t, flexString("1"), s.B)
	assert.Equal(t, flexString(""), s.C)
}

func ptr(v float64) *float64 { return &v }
