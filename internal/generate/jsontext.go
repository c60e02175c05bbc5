package generate

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// extractJSON returns the outermost first...last span of text with //
// comments removed. Responses may wrap the JSON in prose or code fences.
func extractJSON(text string, first, last byte) (string, error) {
	start := strings.IndexByte(text, first)
	end := strings.LastIndexByte(text, last)
	if start < 0 || end <= start {
		return "", eris.Errorf("generate: no JSON %c...%c in response", first, last)
	}
	return stripComments(text[start : end+1]), nil
}

// stripComments removes // line comments outside of string literals.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '/' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		}
		if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// flexFloat accepts a JSON number, a numeric string ("1,200") or null.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		f.v = nil
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			f.v = nil
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return eris.Wrapf(err, "generate: number %q", s)
	}
	f.v = &v
	return nil
}
