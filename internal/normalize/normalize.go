// Package normalize canonicalizes the free-form Japanese text found in
// estimate line items so names, specifications and units can be compared.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	sizeToken  = regexp.MustCompile(`(?i)(\d+)\s*([acm]{1,2})`)
	separators = strings.NewReplacer("・", "", "/", "", "-", "", "\u3000", " ")
)

// Categories is the ordered keyword list used to assign an item category.
// The first keyword contained in a name wins.
var Categories = []string{
	"白ガス管", "カラー鋼管", "PE管", "露出結び",
	"ガスコンセント", "ネジコック", "分岐コック",
	"ボールスライドジョイント", "ガスメーター",
	"配管支持金具", "穴あけ", "埋戻し", "コンクリート",
	"高所作業車", "運搬", "諸経費", "試験", "検査", "撤去",
}

// Normalize folds full-width ASCII to half-width (and half-width kana to
// full-width), drops the separators ・ / -, collapses whitespace, trims and
// lower-cases.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	n := width.Fold.String(text)
	n = separators.Replace(n)
	n = whitespace.ReplaceAllString(n, " ")
	return strings.ToLower(strings.TrimSpace(n))
}

// ExtractSize returns the first nominal size token such as "15A" or "20MM",
// upper-cased, or "" when there is none.
func ExtractSize(text string) string {
	if text == "" {
		return ""
	}
	m := sizeToken.FindStringSubmatch(width.Fold.String(text))
	if m == nil {
		return ""
	}
	return m[1] + strings.ToUpper(m[2])
}

// ExtractCategory returns the first entry of Categories contained in name.
func ExtractCategory(name string) string {
	if name == "" {
		return ""
	}
	folded := width.Fold.String(name)
	for _, c := range Categories {
		if strings.Contains(folded, c) {
			return c
		}
	}
	return ""
}

var unitSynonyms = map[string]string{
	"メートル": "m",
	"ヶ所":   "箇所",
	"ケ所":   "箇所",
	"カ所":   "箇所",
	"か所":   "箇所",
	"ヵ所":   "箇所",
	"ケ":    "個",
	"ヶ":    "個",
	"コ":    "個",
	"台数":   "台",
	"一式":   "式",
	"平米":   "m2",
	"㎡":    "m2",
	"m²":   "m2",
	"立米":   "m3",
	"㎥":    "m3",
	"m³":   "m3",
	"人工":   "人日",
}

// NormalizeUnit normalizes a unit and folds common synonyms, so "メートル"
// and "m" compare equal.
func NormalizeUnit(unit string) string {
	n := Normalize(unit)
	if n == "" {
		return ""
	}
	if s, ok := unitSynonyms[n]; ok {
		return s
	}
	return n
}
