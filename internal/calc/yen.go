package calc

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundYen rounds to the nearest whole yen, halves away from zero.
func RoundYen(v float64) float64 {
	return decimal.NewFromFloat(v).Round(0).InexactFloat64()
}

// FormatYen renders v rounded to whole yen with thousands separators and a
// leading ¥, e.g. ¥4,090,000.
func FormatYen(v float64) string {
	return "¥" + FormatAmount(v)
}

// FormatAmount is FormatYen without the currency sign.
func FormatAmount(v float64) string {
	s := decimal.NewFromFloat(v).Round(0).String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatQuantity renders a quantity without trailing zeros: 93, 1.5.
func FormatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatRate renders a rate as a percentage with two decimals: 16.07%.
func FormatRate(rate float64) string {
	return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
