package validate

import (
	"strings"

	"github.com/sells-group/bidquote/internal/calc"
)

var rule = strings.Repeat("=", 60)

// FormatReport renders r as the Japanese plain-text check report.
func FormatReport(r *Report) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(rule)
	line("見積書整合性チェックレポート")
	line(rule)

	line("\n【サマリー】")
	line("  総額: " + calc.FormatYen(r.Summary.TotalAmount))
	line("  項目数: " + calc.FormatQuantity(float64(r.Summary.TotalItems)) + "件")
	line("  延床面積: " + calc.FormatAmount(r.Summary.FloorArea) + "㎡")
	line("  単価/㎡: " + calc.FormatYen(r.Summary.AmountPerSqm))

	line("\n【工事区分別チェック】")
	for _, key := range r.Disciplines() {
		check := r.DisciplineChecks[key]
		line("  " + statusIcon(check.Status) + " " + check.Message)
		line("      期待範囲: " + calc.FormatYen(check.ExpectedRange[0]) + " ～ " + calc.FormatYen(check.ExpectedRange[1]))
	}

	if len(r.AnomalyItems) > 0 {
		line("\n【異常項目】")
		for _, a := range r.AnomalyItems {
			line("  ⚠ " + a.Item + ": " + a.Message)
		}
	}

	if len(r.Errors) > 0 {
		line("\n【エラー】")
		for _, e := range r.Errors {
			line("  ✗ " + e)
		}
	}

	if len(r.Warnings) > 0 {
		line("\n【警告】")
		for _, w := range r.Warnings {
			line("  ⚠ " + w)
		}
	}

	line("\n" + rule)
	verdict := "✓ 妥当"
	if !r.IsValid {
		verdict = "✗ 要確認"
	}
	line("総合判定: " + verdict)
	b.WriteString(rule)
	return b.String()
}

func statusIcon(s Status) string {
	switch s {
	case StatusOK:
		return "✓"
	case StatusWarning:
		return "⚠"
	default:
		return "✗"
	}
}
