package checklist

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/model"
)

// maxMissingItems caps how many checklist items MissingItems proposes.
const maxMissingItems = 20

// maxSuggestions caps the suggestion messages in a coverage report.
const maxSuggestions = 10

// CoverageReport compares estimate item names to a discipline checklist.
type CoverageReport struct {
	Discipline  model.Discipline `json:"discipline"`
	Total       int              `json:"total_check_items"`
	Rate        float64          `json:"coverage_rate"`
	Covered     []string         `json:"covered_items"`
	Missing     []string         `json:"missing_items"`
	Suggestions []string         `json:"suggestions"`
}

// Checker applies a rule set.
type Checker struct {
	rules *Rules
}

// New creates a Checker. A nil rules uses DefaultRules.
func New(rules *Rules) *Checker {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Checker{rules: rules}
}

// Coverage reports which checklist items for d appear among the item names.
// Disciplines without a checklist report zero coverage.
func (c *Checker) Coverage(items []*model.EstimateItem, d model.Discipline) CoverageReport {
	report := CoverageReport{Discipline: d, Covered: []string{}, Missing: []string{}, Suggestions: []string{}}

	var all []string
	for _, cat := range c.rules.Checklists[d] {
		all = append(all, cat.Items...)
	}
	report.Total = len(all)
	if len(all) == 0 {
		return report
	}

	for _, check := range all {
		found := false
		for _, it := range items {
			if similar(check, it.Name) {
				found = true
				break
			}
		}
		if found {
			report.Covered = append(report.Covered, check)
		} else {
			report.Missing = append(report.Missing, check)
		}
	}

	report.Rate = float64(len(report.Covered)) / float64(len(all))
	for i, m := range report.Missing {
		if i == maxSuggestions {
			break
		}
		report.Suggestions = append(report.Suggestions, fmt.Sprintf("「%s」が見積に含まれていません。必要に応じて追加してください。", m))
	}
	return report
}

// similar reports whether either name contains the other, or whether they
// share any three-rune substring.
func similar(check, name string) bool {
	a := strings.ToLower(check)
	b := strings.ToLower(name)
	if b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	r := []rune(a)
	for i := 0; i+3 <= len(r); i++ {
		if strings.Contains(b, string(r[i:i+3])) {
			return true
		}
	}
	return false
}

// EstimateQuantities fills the quantity of every item with no positive
// quantity from the first matching rule for d. It returns the number of
// items filled.
func (c *Checker) EstimateQuantities(items []*model.EstimateItem, d model.Discipline, floorArea float64, rooms, floors int) int {
	rules := c.rules.Quantities[d]
	filled := 0
	for _, it := range items {
		if it.Quantity != nil && *it.Quantity > 0 {
			continue
		}
		for _, rule := range rules {
			if !rule.matches(it.Name) {
				continue
			}
			q := rule.quantity(floorArea, rooms, floors)
			if q <= 0 {
				continue
			}
			it.Quantity = model.Float(q)
			it.Unit = rule.Unit
			it.EstimationBasis = "自動推定: " + rule.Description
			it.Confidence = 0.6
			filled++
			zap.L().Debug("checklist: estimated quantity",
				zap.String("item", it.Name),
				zap.Float64("quantity", q),
				zap.String("unit", rule.Unit),
			)
			break
		}
	}
	return filled
}

// MissingItems proposes level-2 items for checklist entries not covered by
// items, with quantities from the quantity rules where one applies.
func (c *Checker) MissingItems(items []*model.EstimateItem, d model.Discipline, floorArea float64, rooms int) []*model.EstimateItem {
	missing := c.Coverage(items, d).Missing
	if len(missing) > maxMissingItems {
		missing = missing[:maxMissingItems]
	}

	out := make([]*model.EstimateItem, 0, len(missing))
	for _, name := range missing {
		it := &model.EstimateItem{
			Level:           2,
			Name:            name,
			Unit:            "式",
			Discipline:      d,
			Confidence:      0.5,
			EstimationBasis: "チェックリストから追加",
		}
		for _, rule := range c.rules.Quantities[d] {
			if rule.matches(name) {
				it.Quantity = model.Float(rule.quantity(floorArea, rooms, 1))
				it.Unit = rule.Unit
				it.EstimationBasis = "チェックリスト追加: " + rule.Description
				break
			}
		}
		out = append(out, it)
	}

	zap.L().Info("checklist: proposed missing items",
		zap.String("discipline", string(d)),
		zap.Int("count", len(out)),
	)
	return out
}

// Summary renders the checklist for d as text.
func (c *Checker) Summary(d model.Discipline) string {
	cats, ok := c.rules.Checklists[d]
	if !ok {
		return "No checklist for " + string(d)
	}
	var b strings.Builder
	b.WriteString("【" + d.WorkName() + "チェックリスト】")
	for _, cat := range cats {
		b.WriteString("\n\n■ " + cat.Name)
		for _, item := range cat.Items {
			b.WriteString("\n  □ " + item)
		}
	}
	return b.String()
}

func (r QuantityRule) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range r.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// quantity takes the largest of the area, room and floor derived counts, then
// applies the fixed override and min/max clamps, rounded to one decimal.
func (r QuantityRule) quantity(floorArea float64, rooms, floors int) float64 {
	q := 0.0
	if r.PerSqm > 0 && floorArea > 0 {
		q = floorArea * r.PerSqm
	}
	if r.PerRoom > 0 && rooms > 0 {
		q = max(q, float64(rooms)*r.PerRoom)
	}
	if r.PerFloor > 0 && floors > 0 {
		q = max(q, float64(floors)*r.PerFloor)
	}
	if r.Fixed > 0 {
		q = r.Fixed
	}
	if r.Min > 0 {
		q = max(q, r.Min)
	}
	if r.Max > 0 {
		q = min(q, r.Max)
	}
	return decimal.NewFromFloat(q).Round(1).InexactFloat64()
}
