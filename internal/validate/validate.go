// Package validate checks a priced estimate for plausibility against expected
// per-㎡ cost ranges and flags anomalous line items.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/calc"
	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/internal/model"
)

// DefaultFloorArea is assumed when the caller has no floor area.
const DefaultFloorArea = 2000.0

// otherDiscipline groups items that carry no discipline.
const otherDiscipline = "その他"

// Status is the severity of a discipline check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Anomaly types.
const (
	AnomalyHighAmount    = "high_amount"
	AnomalyHighUnitPrice = "high_unit_price"
	AnomalyHighQuantity  = "high_quantity"
)

// DisciplineCheck is the per-discipline plausibility result.
type DisciplineCheck struct {
	Discipline     string     `json:"discipline"`
	Status         Status     `json:"status"`
	Message        string     `json:"message"`
	TotalAmount    float64    `json:"total_amount"`
	ItemCount      int        `json:"item_count"`
	AmountPerSqm   float64    `json:"amount_per_sqm"`
	ExpectedRange  [2]float64 `json:"expected_range"`
	ExpectedPerSqm [2]float64 `json:"expected_per_sqm"`
}

// Anomaly flags a single suspicious line item.
type Anomaly struct {
	Item    string  `json:"item"`
	Type    string  `json:"type"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}

// Summary holds estimate-wide totals.
type Summary struct {
	TotalAmount  float64 `json:"total_amount"`
	TotalItems   int     `json:"total_items"`
	FloorArea    float64 `json:"floor_area"`
	AmountPerSqm float64 `json:"amount_per_sqm"`
	Disciplines  int     `json:"disciplines"`
}

// Report is the validator output.
type Report struct {
	IsValid          bool                       `json:"is_valid"`
	Summary          Summary                    `json:"summary"`
	DisciplineChecks map[string]DisciplineCheck `json:"discipline_checks"`
	AnomalyItems     []Anomaly                  `json:"anomaly_items"`
	Errors           []string                   `json:"errors"`
	Warnings         []string                   `json:"warnings"`

	// order preserves first-seen discipline order for text rendering.
	order []string
}

// Disciplines returns discipline check keys in item order, or sorted when
// the report was decoded from JSON.
func (r *Report) Disciplines() []string {
	if len(r.order) == len(r.DisciplineChecks) {
		return r.order
	}
	keys := make([]string, 0, len(r.DisciplineChecks))
	for k := range r.DisciplineChecks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validator holds range tables and anomaly thresholds.
type Validator struct {
	ranges        RangeTable
	highAmount    float64
	highUnitPrice float64
	highQuantity  float64
	excluded      []string
}

// New creates a Validator. A nil ranges table uses DefaultRanges; zero
// thresholds fall back to 10,000,000 yen, 5,000,000 yen and 10,000 units.
func New(cfg config.ValidateConfig, ranges RangeTable) *Validator {
	if ranges == nil {
		ranges = DefaultRanges()
	}
	v := &Validator{
		ranges:        ranges,
		highAmount:    cfg.HighAmount,
		highUnitPrice: cfg.HighUnitPrice,
		highQuantity:  cfg.HighQuantity,
		excluded:      cfg.ExcludedKeywords,
	}
	if v.highAmount <= 0 {
		v.highAmount = 10_000_000
	}
	if v.highUnitPrice <= 0 {
		v.highUnitPrice = 5_000_000
	}
	if v.highQuantity <= 0 {
		v.highQuantity = 10_000
	}
	if v.excluded == nil {
		v.excluded = config.DefaultExcludedKeywords
	}
	return v
}

// FromConfig creates a Validator, loading cfg.RangesFile when set.
func FromConfig(cfg config.ValidateConfig) (*Validator, error) {
	var ranges RangeTable
	if cfg.RangesFile != "" {
		var err error
		ranges, err = LoadRanges(cfg.RangesFile)
		if err != nil {
			return nil, err
		}
	}
	return New(cfg, ranges), nil
}

// Validate checks items against the expected ranges for buildingType and
// floorArea. It never fails: problems are reported, not returned.
func (v *Validator) Validate(items []*model.EstimateItem, floorArea float64, buildingType string) *Report {
	if floorArea <= 0 {
		floorArea = DefaultFloorArea
	}
	if buildingType == "" {
		buildingType = DefaultBuildingType
	}

	r := &Report{
		IsValid:          true,
		DisciplineChecks: make(map[string]DisciplineCheck),
		AnomalyItems:     []Anomaly{},
		Errors:           []string{},
		Warnings:         []string{},
	}

	groups := make(map[string][]*model.EstimateItem)
	for _, it := range items {
		key := disciplineKey(it.Discipline)
		if _, ok := groups[key]; !ok {
			r.order = append(r.order, key)
		}
		groups[key] = append(groups[key], it)
	}

	for _, key := range r.order {
		check := v.checkDiscipline(key, groups[key], floorArea, buildingType)
		r.DisciplineChecks[key] = check
		switch check.Status {
		case StatusError:
			r.Errors = append(r.Errors, check.Message)
			r.IsValid = false
		case StatusWarning:
			r.Warnings = append(r.Warnings, check.Message)
		}
	}

	r.AnomalyItems = v.detectAnomalies(items)
	if len(r.AnomalyItems) > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d件の異常項目を検出", len(r.AnomalyItems)))
	}

	total := calc.RootTotal(items, false)
	r.Summary = Summary{
		TotalAmount:  total,
		TotalItems:   len(items),
		FloorArea:    floorArea,
		AmountPerSqm: total / floorArea,
		Disciplines:  len(groups),
	}

	zap.L().Info("validate: estimate checked",
		zap.Bool("valid", r.IsValid),
		zap.Int("errors", len(r.Errors)),
		zap.Int("warnings", len(r.Warnings)),
		zap.Int("anomalies", len(r.AnomalyItems)),
	)
	return r
}

// Check runs the range check for a single discipline.
func (v *Validator) Check(items []*model.EstimateItem, d model.Discipline, floorArea float64, buildingType string) DisciplineCheck {
	if floorArea <= 0 {
		floorArea = DefaultFloorArea
	}
	var own []*model.EstimateItem
	for _, it := range items {
		if it.Discipline == d {
			own = append(own, it)
		}
	}
	return v.checkDiscipline(disciplineKey(d), own, floorArea, buildingType)
}

func (v *Validator) checkDiscipline(key string, items []*model.EstimateItem, floorArea float64, buildingType string) DisciplineCheck {
	total := calc.RootTotal(items, false)

	d, _ := model.ParseDiscipline(key)
	rng := v.ranges.Lookup(buildingType, d)
	expMin := rng.Min * floorArea
	expMax := rng.Max * floorArea

	label := key
	if d != "" {
		label = d.WorkName()
	}

	check := DisciplineCheck{
		Discipline:     key,
		TotalAmount:    total,
		ItemCount:      len(items),
		AmountPerSqm:   total / floorArea,
		ExpectedRange:  [2]float64{expMin, expMax},
		ExpectedPerSqm: [2]float64{rng.Min, rng.Max},
	}

	switch {
	case total > expMax*1.5:
		check.Status = StatusError
		check.Message = fmt.Sprintf("%s: 金額が高すぎます（%s > 期待上限%sの1.5倍）", label, calc.FormatYen(total), calc.FormatYen(expMax))
	case total > expMax:
		check.Status = StatusWarning
		check.Message = fmt.Sprintf("%s: 金額がやや高い（%s > 期待上限%s）", label, calc.FormatYen(total), calc.FormatYen(expMax))
	case total < expMin*0.5 && total > 0:
		check.Status = StatusWarning
		check.Message = fmt.Sprintf("%s: 金額がやや低い（%s < 期待下限%sの半分）", label, calc.FormatYen(total), calc.FormatYen(expMin))
	default:
		check.Status = StatusOK
		check.Message = fmt.Sprintf("%s: 妥当な範囲内（%s）", label, calc.FormatYen(total))
	}
	return check
}

// detectAnomalies flags every threshold an item crosses; one item may
// produce several anomalies.
func (v *Validator) detectAnomalies(items []*model.EstimateItem) []Anomaly {
	out := []Anomaly{}
	for _, it := range items {
		if it.Level == 0 {
			continue
		}
		if a := model.Value(it.Amount); a > v.highAmount {
			out = append(out, Anomaly{
				Item:    it.Name,
				Type:    AnomalyHighAmount,
				Value:   a,
				Message: fmt.Sprintf("金額が%s超（%s）", manYen(v.highAmount), calc.FormatYen(a)),
			})
		}
		if p := model.Value(it.UnitPrice); p > v.highUnitPrice && !v.isExcluded(it.Name) {
			out = append(out, Anomaly{
				Item:    it.Name,
				Type:    AnomalyHighUnitPrice,
				Value:   p,
				Message: fmt.Sprintf("単価が%s超（%s）", manYen(v.highUnitPrice), calc.FormatYen(p)),
			})
		}
		if q := model.Value(it.Quantity); q > v.highQuantity {
			out = append(out, Anomaly{
				Item:    it.Name,
				Type:    AnomalyHighQuantity,
				Value:   q,
				Message: fmt.Sprintf("数量が%sを超過（%s）", man(v.highQuantity), calc.FormatQuantity(q)),
			})
		}
	}
	return out
}

func (v *Validator) isExcluded(name string) bool {
	for _, kw := range v.excluded {
		if kw != "" && strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func disciplineKey(d model.Discipline) string {
	if d == "" {
		return otherDiscipline
	}
	return string(d)
}

// man renders round multiples of 10,000 in 万 units: 10000 → "1万".
func man(v float64) string {
	if v >= 10000 && calc.RoundYen(v) == v && int64(v)%10000 == 0 {
		return calc.FormatQuantity(v/10000) + "万"
	}
	return calc.FormatQuantity(v)
}

// manYen renders a yen threshold: 10,000,000 → "1000万円".
func manYen(v float64) string {
	if s := man(v); strings.HasSuffix(s, "万") {
		return s + "円"
	}
	return calc.FormatYen(v)
}
