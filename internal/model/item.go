package model

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// CostType selects the amount formula for an estimate item.
type CostType int

const (
	CostTypeUnset CostType = iota
	CostTypeMaterial
	CostTypeLabor
	CostTypeOverhead
	CostTypeLumpSum
)

var costTypeLabels = map[CostType]string{
	CostTypeUnset:    "",
	CostTypeMaterial: "材料費",
	CostTypeLabor:    "労務費",
	CostTypeOverhead: "諸経費",
	CostTypeLumpSum:  "一式",
}

// ParseCostType maps a label to a CostType. Unknown labels return
// CostTypeUnset.
func ParseCostType(s string) CostType {
	switch strings.TrimSpace(s) {
	case "材料費", "material", "MATERIAL":
		return CostTypeMaterial
	case "労務費", "施工費", "labor", "LABOR":
		return CostTypeLabor
	case "諸経費", "overhead", "OVERHEAD":
		return CostTypeOverhead
	case "一式", "lump_sum", "LUMP_SUM":
		return CostTypeLumpSum
	default:
		return CostTypeUnset
	}
}

func (c CostType) String() string {
	return costTypeLabels[c]
}

// MarshalJSON encodes the cost type as its Japanese label.
func (c CostType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts any label understood by ParseCostType.
func (c *CostType) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = CostTypeUnset
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "model: cost type")
	}
	*c = ParseCostType(s)
	return nil
}

// SourceType records where an item's values came from.
type SourceType string

const (
	SourceRule        SourceType = "rule"
	SourceRAG         SourceType = "rag"
	SourceAIGenerated SourceType = "ai_generated"
	SourceLegal       SourceType = "legal"
	SourceAdjustment  SourceType = "adjustment"
)

// MatchTier is the confidence class of a KB price match.
type MatchTier string

const (
	MatchNone     MatchTier = ""
	MatchExact    MatchTier = "exact"
	MatchPartial  MatchTier = "partial"
	MatchCategory MatchTier = "category"
)

// EstimateItem is one row of an estimate (見積明細). Optional numeric fields
// are pointers: nil means "no computable value", which is distinct from a
// confirmed zero.
type EstimateItem struct {
	ItemNo        string     `json:"item_no"`
	Level         int        `json:"level"`
	Name          string     `json:"name"`
	Specification string     `json:"specification,omitempty"`
	Quantity      *float64   `json:"quantity"`
	Unit          string     `json:"unit,omitempty"`
	UnitPrice     *float64   `json:"unit_price"`
	Amount        *float64   `json:"amount"`
	Remarks       string     `json:"remarks,omitempty"`
	Discipline    Discipline `json:"discipline,omitempty"`
	CostType      CostType   `json:"cost_type"`

	LaborUnitPrice     *float64 `json:"labor_unit_price,omitempty"`
	LaborDays          *float64 `json:"labor_days,omitempty"`
	OverheadRate       *float64 `json:"overhead_rate,omitempty"`
	OverheadBaseAmount *float64 `json:"overhead_base_amount,omitempty"`
	Formula            string   `json:"calculation_formula,omitempty"`

	Confidence      float64    `json:"confidence"`
	SourceType      SourceType `json:"source_type,omitempty"`
	SourceReference string     `json:"source_reference,omitempty"`
	EstimationBasis string     `json:"estimation_basis,omitempty"`
	PriceReferences []string   `json:"price_references,omitempty"`
	MatchTier       MatchTier  `json:"match_tier,omitempty"`
	MatchScore      float64    `json:"match_score,omitempty"`
}

// Float returns a pointer to v, for populating optional fields.
func Float(v float64) *float64 {
	return &v
}

// Value dereferences an optional field, treating nil as zero.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// HasAmount reports whether the item carries a computed amount.
func (it *EstimateItem) HasAmount() bool {
	return it.Amount != nil
}

// AmountOrZero returns the amount, or 0 when unset.
func (it *EstimateItem) AmountOrZero() float64 {
	return Value(it.Amount)
}

// OverheadCalculation records one statutory-overhead pass.
type OverheadCalculation struct {
	Name       string  `json:"name"`
	Rate       float64 `json:"rate"`
	BaseAmount float64 `json:"base_amount"`
	Amount     float64 `json:"amount"`
	Formula    string  `json:"formula"`
	Remarks    string  `json:"remarks,omitempty"`
}

// CloneItems deep-copies items so a caller can keep an untouched snapshot.
func CloneItems(items []*EstimateItem) []*EstimateItem {
	out := make([]*EstimateItem, len(items))
	for i, it := range items {
		c := *it
		c.Quantity = clonePtr(it.Quantity)
		c.UnitPrice = clonePtr(it.UnitPrice)
		c.Amount = clonePtr(it.Amount)
		c.LaborUnitPrice = clonePtr(it.LaborUnitPrice)
		c.LaborDays = clonePtr(it.LaborDays)
		c.OverheadRate = clonePtr(it.OverheadRate)
		c.OverheadBaseAmount = clonePtr(it.OverheadBaseAmount)
		if it.PriceReferences != nil {
			c.PriceReferences = append([]string(nil), it.PriceReferences...)
		}
		out[i] = &c
	}
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
