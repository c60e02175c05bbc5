// Package calc computes line-item amounts, rolls them up the item tree and
// adds statutory overhead.
package calc

import (
	"fmt"

	"github.com/sells-group/bidquote/internal/model"
)

// ComputeAmount returns the amount for item according to its cost type and
// records the formula used. An item that already has an amount is returned
// unchanged. Missing inputs yield 0.
func ComputeAmount(item *model.EstimateItem) float64 {
	if item.Amount != nil {
		return *item.Amount
	}

	switch item.CostType {
	case model.CostTypeMaterial:
		return priceTimesQuantity(item)
	case model.CostTypeLabor:
		if present(item.LaborUnitPrice) && present(item.LaborDays) {
			item.Formula = fmt.Sprintf("%s/人日 × %s人日", FormatYen(*item.LaborUnitPrice), FormatQuantity(*item.LaborDays))
			return *item.LaborUnitPrice * *item.LaborDays
		}
		return priceTimesQuantity(item)
	case model.CostTypeOverhead:
		if present(item.OverheadBaseAmount) && present(item.OverheadRate) {
			item.Formula = fmt.Sprintf("%s × %s", FormatYen(*item.OverheadBaseAmount), FormatRate(*item.OverheadRate))
			return *item.OverheadBaseAmount * *item.OverheadRate
		}
		return 0
	case model.CostTypeLumpSum, model.CostTypeUnset:
		return priceTimesQuantity(item)
	default:
		return 0
	}
}

func priceTimesQuantity(item *model.EstimateItem) float64 {
	if !present(item.UnitPrice) || !present(item.Quantity) {
		return 0
	}
	item.Formula = fmt.Sprintf("%s × %s%s", FormatYen(*item.UnitPrice), FormatQuantity(*item.Quantity), item.Unit)
	return *item.UnitPrice * *item.Quantity
}

func present(p *float64) bool {
	return p != nil && *p != 0
}

// ApplyAmounts sets the amount of every item whose computed amount is
// positive. Items that compute to 0 keep an unset amount.
func ApplyAmounts(items []*model.EstimateItem) int {
	set := 0
	for _, item := range items {
		if item.Amount != nil {
			continue
		}
		if amount := ComputeAmount(item); amount > 0 {
			item.Amount = &amount
			set++
		}
	}
	return set
}
