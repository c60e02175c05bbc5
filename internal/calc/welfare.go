package calc

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/model"
)

// DefaultWelfareRate is the statutory welfare rate printed on the source
// city-gas quotations (16.07% of construction cost).
const DefaultWelfareRate = 0.1607

const welfareName = "法定福利費"

// AddStatutoryWelfare appends a level-0 法定福利費 overhead item computed as
// rate × the sum of non-overhead root amounts, rounded to the nearest yen.
// Only level-0 items form the base: after rollup a root already holds its
// children's amounts, so summing every level would count them twice. On a
// rolled-up tree this equals the sum over all non-overhead leaves.
// It must run once, after all rollups. The discipline tags the new item.
func AddStatutoryWelfare(items []*model.EstimateItem, rate float64, discipline model.Discipline) ([]*model.EstimateItem, model.OverheadCalculation) {
	base := RootTotal(items, true)
	amount := decimal.NewFromFloat(base).Mul(decimal.NewFromFloat(rate)).Round(0).InexactFloat64()

	formula := "工事費 " + FormatYen(base) + " × " + FormatRate(rate)
	remarks := "工事費の" + FormatRate(rate)

	item := &model.EstimateItem{
		Level:              0,
		Name:               welfareName,
		Amount:             &amount,
		Discipline:         discipline,
		CostType:           model.CostTypeOverhead,
		OverheadRate:       model.Float(rate),
		OverheadBaseAmount: model.Float(base),
		Formula:            formula,
		Confidence:         1.0,
		SourceType:         model.SourceRule,
		SourceReference:    "都市ガス見積書記載の標準率",
		Remarks:            remarks,
	}

	calc := model.OverheadCalculation{
		Name:       welfareName,
		Rate:       rate,
		BaseAmount: base,
		Amount:     amount,
		Formula:    formula,
		Remarks:    remarks,
	}

	zap.L().Info("calc: added statutory welfare",
		zap.Float64("base", base),
		zap.Float64("rate", rate),
		zap.Float64("amount", amount),
	)
	return append(items, item), calc
}

// HasStatutoryWelfare reports whether items already carry a welfare line.
func HasStatutoryWelfare(items []*model.EstimateItem) bool {
	for _, it := range items {
		if it.Level == 0 && it.CostType == model.CostTypeOverhead && it.Name == welfareName {
			return true
		}
	}
	return false
}
