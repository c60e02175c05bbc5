package validate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/calc"
	"github.com/sells-group/bidquote/internal/model"
)

const adjustmentName = "見積調整費"

// Adjustment is an advisory correction for an under-priced discipline.
type Adjustment struct {
	Discipline     model.Discipline    `json:"discipline"`
	Item           *model.EstimateItem `json:"item"`
	Shortage       float64             `json:"shortage_amount"`
	ShortagePerSqm float64             `json:"shortage_per_sqm"`
	Before         DisciplineCheck     `json:"validation_before"`
	Message        string              `json:"message"`
}

// Correction proposes a 見積調整費 line that lifts discipline d up to the
// lower bound of its expected ㎡ cost. It returns nil when the discipline
// total already reaches the lower bound. The caller decides whether to
// append Adjustment.Item.
func (v *Validator) Correction(items []*model.EstimateItem, d model.Discipline, floorArea float64, buildingType string) *Adjustment {
	if floorArea <= 0 {
		floorArea = DefaultFloorArea
	}
	before := v.Check(items, d, floorArea, buildingType)
	minPerSqm := before.ExpectedPerSqm[0]
	if before.AmountPerSqm >= minPerSqm {
		return nil
	}

	perSqm := minPerSqm - before.AmountPerSqm
	shortage := calc.RoundYen(perSqm * floorArea)
	if shortage <= 0 {
		return nil
	}

	item := &model.EstimateItem{
		ItemNo:          "ADJ",
		Level:           0,
		Name:            adjustmentName,
		Specification:   fmt.Sprintf("㎡単価調整（%s/㎡ × %s㎡）", calc.FormatYen(perSqm), calc.FormatAmount(floorArea)),
		Quantity:        model.Float(1),
		Unit:            "式",
		UnitPrice:       model.Float(shortage),
		Amount:          model.Float(shortage),
		Discipline:      d,
		CostType:        model.CostTypeLumpSum,
		Confidence:      0.7,
		SourceType:      model.SourceAdjustment,
		SourceReference: fmt.Sprintf("㎡単価下限補正: %s円/㎡", calc.FormatAmount(minPerSqm)),
		EstimationBasis: fmt.Sprintf("建物タイプ「%s」の%s㎡単価下限に基づく調整", buildingType, d.WorkName()),
		Formula:         fmt.Sprintf("%s/㎡ × %s㎡", calc.FormatYen(perSqm), calc.FormatAmount(floorArea)),
	}

	zap.L().Info("validate: proposing adjustment",
		zap.String("discipline", string(d)),
		zap.Float64("per_sqm", before.AmountPerSqm),
		zap.Float64("min_per_sqm", minPerSqm),
		zap.Float64("shortage", shortage),
	)

	return &Adjustment{
		Discipline:     d,
		Item:           item,
		Shortage:       shortage,
		ShortagePerSqm: perSqm,
		Before:         before,
		Message:        fmt.Sprintf("㎡単価補正項目を追加しました（%s）", calc.FormatYen(shortage)),
	}
}
