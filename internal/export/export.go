// Package export renders a priced estimate as an Excel quotation or JSON.
package export

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/calc"
	"github.com/sells-group/bidquote/internal/matcher"
	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/validate"
)

// Sheet names.
const (
	SheetItems      = "見積明細"
	SheetValidation = "検証結果"
)

const amountFormat = "#,##0"

var itemHeader = []string{"項番", "名称", "仕様", "数量", "単位", "単価", "金額", "摘要"}

// Quote is everything a rendered quotation needs.
type Quote struct {
	ProjectName string                      `json:"project_name"`
	Building    *model.BuildingInfo         `json:"building_info,omitempty"`
	Items       []*model.EstimateItem       `json:"items"`
	Overheads   []model.OverheadCalculation `json:"overhead_calculations,omitempty"`
	Coverage    *matcher.Coverage           `json:"match_coverage,omitempty"`
	Adjustments []*validate.Adjustment      `json:"adjustments,omitempty"`
	Report      *validate.Report            `json:"validation,omitempty"`
	TotalAmount float64                     `json:"total_amount"`
	CreatedAt   time.Time                   `json:"created_at"`
}

// JSON writes q as indented JSON.
func JSON(w io.Writer, q *Quote) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(q); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

// XLSX writes q to path as a workbook with an item sheet and, when q has a
// report, a validation sheet.
func XLSX(path string, q *Quote) error {
	f := xlsx.NewFile()

	items, err := f.AddSheet(SheetItems)
	if err != nil {
		return eris.Wrap(err, "export: add item sheet")
	}
	writeItems(items, q)

	if q.Report != nil {
		sheet, err := f.AddSheet(SheetValidation)
		if err != nil {
			return eris.Wrap(err, "export: add validation sheet")
		}
		writeReport(sheet, q.Report)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	zap.L().Info("export: wrote quotation",
		zap.String("path", path),
		zap.Int("items", len(q.Items)),
	)
	return nil
}

func writeItems(sheet *xlsx.Sheet, q *Quote) {
	bold := boldStyle()

	if q.ProjectName != "" {
		title := sheet.AddRow().AddCell()
		title.SetString(q.ProjectName)
		title.SetStyle(bold)
		sheet.AddRow()
	}

	header := sheet.AddRow()
	for _, h := range itemHeader {
		c := header.AddCell()
		c.SetString(h)
		c.SetStyle(bold)
	}

	for i, it := range q.Items {
		row := sheet.AddRow()
		parent := i+1 < len(q.Items) && q.Items[i+1].Level > it.Level

		row.AddCell().SetString(it.ItemNo)
		name := row.AddCell()
		name.SetString(strings.Repeat("　", it.Level) + it.Name)
		row.AddCell().SetString(it.Specification)
		setNumber(row.AddCell(), it.Quantity, "")
		row.AddCell().SetString(it.Unit)
		setNumber(row.AddCell(), it.UnitPrice, amountFormat)
		setNumber(row.AddCell(), it.Amount, amountFormat)
		row.AddCell().SetString(remarks(it))

		if parent || it.Level == 0 {
			for _, c := range row.Cells {
				c.SetStyle(bold)
			}
		}
	}

	total := sheet.AddRow()
	for i := 0; i < 6; i++ {
		total.AddCell()
	}
	total.Cells[1].SetString("合計")
	sum := total.AddCell()
	sum.SetFloatWithFormat(q.TotalAmount, amountFormat)
	for _, c := range total.Cells {
		c.SetStyle(bold)
	}

	sheet.SetColWidth(0, 0, 8)
	sheet.SetColWidth(1, 1, 36)
	sheet.SetColWidth(2, 2, 20)
	sheet.SetColWidth(3, 4, 8)
	sheet.SetColWidth(5, 6, 14)
	sheet.SetColWidth(7, 7, 30)
}

func writeReport(sheet *xlsx.Sheet, r *validate.Report) {
	bold := boldStyle()

	status := "OK"
	if !r.IsValid {
		status = "要確認"
	}
	addPair(sheet, "判定", status, bold)
	addPair(sheet, "総額", calc.FormatYen(r.Summary.TotalAmount), bold)
	addPair(sheet, "延床面積", calc.FormatQuantity(r.Summary.FloorArea)+"㎡", bold)
	addPair(sheet, "㎡単価", calc.FormatYen(r.Summary.AmountPerSqm)+"/㎡", bold)
	sheet.AddRow()

	header := sheet.AddRow()
	for _, h := range []string{"工事区分", "判定", "金額", "㎡単価", "想定㎡単価(下限)", "想定㎡単価(上限)", "メッセージ"} {
		c := header.AddCell()
		c.SetString(h)
		c.SetStyle(bold)
	}
	for _, key := range r.Disciplines() {
		chk := r.DisciplineChecks[key]
		row := sheet.AddRow()
		row.AddCell().SetString(key)
		row.AddCell().SetString(string(chk.Status))
		row.AddCell().SetFloatWithFormat(chk.TotalAmount, amountFormat)
		row.AddCell().SetFloatWithFormat(chk.AmountPerSqm, amountFormat)
		row.AddCell().SetFloatWithFormat(chk.ExpectedPerSqm[0], amountFormat)
		row.AddCell().SetFloatWithFormat(chk.ExpectedPerSqm[1], amountFormat)
		row.AddCell().SetString(chk.Message)
	}

	if len(r.AnomalyItems) > 0 {
		sheet.AddRow()
		header := sheet.AddRow()
		for _, h := range []string{"異常項目", "種別", "値", "メッセージ"} {
			c := header.AddCell()
			c.SetString(h)
			c.SetStyle(bold)
		}
		for _, a := range r.AnomalyItems {
			row := sheet.AddRow()
			row.AddCell().SetString(a.Item)
			row.AddCell().SetString(a.Type)
			row.AddCell().SetFloatWithFormat(a.Value, amountFormat)
			row.AddCell().SetString(a.Message)
		}
	}

	sheet.SetColWidth(0, 0, 20)
	sheet.SetColWidth(6, 6, 50)
}

func addPair(sheet *xlsx.Sheet, label, value string, style *xlsx.Style) {
	row := sheet.AddRow()
	c := row.AddCell()
	c.SetString(label)
	c.SetStyle(style)
	row.AddCell().SetString(value)
}

func setNumber(c *xlsx.Cell, v *float64, format string) {
	if v == nil {
		return
	}
	if format == "" {
		c.SetFloat(*v)
		return
	}
	c.SetFloatWithFormat(*v, format)
}

// remarks joins the item's remarks with its calculation formula.
func remarks(it *model.EstimateItem) string {
	switch {
	case it.Formula == "":
		return it.Remarks
	case it.Remarks == "":
		return it.Formula
	default:
		return it.Remarks + " (" + it.Formula + ")"
	}
}

func boldStyle() *xlsx.Style {
	s := xlsx.NewStyle()
	s.Font.Bold = true
	s.ApplyFont = true
	return s
}
