package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/model"
)

// maxInvoiceChars bounds the invoice excerpt sent for extraction.
const maxInvoiceChars = 12000

const kbExtractPrompt = `以下は過去の見積書・請求書のテキストです。明細行から単価情報を抽出してください。

テキスト:
%s

【抽出ルール】
- 単価が記載されている明細行のみを対象とします
- 小計・合計・工事区分の見出し行（親項目）は除外してください
- discipline は 電気 / 機械 / 空調 / 衛生 / ガス / 消防 のいずれかです

【出力形式】
[
  {"name": "白ガス管（ネジ接合）", "specification": "15A", "quantity": 93, "unit": "m",
   "unit_price": 3200, "amount": 297600, "discipline": "ガス"}
]`

type referenceResponse struct {
	Name          string     `json:"name"`
	Specification flexString `json:"specification"`
	Quantity      flexFloat  `json:"quantity"`
	Unit          string     `json:"unit"`
	UnitPrice     flexFloat  `json:"unit_price"`
	Amount        flexFloat  `json:"amount"`
	Discipline    string     `json:"discipline"`
}

// ExtractReferences reads unit prices out of a past invoice or quotation.
// Rows without a positive unit price are dropped. IDs are
// "<project>_<nnn>", numbered by the row's position in the response.
func (g *Generator) ExtractReferences(ctx context.Context, invoiceText, project string) ([]model.PriceReference, error) {
	prompt := fmt.Sprintf(kbExtractPrompt, truncateRunes(invoiceText, maxInvoiceChars))
	text, err := g.call(ctx, OpKBExtract, systemPrompt, prompt, 8000, 0)
	if err != nil {
		return nil, err
	}
	refs, err := parseReferences(text, project, time.Now())
	if err != nil {
		return nil, err
	}
	zap.L().Info("generate: references extracted",
		zap.String("project", project),
		zap.Int("references", len(refs)),
	)
	return refs, nil
}

func parseReferences(text, project string, now time.Time) ([]model.PriceReference, error) {
	raw, err := extractJSON(text, '[', ']')
	if err != nil {
		return nil, err
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, eris.Wrap(err, "generate: parse references")
	}

	tags := projectTags(project)
	validFrom := now.Format("2006-01-02")
	var refs []model.PriceReference
	for i, e := range elems {
		var r referenceResponse
		if err := json.Unmarshal(e, &r); err != nil {
			zap.L().Warn("generate: skipping malformed reference", zap.Int("index", i), zap.Error(err))
			continue
		}
		if r.Name == "" || r.UnitPrice.v == nil || *r.UnitPrice.v <= 0 {
			continue
		}
		d, ok := model.ParseDiscipline(r.Discipline)
		if !ok {
			d = model.DisciplineGas
		}
		unit := r.Unit
		if unit == "" {
			unit = "式"
		}
		refs = append(refs, model.PriceReference{
			ItemID:      fmt.Sprintf("%s_%03d", project, i+1),
			Description: r.Name,
			Discipline:  d,
			Unit:        unit,
			UnitPrice:   *r.UnitPrice.v,
			Features: model.ReferenceFeature{
				Specification: string(r.Specification),
				Quantity:      r.Quantity.v,
			},
			SourceProject: project,
			ContextTags:   tags,
			ValidFrom:     validFrom,
		})
	}
	return refs, nil
}

// projectTags derives context tags from a project name.
func projectTags(project string) []string {
	var tags []string
	if strings.Contains(project, "学校") || strings.Contains(project, "高校") {
		tags = append(tags, "学校")
	}
	if strings.Contains(project, "改修") {
		tags = append(tags, "改修")
	}
	if strings.Contains(project, "仮設") {
		tags = append(tags, "仮設")
	}
	return tags
}
