package generate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bidquote/internal/model"
)

// defaultConfidence applies to generated items that carry no confidence.
const defaultConfidence = 0.7

// guidance is the discipline-specific part of the item prompt.
var guidance = map[model.Discipline]string{
	model.DisciplineGas: `1. 基本工事費: 図面作成、申請業務、現場管理等
2. 配管工事費: 各サイズの配管（15A, 20A, 25A, 32A, 50A, 80A）、延長メートル数を建物規模から推定、材質（白ガス管、カラー鋼管、PE管等）、露出結び
3. ガス栓等材料費: ガスコンセント（S型露出、W型露出）、ネジコック
4. 特別材料費: 分岐コック、ボールスライドジョイント
5. 付帯工事費: 配管撤去、配管支持金具、穴補修、埋戻し、コンクリート切断・復旧、高所作業車
6. 機器搬続費: 資機材運搬費、諸経費

建物面積から配管総延長を推定してください（例: 2,145㎡ → 約400-500m）。
配管サイズの割合の目安: 15A(20%), 20A(30%), 25A(20%), 32A(15%), 50A(10%), 80A(5%)`,
	model.DisciplineElectrical: `1. 受変電設備: キュービクル、変圧器
2. 幹線・動力設備: 幹線ケーブル、動力盤、配管配線
3. 電灯コンセント設備: 分電盤、照明器具、コンセント、スイッチ
4. 弱電設備: LAN配線、電話、インターホン、放送設備
5. 防災設備: 自動火災報知設備、非常照明、誘導灯
6. 付帯工事: 仮設電気、試験調整、諸経費`,
	model.DisciplineMechanical: `1. 空調設備: パッケージエアコン室内機・室外機、冷媒配管、ドレン配管
2. 換気設備: 換気扇、全熱交換器、ダクト
3. 給排水衛生設備: 給水配管、排水配管、衛生器具（便器、洗面器、手洗器）
4. 給湯設備: 給湯器、給湯配管
5. 付帯工事: 保温工事、試運転調整、諸経費`,
	model.DisciplineHVAC: `1. 空調機器: パッケージエアコン室内機・室外機
2. 冷媒配管・ドレン配管
3. 換気設備: 換気扇、全熱交換器、ダクト
4. 自動制御、試運転調整、諸経費`,
	model.DisciplinePlumbing: `1. 給水設備: 給水配管、受水槽、ポンプ
2. 排水設備: 汚水・雑排水配管、桝
3. 衛生器具: 便器、洗面器、手洗器、流し
4. 給湯設備、保温工事、試験、諸経費`,
	model.DisciplineFireProtection: `1. 消火設備: 屋内消火栓、スプリンクラー、消火器
2. 警報設備: 自動火災報知設備、感知器、受信機
3. 避難設備: 誘導灯、非常照明
4. 試験・届出、諸経費`,
}

const itemsPrompt = `以下の建物情報から、%[1]sの詳細な見積項目を設計してください。

建物情報:
%[2]s

【設計タスク】
実際の設備設計と同様に、以下の項目を含む詳細な見積を作成してください：
%[3]s

【出力形式】
階層構造を持つ見積項目のJSON配列で出力してください。level 0 は工事全体、level 1 は費目、level 2 は明細です。
[
  {"item_no": "1", "level": 0, "name": "%[1]s", "specification": "", "quantity": null, "unit": "式",
   "unit_price": null, "amount": null, "cost_type": "一式", "remarks": "", "confidence": 1.0},
  {"item_no": "", "level": 1, "name": "基本工事費", "specification": "", "quantity": 1, "unit": "式",
   "unit_price": null, "amount": null, "cost_type": "施工費", "remarks": "図面作成、申請業務、現場管理",
   "confidence": 0.9, "estimation_basis": "建物規模から標準的な基本工事費を算定"},
  {"item_no": "", "level": 2, "name": "白ガス管（ネジ接合）", "specification": "15A", "quantity": 93, "unit": "m",
   "unit_price": null, "amount": null, "cost_type": "材料費", "remarks": "",
   "confidence": 0.8, "estimation_basis": "建物面積2,145㎡×4%%≒86m、教室配置を考慮して93m"}
]

cost_type は 材料費 / 施工費 / 労務費 / 諸経費 / 一式 のいずれかです。
必ず30項目以上の詳細な見積を生成してください。単価と金額は null のままにしてください。`

type itemResponse struct {
	ItemNo          flexString     `json:"item_no"`
	Level           int            `json:"level"`
	Name            string         `json:"name"`
	Specification   flexString     `json:"specification"`
	Quantity        flexFloat      `json:"quantity"`
	Unit            string         `json:"unit"`
	UnitPrice       flexFloat      `json:"unit_price"`
	Amount          flexFloat      `json:"amount"`
	CostType        model.CostType `json:"cost_type"`
	Remarks         string         `json:"remarks"`
	Confidence      flexFloat      `json:"confidence"`
	EstimationBasis string         `json:"estimation_basis"`
}

// Items drafts the estimate items of one discipline.
func (g *Generator) Items(ctx context.Context, info *model.BuildingInfo, d model.Discipline) ([]*model.EstimateItem, error) {
	summary, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "generate: marshal building info")
	}
	hint, ok := guidance[d]
	if !ok {
		hint = "工事に必要な材料費・施工費・諸経費を網羅してください。"
	}
	workName := d.WorkName()
	if d == model.DisciplineGas {
		workName = "都市ガス設備工事"
	}

	prompt := fmt.Sprintf(itemsPrompt, workName, summary, hint)
	text, err := g.call(ctx, OpItems, systemPrompt, prompt, 16000, 0.3)
	if err != nil {
		return nil, err
	}
	items, err := parseItems(text, d)
	if err != nil {
		return nil, err
	}
	zap.L().Info("generate: items drafted",
		zap.String("discipline", string(d)),
		zap.Int("items", len(items)),
	)
	return items, nil
}

// parseItems decodes the item array. Elements that fail to decode or have
// no name are skipped.
func parseItems(text string, d model.Discipline) ([]*model.EstimateItem, error) {
	raw, err := extractJSON(text, '[', ']')
	if err != nil {
		return nil, err
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, eris.Wrap(err, "generate: parse items")
	}

	items := make([]*model.EstimateItem, 0, len(elems))
	for i, e := range elems {
		var r itemResponse
		if err := json.Unmarshal(e, &r); err != nil {
			zap.L().Warn("generate: skipping malformed item", zap.Int("index", i), zap.Error(err))
			continue
		}
		if r.Name == "" {
			continue
		}
		items = append(items, r.toItem(d))
	}
	if len(items) == 0 {
		return nil, eris.New("generate: response contained no items")
	}
	return items, nil
}

func (r itemResponse) toItem(d model.Discipline) *model.EstimateItem {
	level := r.Level
	if level < 0 {
		level = 0
	}
	confidence := defaultConfidence
	if r.Confidence.v != nil {
		confidence = *r.Confidence.v
	}
	basis := r.EstimationBasis
	if basis == "" {
		basis = "AI設計"
	}
	return &model.EstimateItem{
		ItemNo:          string(r.ItemNo),
		Level:           level,
		Name:            r.Name,
		Specification:   string(r.Specification),
		Quantity:        r.Quantity.v,
		Unit:            r.Unit,
		UnitPrice:       r.UnitPrice.v,
		Amount:          r.Amount.v,
		Remarks:         r.Remarks,
		Discipline:      d,
		CostType:        r.CostType,
		Confidence:      confidence,
		SourceType:      model.SourceAIGenerated,
		SourceReference: basis,
		EstimationBasis: r.EstimationBasis,
	}
}

// All drafts items for every discipline concurrently, bounded by
// max_concurrent. Results keep the order of disciplines. The first failure
// cancels the remaining calls.
func (g *Generator) All(ctx context.Context, info *model.BuildingInfo, disciplines []model.Discipline) ([]*model.EstimateItem, error) {
	results := make([][]*model.EstimateItem, len(disciplines))

	eg, gctx := errgroup.WithContext(ctx)
	limit := g.cfg.MaxConcurrent
	if limit <= 0 {
		limit = 3
	}
	eg.SetLimit(limit)

	for i, d := range disciplines {
		eg.Go(func() error {
			items, err := g.Items(gctx, info, d)
			if err != nil {
				return eris.Wrapf(err, "generate: discipline %s", d)
			}
			results[i] = items
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []*model.EstimateItem
	for _, items := range results {
		all = append(all, items...)
	}
	return all, nil
}
