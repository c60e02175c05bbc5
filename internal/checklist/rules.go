// Package checklist checks an estimate against per-discipline item
// checklists and fills in quantities from floor-area and room-count rules.
package checklist

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bidquote/internal/model"
)

// Category is a named group of checklist items.
type Category struct {
	Name  string   `yaml:"category" json:"category"`
	Items []string `yaml:"items" json:"items"`
}

// QuantityRule derives a quantity for items whose name contains one of the
// keywords. Zero fields are unused.
type QuantityRule struct {
	Keywords    []string `yaml:"keywords"`
	PerSqm      float64  `yaml:"per_sqm"`
	PerRoom     float64  `yaml:"per_room"`
	PerFloor    float64  `yaml:"per_floor"`
	Fixed       float64  `yaml:"fixed"`
	Min         float64  `yaml:"min"`
	Max         float64  `yaml:"max"`
	Unit        string   `yaml:"unit"`
	Description string   `yaml:"description"`
}

// Rules holds checklists and quantity rules keyed by discipline.
type Rules struct {
	Checklists map[model.Discipline][]Category
	Quantities map[model.Discipline][]QuantityRule
}

// DefaultRules returns the built-in electrical, mechanical and gas rules.
func DefaultRules() *Rules {
	return &Rules{
		Checklists: map[model.Discipline][]Category{
			model.DisciplineElectrical: {
				{"受変電設備", []string{"キュービクル", "高圧気中開閉器（PAS）", "変圧器", "進相コンデンサ", "高圧ケーブル", "接地工事"}},
				{"幹線設備", []string{"幹線ケーブル（CV/CVT）", "ケーブルラック", "配管・配線", "ジョイントボックス", "プルボックス"}},
				{"分電盤・制御盤", []string{"主幹分電盤", "電灯分電盤", "動力分電盤", "制御盤"}},
				{"照明設備", []string{"照明器具", "非常照明", "誘導灯", "外灯", "スイッチ"}},
				{"コンセント設備", []string{"コンセント", "OAコンセント", "防水コンセント"}},
				{"弱電設備", []string{"電話配管・配線", "LAN配管・配線", "インターホン", "放送設備", "テレビ共聴設備", "監視カメラ設備"}},
				{"防災設備", []string{"自動火災報知設備", "非常放送設備", "避雷設備"}},
				{"その他", []string{"仮設電気工事", "既存設備撤去", "試験調整費", "諸経費"}},
			},
			model.DisciplineMechanical: {
				{"空調設備", []string{"エアコン（室内機）", "エアコン（室外機）", "冷媒配管", "ドレン配管", "換気扇", "ダクト"}},
				{"換気設備", []string{"換気扇", "全熱交換器", "送風機", "排煙設備"}},
				{"給水設備", []string{"給水ポンプ", "受水槽", "給水配管", "給水栓"}},
				{"給湯設備", []string{"給湯器", "給湯配管"}},
				{"排水設備", []string{"排水配管", "排水ポンプ", "グリストラップ", "汚水槽"}},
				{"衛生器具", []string{"便器", "洗面器", "流し台"}},
				{"消火設備", []string{"屋内消火栓", "スプリンクラー", "消火器"}},
				{"その他", []string{"保温工事", "塗装工事", "試験調整費", "諸経費"}},
			},
			model.DisciplineGas: {
				{"配管工事", []string{"都市ガス引込み", "白ガス管", "カラー鋼管", "PE管（ポリエチレン管）", "フレキ管", "配管支持金具"}},
				{"ガス栓・機器", []string{"ガスコンセント", "ガス栓", "ネジコック", "分岐コック", "ボールバルブ"}},
				{"安全装置", []string{"ガス漏れ警報器", "緊急遮断弁", "ヒューズコック"}},
				{"付帯工事", []string{"掘削・埋戻し", "舗装復旧", "穴補修", "配管撤去"}},
				{"その他", []string{"気密試験", "資機材運搬", "諸経費"}},
			},
		},
		Quantities: map[model.Discipline][]QuantityRule{
			model.DisciplineElectrical: {
				{Keywords: []string{"照明器具", "照明", "ライト"}, PerSqm: 0.08, Min: 10, Unit: "台", Description: "床面積から推定（8台/100㎡）"},
				{Keywords: []string{"非常照明", "非常灯"}, PerSqm: 0.02, Min: 5, Unit: "台", Description: "床面積から推定（2台/100㎡）"},
				{Keywords: []string{"誘導灯"}, PerRoom: 0.5, Min: 5, Unit: "台", Description: "部屋数から推定（2部屋に1台）"},
				{Keywords: []string{"コンセント"}, PerSqm: 0.15, PerRoom: 4, Min: 20, Unit: "箇所", Description: "床面積または部屋数から推定"},
				{Keywords: []string{"スイッチ"}, PerRoom: 2, Min: 10, Unit: "箇所", Description: "部屋数から推定（2個/室）"},
				{Keywords: []string{"分電盤"}, PerFloor: 2, Min: 2, Unit: "面", Description: "階数から推定（2面/階）"},
				{Keywords: []string{"ケーブル", "幹線", "CV", "CVT"}, PerSqm: 0.5, Min: 100, Unit: "m", Description: "床面積から推定（50m/100㎡）"},
				{Keywords: []string{"電話", "LAN", "情報"}, PerRoom: 2, Min: 10, Unit: "箇所", Description: "部屋数から推定（2口/室）"},
			},
			model.DisciplineMechanical: {
				{Keywords: []string{"エアコン", "空調機", "室内機"}, PerSqm: 0.05, Min: 5, Unit: "台", Description: "床面積から推定（5台/100㎡）"},
				{Keywords: []string{"換気扇"}, PerRoom: 0.5, Min: 5, Unit: "台", Description: "部屋数から推定"},
				{Keywords: []string{"給水栓", "蛇口", "水栓"}, PerRoom: 0.3, Min: 5, Unit: "個", Description: "部屋数から推定"},
				{Keywords: []string{"便器", "トイレ"}, PerSqm: 0.01, Min: 2, Unit: "台", Description: "床面積から推定"},
				{Keywords: []string{"給水配管", "排水配管", "配管"}, PerSqm: 0.3, Min: 50, Unit: "m", Description: "床面積から推定"},
			},
			model.DisciplineGas: {
				{Keywords: []string{"ガス栓", "ガスコンセント", "ガス口"}, PerRoom: 0.2, Min: 2, Unit: "個", Description: "部屋数から推定（調理室等）"},
				{Keywords: []string{"ガス管", "白ガス管", "配管"}, PerSqm: 0.15, Min: 30, Unit: "m", Description: "床面積から推定"},
				{Keywords: []string{"警報器", "ガス漏れ"}, PerRoom: 0.1, Min: 1, Unit: "個", Description: "ガス使用箇所に設置"},
			},
		},
	}
}

type rulesFile struct {
	Checklists map[string][]Category     `yaml:"checklists"`
	Quantities map[string][]QuantityRule `yaml:"quantity_rules"`
}

// LoadRules reads a YAML rules file. Disciplines present in the file replace
// the built-in entry; the others keep their defaults.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "checklist: read rules %s", path)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "checklist: parse rules")
	}

	rules := DefaultRules()
	for key, cats := range f.Checklists {
		d, ok := model.ParseDiscipline(key)
		if !ok {
			return nil, eris.Errorf("checklist: unknown discipline %q", key)
		}
		rules.Checklists[d] = cats
	}
	for key, qrs := range f.Quantities {
		d, ok := model.ParseDiscipline(key)
		if !ok {
			return nil, eris.Errorf("checklist: unknown discipline %q", key)
		}
		for i, qr := range qrs {
			if len(qr.Keywords) == 0 {
				return nil, eris.Errorf("checklist: %s quantity rule %d has no keywords", key, i)
			}
			if qr.Unit == "" {
				qrs[i].Unit = "個"
			}
		}
		rules.Quantities[d] = qrs
	}
	return rules, nil
}
