// Package classify infers the disciplines and facility type a specification
// document covers from keyword occurrences.
package classify

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/width"

	"github.com/sells-group/bidquote/internal/model"
)

// DisciplineKeywords lists the terms that indicate each discipline.
var DisciplineKeywords = map[model.Discipline][]string{
	model.DisciplineElectrical: {
		"電気", "照明", "電灯", "コンセント", "分電盤", "配線", "電源", "動力",
		"幹線", "弱電", "LAN", "電話", "情報", "インターホン", "電気設備",
	},
	model.DisciplineMechanical: {
		"機械", "エレベーター", "昇降機", "エスカレーター", "搬送設備",
	},
	model.DisciplineHVAC: {
		"空調", "エアコン", "冷暖房", "換気", "空気調和", "全熱交換",
		"ファン", "空調機", "パッケージエアコン", "ダクト",
	},
	model.DisciplinePlumbing: {
		"衛生", "給水", "給湯", "排水", "汚水", "雑排水", "水道", "配管",
		"便器", "洗面", "流し", "手洗", "浄化槽", "貯水槽", "受水槽",
	},
	model.DisciplineGas: {
		"ガス", "都市ガス", "LPガス", "プロパン", "ガス配管", "ガス設備",
	},
	model.DisciplineFireProtection: {
		"消防", "消火", "スプリンクラー", "火災報知", "自動火災報知",
		"誘導灯", "非常照明", "防火", "排煙", "消火器", "屋内消火栓",
	},
}

// facilityKeywords is checked in order; the first facility with a hit wins.
var facilityKeywords = []struct {
	facility model.FacilityType
	keywords []string
}{
	{model.FacilitySchool, []string{"学校", "校舎", "教室", "高等学校", "中学校", "小学校", "大学"}},
	{model.FacilityOffice, []string{"オフィス", "事務所", "本社", "支社"}},
	{model.FacilityHospital, []string{"病院", "医療", "クリニック", "診療所"}},
	{model.FacilityFactory, []string{"工場", "製造", "プラント"}},
	{model.FacilityCommercial, []string{"商業", "店舗", "ショッピング", "モール"}},
}

func fold(s string) string {
	return strings.ToLower(width.Fold.String(s))
}

// Disciplines returns every discipline with at least one keyword in text,
// sorted by discipline value.
func Disciplines(text string) []model.Discipline {
	lower := fold(text)
	var found []model.Discipline
	for d, kws := range DisciplineKeywords {
		if containsAny(lower, kws...) {
			found = append(found, d)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })

	zap.L().Debug("classify: disciplines", zap.Int("count", len(found)))
	return found
}

// FacilityType infers the building use from text, defaulting to その他.
func FacilityType(text string) model.FacilityType {
	lower := fold(text)
	for _, fk := range facilityKeywords {
		if containsAny(lower, fk.keywords...) {
			return fk.facility
		}
	}
	return model.FacilityOther
}

// Priority scores each discipline by keyword frequency, min(count/10, 1).
func Priority(text string, disciplines []model.Discipline) map[model.Discipline]float64 {
	lower := fold(text)
	scores := make(map[model.Discipline]float64, len(disciplines))
	for _, d := range disciplines {
		count := 0
		for _, kw := range DisciplineKeywords[d] {
			count += strings.Count(lower, fold(kw))
		}
		scores[d] = math.Min(float64(count)/10.0, 1.0)
	}
	return scores
}

// containsAny checks if s contains any of the given keywords, compared
// after width folding and lower-casing.
func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, fold(kw)) {
			return true
		}
	}
	return false
}
