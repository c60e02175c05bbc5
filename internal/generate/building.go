package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/classify"
	"github.com/sells-group/bidquote/internal/model"
)

// maxSpecChars bounds the spec excerpt sent with each prompt.
const maxSpecChars = 20000

const systemPrompt = "あなたは建築設備の積算専門家です。回答は指定されたJSON形式のみで出力してください。"

const buildingInfoPrompt = `以下の仕様書から、設備設計に必要な建物情報を抽出してください。

仕様書:
%s

【出力形式】
{
  "project_name": "工事名",
  "client_name": "顧客名",
  "location": "工事場所",
  "contract_period": "工期・リース期間",
  "building_info": {
    "total_floor_area": 2145,
    "floors": 2,
    "building_type": "仮設校舎",
    "num_rooms": 20,
    "structure": "鉄骨造",
    "is_temporary": true
  },
  "facility_requirements": {
    "gas": {"required": true, "type": "都市ガス", "usage": "給湯、厨房機器"},
    "electrical": {"required": true, "voltage": "低圧"},
    "mechanical": {"required": true, "hvac_type": "空調設備", "plumbing": true}
  },
  "construction_conditions": {
    "existing_building": true,
    "requires_demolition": true,
    "site_access": "良好",
    "work_restrictions": "授業時間外"
  }
}

total_floor_area は延床面積（㎡）、num_rooms は推定部屋数です。不明な項目は null としてください。
コメント（//）は含めず、純粋なJSONで出力してください。`

type buildingResponse struct {
	ProjectName    string `json:"project_name"`
	ClientName     string `json:"client_name"`
	Location       string `json:"location"`
	ContractPeriod string `json:"contract_period"`
	Building       struct {
		FloorArea    flexFloat  `json:"total_floor_area"`
		Floors       flexFloat  `json:"floors"`
		BuildingType flexString `json:"building_type"`
		NumRooms     flexFloat  `json:"num_rooms"`
		Structure    flexString `json:"structure"`
		IsTemporary  bool       `json:"is_temporary"`
	} `json:"building_info"`
	FacilityRequirements   json.RawMessage `json:"facility_requirements"`
	ConstructionConditions map[string]any  `json:"construction_conditions"`
}

// BuildingInfo extracts building facts from spec text.
func (g *Generator) BuildingInfo(ctx context.Context, specText string) (*model.BuildingInfo, error) {
	prompt := fmt.Sprintf(buildingInfoPrompt, truncateRunes(specText, maxSpecChars))
	text, err := g.call(ctx, OpBuildingInfo, systemPrompt, prompt, 8000, 0)
	if err != nil {
		return nil, err
	}
	info, err := parseBuildingInfo(text)
	if err != nil {
		return nil, err
	}
	if info.BuildingType == "" || info.BuildingType == model.FacilityOther {
		info.BuildingType = classify.FacilityType(specText)
	}
	zap.L().Info("generate: building info extracted",
		zap.String("project", info.ProjectName),
		zap.Float64("floor_area", info.FloorArea),
		zap.String("building_type", string(info.BuildingType)),
	)
	return info, nil
}

func parseBuildingInfo(text string) (*model.BuildingInfo, error) {
	raw, err := extractJSON(text, '{', '}')
	if err != nil {
		return nil, err
	}
	var resp buildingResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, eris.Wrap(err, "generate: parse building info")
	}

	b := resp.Building
	info := &model.BuildingInfo{
		ProjectName:    resp.ProjectName,
		ClientName:     resp.ClientName,
		Location:       resp.Location,
		ContractPeriod: resp.ContractPeriod,
		FloorArea:      deref(b.FloorArea.v),
		Floors:         int(deref(b.Floors.v)),
		NumRooms:       int(deref(b.NumRooms.v)),
		Structure:      string(b.Structure),
		IsTemporary:    b.IsTemporary,
		BuildingType:   classify.FacilityType(string(b.BuildingType) + " " + resp.ProjectName),
	}
	if len(resp.FacilityRequirements) > 0 && string(resp.FacilityRequirements) != "null" {
		info.FacilityRequirements = string(resp.FacilityRequirements)
	}
	info.ConstructionConditions = conditions(resp.ConstructionConditions)
	return info, nil
}

// conditions flattens the condition object into sorted "key: value" lines,
// dropping false and empty values.
func conditions(m map[string]any) []string {
	var out []string
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			continue
		case bool:
			if val {
				out = append(out, k)
			}
		case string:
			if val != "" {
				out = append(out, k+": "+val)
			}
		default:
			out = append(out, fmt.Sprintf("%s: %v", k, val))
		}
	}
	sort.Strings(out)
	return out
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
