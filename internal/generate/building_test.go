package generate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidquote/internal/model"
)

const buildingJSON = `{
  "project_name": "市立第一中学校仮設校舎リース",
  "client_name": "○○市教育委員会",
  "location": "○○市中央1-2-3",
  "contract_period": "2025年4月～2027年3月",
  "building_info": {
    "total_floor_area": "2,145",
    "floors": 2,
    "building_type": "仮設校舎",
    "num_rooms": null,
    "structure": "鉄骨造",
    "is_temporary": true
  },
  "facility_requirements": {"gas": {"required": true}},
  "construction_conditions": {
    "existing_building": true,
    "requires_demolition": false,
    "site_access": "良好",
    "work_restrictions": ""
  }
}`

func TestParseBuildingInfo(t *testing.T) {
	info, err := parseBuildingInfo("抽出結果です。\n" + buildingJSON)
	require.NoError(t, err)

	assert.Equal(t, "市立第一中学校仮設校舎リース", info.ProjectName)
	assert.Equal(t, 2145.0, info.FloorArea)
	assert.Equal(t, 2, info.Floors)
	assert.Zero(t, info.NumRooms)
	assert.Equal(t, model.FacilitySchool, info.BuildingType)
	assert.True(t, info.IsTemporary)
	assert.JSONEq(t, `{"gas": {"required": true}}`, info.FacilityRequirements)
	assert.Equal(t, []string{"existing_building", "site_access: 良好"}, info.ConstructionConditions)
}

func TestParseBuildingInfo_Invalid(t *testing.T) {
	_, err := parseBuildingInfo("情報が不足しています")
	assert.Error(t, err)

	_, err = parseBuildingInfo(`{"building_info": [}`)
	assert.Error(t, err)
}

func TestGenerator_BuildingInfo_FallsBackToSpecText(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"project_name": "改修工事", "building_info": {"building_type": null}}`), nil)

	info, err := testGenerator(client).BuildingInfo(context.Background(), "本工事は総合病院の外来棟改修である。")
	require.NoError(t, err)
	assert.Equal(t, model.FacilityHospital, info.BuildingType)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "ガス", truncateRunes("ガス設備", 2))
	assert.Equal(t, "ガス", truncateRunes("ガス", 10))
}

func TestParseReferences(t *testing.T) {
	text := `[
	  {"name": "白ガス管（ネジ接合）", "specification": "20A", "quantity": 50, "unit": "m", "unit_price": "3,400", "discipline": "ガス"},
	  {"name": "ガス設備工事 小計", "unit_price": null},
	  {"name": "分電盤", "unit": "", "unit_price": 180000, "discipline": "電気"},
	  {"name": "不明品目", "unit_price": 500, "discipline": "土木"},
	  {"name": "値引き", "unit_price": -10000}
	]`
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	refs, err := parseReferences(text, "県立高校改修", now)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	assert.Equal(t, "県立高校改修_001", refs[0].ItemID)
	assert.Equal(t, 3400.0, refs[0].UnitPrice)
	assert.Equal(t, "20A", refs[0].Features.Specification)
	require.NotNil(t, refs[0].Features.Quantity)
	assert.Equal(t, 50.0, *refs[0].Features.Quantity)
	assert.Equal(t, []string{"学校", "改修"}, refs[0].ContextTags)
	assert.Equal(t, "2025-06-01", refs[0].ValidFrom)

	assert.Equal(t, "県立高校改修_003", refs[1].ItemID)
	assert.Equal(t, model.DisciplineElectrical, refs[1].Discipline)
	assert.Equal(t, "式", refs[1].Unit)

	assert.Equal(t, model.DisciplineGas, refs[2].Discipline)
}

func TestProjectTags(t *testing.T) {
	tests := []struct {
		project string
		want    []string
	}{
		{"仮設校舎リース", []string{"仮設"}},
		{"第二小学校改修", []string{"学校", "改修"}},
		{"本社ビル新築", nil},
	}
	for _, tt := range tests {
		t.Run(tt.project, func(t *testing.T) {
			assert.Equal(t, tt.want, projectTags(tt.project))
		})
	}
}

func TestGenerator_ExtractReferences(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`[{"name": "ガスコンセント", "unit": "個", "unit_price": 12000, "discipline": "ガス"}]`), nil)

	refs, err := testGenerator(client).ExtractReferences(context.Background(), "ガスコンセント 10個 12,000", "P1")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "P1_001", refs[0].ItemID)
	assert.Equal(t, "P1", refs[0].SourceProject)
}
