package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/resilience"
	"github.com/sells-group/bidquote/pkg/anthropic"
)

const gasItemsJSON = "```json\n" + `[
  {"item_no": "1", "level": 0, "name": "都市ガス設備工事", "quantity": null, "unit": "式", "cost_type": "一式", "confidence": 1.0},
  {"item_no": "", "level": 1, "name": "配管工事費", "quantity": 1, "unit": "式", "cost_type": "施工費"},
  {"item_no": "", "level": 2, "name": "白ガス管（ネジ接合）", "specification": "15A", "quantity": "93", "unit": "m",
   "unit_price": null, "cost_type": "材料費", "confidence": 0.8, "estimation_basis": "延床面積から推定"},
  {"item_no": "", "level": 2, "name": "", "quantity": 1},
  {"item_no": "", "level": 2, "name": "ガスコンセント", "quantity": "数個"}
]` + "\n```"

func TestGenerator_Items(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" &&
			req.MaxTokens == 8192 &&
			*req.Temperature == 0.3 &&
			len(req.System) == 1 && req.System[0].CacheControl != nil
	})).Return(textResponse(gasItemsJSON), nil).Once()

	g := testGenerator(client)
	items, err := g.Items(context.Background(), &model.BuildingInfo{FloorArea: 2145}, model.DisciplineGas)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, 0, items[0].Level)
	assert.Equal(t, model.CostTypeLumpSum, items[0].CostType)
	assert.Nil(t, items[0].Quantity)
	assert.Equal(t, 1.0, items[0].Confidence)

	assert.Equal(t, model.CostTypeLabor, items[1].CostType)
	assert.Equal(t, defaultConfidence, items[1].Confidence)
	assert.Equal(t, "AI設計", items[1].SourceReference)

	pipe := items[2]
	assert.Equal(t, "15A", pipe.Specification)
	require.NotNil(t, pipe.Quantity)
	assert.Equal(t, 93.0, *pipe.Quantity)
	assert.Nil(t, pipe.UnitPrice)
	assert.Equal(t, model.DisciplineGas, pipe.Discipline)
	assert.Equal(t, model.SourceAIGenerated, pipe.SourceType)
	assert.Equal(t, "延床面積から推定", pipe.SourceReference)

	client.AssertExpectations(t)
}

func TestGenerator_Items_PromptNamesWork(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1 &&
			strings.Contains(req.Messages[0].Content, "電気設備工事") &&
			strings.Contains(req.Messages[0].Content, "キュービクル")
	})).Return(textResponse(`[{"level": 0, "name": "電気設備工事"}]`), nil).Once()

	items, err := testGenerator(client).Items(context.Background(), &model.BuildingInfo{}, model.DisciplineElectrical)
	require.NoError(t, err)
	require.Len(t, items, 1)
	client.AssertExpectations(t)
}

func TestGenerator_Items_NoItems(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`[]`), nil)

	_, err := testGenerator(client).Items(context.Background(), &model.BuildingInfo{}, model.DisciplineGas)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no items")
}

func TestGenerator_RetriesOverloaded(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("overloaded_error: Overloaded")).Twice()
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`[{"level": 0, "name": "ガス設備工事"}]`), nil).Once()

	items, err := testGenerator(client).Items(context.Background(), &model.BuildingInfo{}, model.DisciplineGas)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	client.AssertNumberOfCalls(t, "CreateMessage", 3)
}

func TestGenerator_PermanentErrorNotRetried(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("invalid x-api-key")).Once()

	_, err := testGenerator(client).Items(context.Background(), &model.BuildingInfo{}, model.DisciplineGas)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate: 見積生成")
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestGenerator_BreakerOpen(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("invalid x-api-key"))

	g := testGenerator(client, WithBreaker(resilience.NewBreaker("test", 1, 0)))
	_, err := g.Items(context.Background(), &model.BuildingInfo{}, model.DisciplineGas)
	require.Error(t, err)

	_, err = g.Items(context.Background(), &model.BuildingInfo{}, model.DisciplineGas)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestGenerator_RecordsUsage(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`[{"level": 0, "name": "ガス設備工事"}]`), nil)

	rec := &mockRecorder{}
	rec.On("Record", mock.Anything, OpItems, "claude-sonnet-4-5-20250929",
		anthropic.TokenUsage{InputTokens: 1000, OutputTokens: 200}).
		Return(model.CostRecord{}, nil).Once()

	_, err := testGenerator(client, WithRecorder(rec)).Items(context.Background(), &model.BuildingInfo{}, model.DisciplineGas)
	require.NoError(t, err)
	rec.AssertExpectations(t)
}

func TestGenerator_RecorderErrorIgnored(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`[{"level": 0, "name": "ガス設備工事"}]`), nil)
	rec := &mockRecorder{}
	rec.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.CostRecord{}, errors.New("disk full"))

	_, err := testGenerator(client, WithRecorder(rec)).Items(context.Background(), &model.BuildingInfo{}, model.DisciplineGas)
	assert.NoError(t, err)
}

func TestGenerator_All(t *testing.T) {
	client := &mockAnthropicClient{}
	for _, d := range []model.Discipline{model.DisciplineGas, model.DisciplineElectrical, model.DisciplineFireProtection} {
		d := d
		client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
			return strings.Contains(req.Messages[0].Content, "以下の建物情報から、"+workNameFor(d))
		})).Return(textResponse(`[{"level": 0, "name": "`+d.WorkName()+`"}]`), nil).Once()
	}

	items, err := testGenerator(client).All(context.Background(), &model.BuildingInfo{},
		[]model.Discipline{model.DisciplineGas, model.DisciplineElectrical, model.DisciplineFireProtection})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, model.DisciplineGas, items[0].Discipline)
	assert.Equal(t, model.DisciplineElectrical, items[1].Discipline)
	assert.Equal(t, model.DisciplineFireProtection, items[2].Discipline)
}

func TestGenerator_All_Error(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("invalid x-api-key"))

	_, err := testGenerator(client).All(context.Background(), &model.BuildingInfo{}, []model.Discipline{model.DisciplineGas})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discipline ガス")
}

func workNameFor(d model.Discipline) string {
	if d == model.DisciplineGas {
		return "都市ガス設備工事"
	}
	return d.WorkName()
}
