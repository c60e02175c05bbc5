package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/store"
)

var fixedNow = time.Date(2025, 9, 18, 12, 0, 0, 0, time.UTC)

func newTestCollector(src Source) *Collector {
	c := NewCollector(src)
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestCollector_Collect(t *testing.T) {
	recent := fixedNow.Add(-2 * time.Hour)
	old := fixedNow.Add(-48 * time.Hour)

	src := &mockSource{}
	src.On("ListRuns", mock.Anything, store.RunFilter{Limit: maxRuns}).Return([]model.Run{
		{ID: "r1", Status: model.RunStatusComplete, CreatedAt: recent,
			Result: &model.RunResult{TotalAmount: 1_000_000, MatchedRate: 0.8, IsValid: true}},
		{ID: "r2", Status: model.RunStatusComplete, CreatedAt: recent,
			Result: &model.RunResult{TotalAmount: 3_000_000, MatchedRate: 0.4, IsValid: false}},
		{ID: "r3", Status: model.RunStatusFailed, CreatedAt: recent},
		{ID: "r4", Status: model.RunStatusPricing, CreatedAt: recent},
		{ID: "r5", Status: model.RunStatusFailed, CreatedAt: old},
	}, nil)
	src.On("ListCosts", mock.Anything, "").Return([]model.CostRecord{
		{Operation: "items", InputTokens: 1000, OutputTokens: 500, CostUSD: 0.01, CostJPY: 1.5, CreatedAt: recent},
		{Operation: "items", InputTokens: 9000, OutputTokens: 9000, CostUSD: 1.0, CostJPY: 150, CreatedAt: old},
	}, nil)

	snap, err := newTestCollector(src).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.RunsTotal)
	assert.Equal(t, 2, snap.RunsComplete)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsInProgress)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 1e-9)
	assert.Equal(t, 1, snap.InvalidQuotes)
	assert.InDelta(t, 0.6, snap.AvgMatchRate, 1e-9)
	assert.Equal(t, 2_000_000.0, snap.AvgTotalAmount)

	assert.Equal(t, 1, snap.LLMCalls)
	assert.Equal(t, int64(1500), snap.LLMTokens)
	assert.InDelta(t, 1.5, snap.LLMCostJPY, 1e-9)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, fixedNow, snap.CollectedAt)
	src.AssertExpectations(t)
}

func TestCollector_Collect_Empty(t *testing.T) {
	snap, err := newTestCollector(emptySource()).Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.FailRate)
	assert.Zero(t, snap.AvgMatchRate)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollector_Collect_Errors(t *testing.T) {
	t.Run("runs", func(t *testing.T) {
		src := &mockSource{}
		src.On("ListRuns", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

		_, err := newTestCollector(src).Collect(context.Background(), 24)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "monitoring: list runs")
	})

	t.Run("costs", func(t *testing.T) {
		src := &mockSource{}
		src.On("ListRuns", mock.Anything, mock.Anything).Return([]model.Run{}, nil)
		src.On("ListCosts", mock.Anything, "").Return(nil, errors.New("db down"))

		_, err := newTestCollector(src).Collect(context.Background(), 24)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "monitoring: list costs")
	})
}
