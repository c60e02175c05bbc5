package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/bidquote/internal/model"
)

// --- Generator Mock ---

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) BuildingInfo(ctx context.Context, specText string) (*model.BuildingInfo, error) {
	args := m.Called(ctx, specText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BuildingInfo), args.Error(1)
}

func (m *mockGenerator) All(ctx context.Context, info *model.BuildingInfo, disciplines []model.Discipline) ([]*model.EstimateItem, error) {
	args := m.Called(ctx, info, disciplines)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.EstimateItem), args.Error(1)
}

// --- Store Mock ---

type mockRunStore struct {
	mock.Mock
}

func (m *mockRunStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	args := m.Called(ctx, run)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockRunStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return m.Called(ctx, runID, status).Error(0)
}

func (m *mockRunStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	return m.Called(ctx, runID, result).Error(0)
}
