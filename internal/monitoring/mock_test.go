package monitoring

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/store"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	runs, _ := args.Get(0).([]model.Run)
	return runs, args.Error(1)
}

func (m *mockSource) ListCosts(ctx context.Context, sessionID string) ([]model.CostRecord, error) {
	args := m.Called(ctx, sessionID)
	recs, _ := args.Get(0).([]model.CostRecord)
	return recs, args.Error(1)
}

// emptySource returns a source with no history.
func emptySource() *mockSource {
	src := &mockSource{}
	src.On("ListRuns", mock.Anything, mock.Anything).Return([]model.Run{}, nil)
	src.On("ListCosts", mock.Anything, "").Return([]model.CostRecord{}, nil)
	return src
}
