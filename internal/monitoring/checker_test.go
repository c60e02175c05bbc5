package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    1,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.10,
	}
	checker := NewChecker(NewCollector(emptySource()), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(emptySource()), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	assert.NotNil(t, checker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func costSource(jpy ...float64) *mockSource {
	src := &mockSource{}
	src.On("ListRuns", mock.Anything, mock.Anything).Return([]model.Run{}, nil)
	for _, v := range jpy {
		src.On("ListCosts", mock.Anything, "").Return([]model.CostRecord{
			{CostJPY: v, CreatedAt: time.Now()},
		}, nil).Once()
	}
	return src
}

func TestChecker_Check_RaisesOnce(t *testing.T) {
	var posts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{CostThresholdJPY: 10_000, LookbackWindowHours: 24, WebhookURL: ts.URL}
	// Over budget, still over, back under, over again.
	src := costSource(20_000, 25_000, 100, 30_000)
	checker := NewChecker(NewCollector(src), NewAlerter(cfg), cfg)
	ctx := context.Background()

	first := checker.Check(ctx)
	require.Len(t, first, 1)
	assert.Equal(t, AlertCostOverrun, first[0].Type)

	assert.Empty(t, checker.Check(ctx), "active alert is not re-sent")
	assert.Empty(t, checker.Check(ctx))
	assert.Len(t, checker.Check(ctx), 1, "alert is raised again after clearing")

	assert.Equal(t, int32(2), posts.Load())
	src.AssertExpectations(t)
}

func TestChecker_Check_RetriesFailedSend(t *testing.T) {
	var posts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if posts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{CostThresholdJPY: 10_000, LookbackWindowHours: 24, WebhookURL: ts.URL}
	checker := NewChecker(NewCollector(costSource(20_000, 20_000)), NewAlerter(cfg), cfg)

	assert.Len(t, checker.Check(context.Background()), 1)
	assert.Len(t, checker.Check(context.Background()), 1)
	assert.Equal(t, int32(2), posts.Load())
}

func TestChecker_Check_CollectError(t *testing.T) {
	src := &mockSource{}
	src.On("ListRuns", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	cfg := config.MonitoringConfig{CostThresholdJPY: 1}
	assert.Nil(t, NewChecker(NewCollector(src), NewAlerter(cfg), cfg).Check(context.Background()))
}
