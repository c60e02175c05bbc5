package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidquote/internal/config"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		MinMatchRate:         0.5,
		CostThresholdJPY:     10_000,
	}
}

func TestAlerter_Evaluate(t *testing.T) {
	tests := []struct {
		name string
		snap MetricsSnapshot
		want []AlertType
	}{
		{
			name: "healthy",
			snap: MetricsSnapshot{RunsComplete: 19, RunsFailed: 1, FailRate: 0.05, AvgMatchRate: 0.8, LLMCostJPY: 500},
		},
		{
			name: "failure rate",
			snap: MetricsSnapshot{RunsComplete: 8, RunsFailed: 2, FailRate: 0.2, AvgMatchRate: 0.8},
			want: []AlertType{AlertRunFailureRate},
		},
		{
			name: "too few runs for rate alerts",
			snap: MetricsSnapshot{RunsComplete: 2, RunsFailed: 2, FailRate: 0.5, AvgMatchRate: 0.1},
		},
		{
			name: "low match rate",
			snap: MetricsSnapshot{RunsComplete: 10, AvgMatchRate: 0.3},
			want: []AlertType{AlertLowMatchRate},
		},
		{
			name: "cost overrun",
			snap: MetricsSnapshot{LLMCostJPY: 12_000, LLMCostUSD: 80},
			want: []AlertType{AlertCostOverrun},
		},
		{
			name: "everything",
			snap: MetricsSnapshot{RunsComplete: 5, RunsFailed: 5, FailRate: 0.5, AvgMatchRate: 0.2, LLMCostJPY: 20_000},
			want: []AlertType{AlertRunFailureRate, AlertLowMatchRate, AlertCostOverrun},
		},
	}
	a := NewAlerter(testMonitoringConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := a.Evaluate(&tt.snap)
			var got []AlertType
			for _, al := range alerts {
				got = append(got, al.Type)
				assert.NotEmpty(t, al.Message)
				assert.False(t, al.Timestamp.IsZero())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAlerter_Evaluate_DisabledThresholds(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	alerts := a.Evaluate(&MetricsSnapshot{RunsComplete: 5, RunsFailed: 5, FailRate: 0.5, AvgMatchRate: 0, LLMCostJPY: 1e6})
	assert.Empty(t, alerts)
}

func TestAlerter_Send(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bidquote", body.Source)
		require.Len(t, body.Alerts, 1)
		assert.Equal(t, AlertCostOverrun, body.Alerts[0].Type)
		require.NotNil(t, body.Snapshot)
		assert.Equal(t, 12_000.0, body.Snapshot.LLMCostJPY)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = ts.URL
	a := NewAlerter(cfg)

	snap := &MetricsSnapshot{LLMCostJPY: 12_000}
	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)

	require.NoError(t, a.Send(context.Background(), alerts, snap))
	assert.Equal(t, int32(1), received.Load())
}

func TestAlerter_Send_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = ts.URL

	err := NewAlerter(cfg).Send(context.Background(), []Alert{{Type: AlertCostOverrun}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestAlerter_Send_NoWebhook(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	assert.NoError(t, a.Send(context.Background(), []Alert{{Type: AlertCostOverrun}}, nil))
}
