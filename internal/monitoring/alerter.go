package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bidquote/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate AlertType = "run_failure_rate"
	AlertLowMatchRate   AlertType = "low_match_rate"
	AlertCostOverrun    AlertType = "cost_overrun"
)

// minFinishedRuns is the sample size below which rate alerts stay quiet.
const minFinishedRuns = 5

// Alert is one breached threshold.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// rule inspects a snapshot and returns an alert when its threshold is
// breached.
type rule func(cfg config.MonitoringConfig, s *MetricsSnapshot) *Alert

var rules = []rule{failureRateRule, matchRateRule, costRule}

func failureRateRule(cfg config.MonitoringConfig, s *MetricsSnapshot) *Alert {
	finished := s.RunsComplete + s.RunsFailed
	if cfg.FailureRateThreshold <= 0 || finished < minFinishedRuns || s.FailRate <= cfg.FailureRateThreshold {
		return nil
	}
	return &Alert{
		Type:     AlertRunFailureRate,
		Severity: "high",
		Message: fmt.Sprintf("見積失敗率 %.1f%% が閾値 %.1f%% を超過 (直近%d時間 %d/%d件)",
			s.FailRate*100, cfg.FailureRateThreshold*100, s.LookbackHours, s.RunsFailed, finished),
		Details: map[string]any{
			"failure_rate": s.FailRate,
			"threshold":    cfg.FailureRateThreshold,
			"failed":       s.RunsFailed,
			"finished":     finished,
		},
	}
}

func matchRateRule(cfg config.MonitoringConfig, s *MetricsSnapshot) *Alert {
	if cfg.MinMatchRate <= 0 || s.RunsComplete < minFinishedRuns || s.AvgMatchRate >= cfg.MinMatchRate {
		return nil
	}
	return &Alert{
		Type:     AlertLowMatchRate,
		Severity: "medium",
		Message: fmt.Sprintf("平均KB一致率 %.1f%% が下限 %.1f%% を下回っています (直近%d時間 %d件)",
			s.AvgMatchRate*100, cfg.MinMatchRate*100, s.LookbackHours, s.RunsComplete),
		Details: map[string]any{
			"avg_match_rate": s.AvgMatchRate,
			"min_match_rate": cfg.MinMatchRate,
			"runs":           s.RunsComplete,
		},
	}
}

func costRule(cfg config.MonitoringConfig, s *MetricsSnapshot) *Alert {
	if cfg.CostThresholdJPY <= 0 || s.LLMCostJPY <= cfg.CostThresholdJPY {
		return nil
	}
	return &Alert{
		Type:     AlertCostOverrun,
		Severity: "high",
		Message: fmt.Sprintf("LLMコスト ¥%.0f が予算 ¥%.0f を超過 (直近%d時間 %d回)",
			s.LLMCostJPY, cfg.CostThresholdJPY, s.LookbackHours, s.LLMCalls),
		Details: map[string]any{
			"cost_jpy":      s.LLMCostJPY,
			"cost_usd":      s.LLMCostUSD,
			"threshold_jpy": cfg.CostThresholdJPY,
		},
	}
}

// Alerter evaluates snapshots against the configured thresholds and posts
// breaches to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate returns the alerts triggered by snap, in rule order.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()
	for _, r := range rules {
		if al := r(a.cfg, snap); al != nil {
			al.Timestamp = now
			alerts = append(alerts, *al)
		}
	}
	return alerts
}

// webhookPayload is the body posted for one check.
type webhookPayload struct {
	Source   string           `json:"source"`
	Alerts   []Alert          `json:"alerts"`
	Snapshot *MetricsSnapshot `json:"snapshot,omitempty"`
}

// Send posts alerts in one request. It is a no-op without a webhook URL or
// alerts.
func (a *Alerter) Send(ctx context.Context, alerts []Alert, snap *MetricsSnapshot) error {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(webhookPayload{Source: "bidquote", Alerts: alerts, Snapshot: snap})
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alerts")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
