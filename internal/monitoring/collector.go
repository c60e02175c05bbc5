// Package monitoring watches estimate run history and LLM spend, and posts
// alerts to a webhook when thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/store"
)

// maxRuns bounds the run history scanned per collection.
const maxRuns = 10000

// MetricsSnapshot holds a point-in-time view of estimator health.
type MetricsSnapshot struct {
	// Runs created within the lookback window.
	RunsTotal      int     `json:"runs_total"`
	RunsComplete   int     `json:"runs_complete"`
	RunsFailed     int     `json:"runs_failed"`
	RunsInProgress int     `json:"runs_in_progress"`
	FailRate       float64 `json:"fail_rate"`
	InvalidQuotes  int     `json:"invalid_quotes"`
	AvgMatchRate   float64 `json:"avg_match_rate"`
	AvgTotalAmount float64 `json:"avg_total_amount"`

	// LLM usage recorded within the lookback window.
	LLMCalls   int     `json:"llm_calls"`
	LLMTokens  int64   `json:"llm_tokens"`
	LLMCostUSD float64 `json:"llm_cost_usd"`
	LLMCostJPY float64 `json:"llm_cost_jpy"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Source is the slice of the store the collector reads.
type Source interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	ListCosts(ctx context.Context, sessionID string) ([]model.CostRecord, error)
}

// Collector gathers metrics from the store.
type Collector struct {
	src Source
	now func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(src Source) *Collector {
	return &Collector{src: src, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.src.ListRuns(ctx, store.RunFilter{Limit: maxRuns})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var (
		matchSum, amountSum float64
		withResult          int
	)
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		default:
			snap.RunsInProgress++
		}
		if r.Status != model.RunStatusComplete || r.Result == nil {
			continue
		}
		withResult++
		matchSum += r.Result.MatchedRate
		amountSum += r.Result.TotalAmount
		if !r.Result.IsValid {
			snap.InvalidQuotes++
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if withResult > 0 {
		snap.AvgMatchRate = matchSum / float64(withResult)
		snap.AvgTotalAmount = amountSum / float64(withResult)
	}

	costs, err := c.src.ListCosts(ctx, "")
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list costs")
	}
	for _, rec := range costs {
		if rec.CreatedAt.Before(cutoff) {
			continue
		}
		snap.LLMCalls++
		snap.LLMTokens += rec.TotalTokens()
		snap.LLMCostUSD += rec.CostUSD
		snap.LLMCostJPY += rec.CostJPY
	}

	return snap, nil
}
