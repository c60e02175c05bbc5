package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/config"
)

// Checker collects a snapshot on a fixed interval and posts new alerts. An
// alert type that was already sent is not re-sent until it clears.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	active    map[AlertType]bool
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		active:    map[AlertType]bool{},
	}
}

// Run checks once per interval (default 5m) until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	zap.L().Info("monitoring: checker started",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("monitoring: checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects one snapshot and posts the alerts that were not active at
// the previous check. It returns those newly raised alerts.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		zap.L().Error("monitoring: collect failed", zap.Error(err))
		return nil
	}

	current := map[AlertType]bool{}
	var fresh []Alert
	for _, a := range c.alerter.Evaluate(snap) {
		current[a.Type] = true
		if !c.active[a.Type] {
			fresh = append(fresh, a)
		}
	}

	if len(fresh) > 0 {
		if err := c.alerter.Send(ctx, fresh, snap); err != nil {
			zap.L().Error("monitoring: send alerts failed", zap.Int("alerts", len(fresh)), zap.Error(err))
			// Keep them pending so the next check retries.
			for _, a := range fresh {
				delete(current, a.Type)
			}
		} else {
			zap.L().Info("monitoring: alerts raised", zap.Int("alerts", len(fresh)))
		}
	}
	c.active = current
	return fresh
}
