package resilience

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter paces requests and tunes its rate: each success raises it
// by 20% up to twice the initial rate; each 429 halves it down to a quarter
// of the initial rate.
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	current rate.Limit
	maxRate rate.Limit
	minRate rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at initial events/second.
func NewAdaptiveLimiter(initial rate.Limit, burst int) *AdaptiveLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(initial, burst),
		current: initial,
		maxRate: initial * 2,
		minRate: initial / 4,
	}
}

// PerMinute converts a requests-per-minute setting to a limiter rate. Zero
// or negative means unlimited.
func PerMinute(rpm int) rate.Limit {
	if rpm <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(rpm) / 60.0)
}

// Wait blocks until a request may proceed.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess speeds the limiter up.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == rate.Inf {
		return
	}
	a.set(min(a.current*1.2, a.maxRate))
}

// OnRateLimit slows the limiter down after a 429.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == rate.Inf {
		return
	}
	a.set(max(a.current*0.5, a.minRate))
	zap.L().Warn("resilience: reducing request rate after 429",
		zap.Float64("rate", float64(a.current)),
	)
}

// Observe adjusts the rate from a call result.
func (a *AdaptiveLimiter) Observe(err error) {
	switch {
	case err == nil:
		a.OnSuccess()
	case IsRateLimited(err):
		a.OnRateLimit()
	}
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) set(l rate.Limit) {
	a.current = l
	a.limiter.SetLimit(l)
}
