package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected by an open breaker.
var ErrBreakerOpen = eris.New("resilience: circuit breaker is open")

// Breaker stops calling a failing service after Threshold consecutive
// failures, and lets a single probe through once Cooldown has passed.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker creates a breaker. Zero values default to 5 failures and 30s.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Call runs fn unless the breaker is open.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the current state, reporting half-open once the cooldown of
// an open breaker has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return eris.Wrapf(ErrBreakerOpen, "%s", b.name)
		}
		b.setState(BreakerHalfOpen)
	case BreakerHalfOpen:
		// One probe is already in flight.
		return eris.Wrapf(ErrBreakerOpen, "%s (probing)", b.name)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Context cancellation says nothing about the service.
	if errors.Is(err, context.Canceled) {
		if b.state == BreakerHalfOpen {
			b.setState(BreakerOpen)
		}
		return
	}
	if err == nil {
		b.failures = 0
		if b.state != BreakerClosed {
			b.setState(BreakerClosed)
		}
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.openedAt = b.now()
		b.setState(BreakerOpen)
	}
}

func (b *Breaker) setState(to BreakerState) {
	if b.state == to {
		return
	}
	zap.L().Warn("resilience: breaker state change",
		zap.String("breaker", b.name),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
	)
	b.state = to
}
