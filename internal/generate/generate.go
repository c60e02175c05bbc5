// Package generate drafts estimate items and building facts from spec text
// with Claude, and extracts price references from past invoices.
package generate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/resilience"
	"github.com/sells-group/bidquote/pkg/anthropic"
)

// Operation names recorded with each call's cost.
const (
	OpBuildingInfo = "建物情報抽出"
	OpItems        = "見積生成"
	OpKBExtract    = "KB抽出"
)

// UsageRecorder receives the token usage of each successful call.
type UsageRecorder interface {
	Record(ctx context.Context, operation, model string, u anthropic.TokenUsage) (model.CostRecord, error)
}

// Generator wraps an anthropic.Client with pacing, retries and a circuit
// breaker. It is safe for concurrent use.
type Generator struct {
	client   anthropic.Client
	cfg      config.AnthropicConfig
	recorder UsageRecorder
	limiter  *resilience.AdaptiveLimiter
	breaker  *resilience.Breaker
	retry    resilience.RetryConfig
}

// Option configures a Generator.
type Option func(*Generator)

// WithRecorder reports token usage to r.
func WithRecorder(r UsageRecorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *Generator) { g.retry = cfg }
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(g *Generator) { g.breaker = b }
}

// New creates a Generator.
func New(client anthropic.Client, cfg config.AnthropicConfig, opts ...Option) *Generator {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	g := &Generator{
		client:  client,
		cfg:     cfg,
		limiter: resilience.NewAdaptiveLimiter(resilience.PerMinute(cfg.RequestsPerMinute), 1),
		breaker: resilience.NewBreaker("anthropic", 5, 30*time.Second),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// call sends one prompt and returns the response text.
func (g *Generator) call(ctx context.Context, operation, system, prompt string, maxTokens int64, temperature float64) (string, error) {
	if maxTokens <= 0 || maxTokens > g.cfg.MaxTokens {
		maxTokens = g.cfg.MaxTokens
	}
	req := anthropic.MessageRequest{
		Model:       g.cfg.Model,
		MaxTokens:   maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	}
	if system != "" {
		req.System = anthropic.CachedSystem(system, "")
	}

	retry := g.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(operation)
	}

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "generate: rate limit wait")
		}
		resp, err := resilience.Call(ctx, g.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			resp, err := g.client.CreateMessage(ctx, req)
			if err != nil {
				if status := anthropic.StatusCode(err); resilience.IsTransientHTTPStatus(status) {
					return nil, resilience.NewTransientError(err, status)
				}
				return nil, err
			}
			return resp, nil
		})
		g.limiter.Observe(err)
		return resp, err
	})
	if err != nil {
		return "", eris.Wrapf(err, "generate: %s", operation)
	}

	if resp.Truncated() {
		zap.L().Warn("generate: response truncated at max_tokens",
			zap.String("operation", operation),
			zap.Int64("max_tokens", maxTokens),
		)
	}
	if g.recorder != nil {
		if _, err := g.recorder.Record(ctx, operation, g.cfg.Model, resp.Usage); err != nil {
			zap.L().Warn("generate: record usage", zap.String("operation", operation), zap.Error(err))
		}
	}
	return resp.Text(), nil
}
