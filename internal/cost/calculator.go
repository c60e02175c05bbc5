// Package cost prices LLM token usage and keeps per-session cost records.
package cost

import (
	"strings"

	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/pkg/anthropic"
)

// DefaultUSDJPY is the conversion rate used when none is configured.
const DefaultUSDJPY = 150.0

// fallbackModel prices models that have no configured rate.
const fallbackModel = "claude-sonnet-4-5-20250929"

// Calculator computes costs for API usage.
type Calculator struct {
	rates  map[string]config.ModelPricing
	usdJPY float64
}

// NewCalculator creates a Calculator. Configured rates override the
// defaults model by model.
func NewCalculator(cfg config.PricingConfig) *Calculator {
	rates := DefaultRates()
	for model, r := range cfg.Anthropic {
		rates[model] = r
	}
	usdJPY := cfg.USDJPY
	if usdJPY <= 0 {
		usdJPY = DefaultUSDJPY
	}
	return &Calculator{rates: rates, usdJPY: usdJPY}
}

// Rate returns the pricing for model. An exact key wins; otherwise the first
// key that contains or is contained in the model name, in sorted key order;
// otherwise the fallback model's rate.
func (c *Calculator) Rate(model string) config.ModelPricing {
	if r, ok := c.rates[model]; ok {
		return r
	}
	var best string
	for key := range c.rates {
		if strings.Contains(model, key) || strings.Contains(key, model) {
			if best == "" || key < best {
				best = key
			}
		}
	}
	if best != "" && model != "" {
		return c.rates[best]
	}
	return c.rates[fallbackModel]
}

// Claude computes the USD cost of a Claude API call.
func (c *Calculator) Claude(model string, u anthropic.TokenUsage) float64 {
	rate := c.Rate(model)

	inCost := (float64(u.InputTokens) / 1e6) * rate.Input
	outCost := (float64(u.OutputTokens) / 1e6) * rate.Output
	cwCost := (float64(u.CacheCreationInputTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheReadInputTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// JPY converts a USD amount at the configured rate.
func (c *Calculator) JPY(usd float64) float64 {
	return usd * c.usdJPY
}

// DefaultRates returns the default pricing rates (USD per million tokens).
func DefaultRates() map[string]config.ModelPricing {
	return map[string]config.ModelPricing{
		"claude-haiku-4-5-20251001": {
			Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
		},
		"claude-sonnet-4-5-20250929": {
			Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
		},
		"claude-sonnet-4-20250514": {
			Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
		},
		"claude-opus-4-1-20250805": {
			Input: 15.00, Output: 75.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
		},
	}
}
