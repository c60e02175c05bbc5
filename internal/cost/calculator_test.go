package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/pkg/anthropic"
)

func testPricing() config.PricingConfig {
	return config.PricingConfig{
		Anthropic: map[string]config.ModelPricing{
			"haiku": {
				Input: 0.80, Output: 4.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"sonnet": {
				Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		USDJPY: 150,
	}
}

func TestClaude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testPricing())

	tests := []struct {
		name  string
		model string
		usage anthropic.TokenUsage
		want  float64
	}{
		{
			name:  "haiku simple",
			model: "haiku",
			usage: anthropic.TokenUsage{InputTokens: 1000000, OutputTokens: 100000},
			want:  0.80 + 0.40,
		},
		{
			name:  "haiku with cache",
			model: "haiku",
			usage: anthropic.TokenUsage{
				InputTokens: 500000, OutputTokens: 50000,
				CacheCreationInputTokens: 200000, CacheReadInputTokens: 300000,
			},
			// in 0.40, out 0.20, cw 0.2*0.80*1.25 = 0.20, cr 0.3*0.80*0.1 = 0.024
			want: 0.40 + 0.20 + 0.20 + 0.024,
		},
		{
			name:  "sonnet",
			model: "sonnet",
			usage: anthropic.TokenUsage{InputTokens: 1000000, OutputTokens: 100000},
			want:  3.00 + 1.50,
		},
		{
			name:  "versioned name matches by substring",
			model: "claude-3-haiku-20240307",
			usage: anthropic.TokenUsage{InputTokens: 1000000},
			want:  0.80,
		},
		{
			name:  "unknown model uses fallback rate",
			model: "mystery",
			usage: anthropic.TokenUsage{InputTokens: 1000000, OutputTokens: 1000000},
			want:  3.00 + 15.00,
		},
		{
			name:  "zero tokens",
			model: "haiku",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Claude(tt.model, tt.usage)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestJPY(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 675.0, NewCalculator(testPricing()).JPY(4.5), 0.001)
	assert.InDelta(t, DefaultUSDJPY, NewCalculator(config.PricingConfig{}).JPY(1), 0.001)
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()

	assert.Contains(t, rates, "claude-haiku-4-5-20251001")
	assert.Contains(t, rates, fallbackModel)

	calc := NewCalculator(config.PricingConfig{})
	assert.InDelta(t, 3.00, calc.Rate(fallbackModel).Input, 0.001)
}
