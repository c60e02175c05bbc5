package generate

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/resilience"
	"github.com/sells-group/bidquote/pkg/anthropic"
)

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Recorder Mock ---

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, operation, modelName string, u anthropic.TokenUsage) (model.CostRecord, error) {
	args := m.Called(ctx, operation, modelName, u)
	return args.Get(0).(model.CostRecord), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg_test",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 1000, OutputTokens: 200},
	}
}

func testGenerator(client anthropic.Client, opts ...Option) *Generator {
	opts = append([]Option{WithRetry(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})}, opts...)
	return New(client, config.AnthropicConfig{MaxConcurrent: 2}, opts...)
}
