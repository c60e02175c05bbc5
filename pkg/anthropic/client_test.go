package anthropic

import (
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "前半"},
		{Type: "thinking", Text: "ignored"},
		{Type: "text", Text: "後半"},
	}}
	assert.Equal(t, "前半後半", resp.Text())

	assert.True(t, (&MessageResponse{StopReason: "max_tokens"}).Truncated())
}

func TestStatusCode_NonAPIError(t *testing.T) {
	assert.Zero(t, StatusCode(errors.New("dial tcp: refused")))
	assert.Zero(t, StatusCode(nil))
}

func TestCachedSystem(t *testing.T) {
	blocks := CachedSystem("prompt", "1h")
	require.Len(t, blocks, 1)
	assert.Equal(t, "prompt", blocks[0].Text)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)

	assert.Equal(t, "5m", CachedSystem("prompt", "")[0].CacheControl.TTL)
}

func TestFromSDKMessage(t *testing.T) {
	msg := &sdk.Message{
		ID:         "msg_1",
		Model:      "claude-sonnet-4-5-20250929",
		StopReason: "max_tokens",
		Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "[{"}},
		Usage:      sdk.Usage{InputTokens: 100, OutputTokens: 8192, CacheReadInputTokens: 3000},
	}

	resp := fromSDKMessage(msg)

	assert.Equal(t, "msg_1", resp.ID)
	assert.True(t, resp.Truncated())
	assert.Equal(t, "[{", resp.Text())
	assert.Equal(t, int64(3000), resp.Usage.CacheReadInputTokens)
}

func TestToSDKMessages(t *testing.T) {
	out := toSDKMessages([]Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "["},
	})
	require.Len(t, out, 2)
	assert.Equal(t, sdk.MessageParamRoleUser, out[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, out[1].Role)
}
