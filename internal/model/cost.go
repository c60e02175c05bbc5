package model

import "time"

// CostRecord is one billed LLM call.
type CostRecord struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	Operation        string    `json:"operation"`
	Model            string    `json:"model"`
	InputTokens      int64     `json:"input_tokens"`
	OutputTokens     int64     `json:"output_tokens"`
	CacheWriteTokens int64     `json:"cache_write_tokens"`
	CacheReadTokens  int64     `json:"cache_read_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	CostJPY          float64   `json:"cost_jpy"`
	CreatedAt        time.Time `json:"created_at"`
}

// TotalTokens returns input plus output tokens.
func (r CostRecord) TotalTokens() int64 {
	return r.InputTokens + r.OutputTokens
}
