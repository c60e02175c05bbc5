package model

import "time"

// RunStatus represents the current state of an estimate run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusIngesting  RunStatus = "ingesting"
	RunStatusGenerating RunStatus = "generating"
	RunStatusPricing    RunStatus = "pricing"
	RunStatusValidating RunStatus = "validating"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is a single estimate run for one spec document.
type Run struct {
	ID           string       `json:"id"`
	SpecPath     string       `json:"spec_path"`
	ProjectName  string       `json:"project_name"`
	BuildingType FacilityType `json:"building_type"`
	FloorArea    float64      `json:"floor_area"`
	Status       RunStatus    `json:"status"`
	Result       *RunResult   `json:"result,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	TotalAmount float64         `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	MatchedRate float64         `json:"matched_rate"`
	IsValid     bool            `json:"is_valid"`
	TotalTokens int             `json:"total_tokens"`
	TotalCost   float64         `json:"total_cost"`
	Phases      []PhaseResult   `json:"phases"`
	Items       []*EstimateItem `json:"items,omitempty"`
	Report      string          `json:"report"`
	Error       string          `json:"error,omitempty"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name       string         `json:"name"`
	Status     PhaseStatus    `json:"status"`
	Duration   int64          `json:"duration_ms"`
	TokenUsage TokenUsage     `json:"token_usage"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TokenUsage tracks LLM token consumption.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.Cost += other.Cost
}

// Total returns input plus output tokens.
func (t TokenUsage) Total() int {
	return t.InputTokens + t.OutputTokens
}
