package cost

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/pkg/anthropic"
)

// Sink persists cost records.
type Sink interface {
	RecordCost(ctx context.Context, rec model.CostRecord) error
}

// Tracker records the cost of every LLM call made during a session. It is
// safe for concurrent use.
type Tracker struct {
	calc *Calculator
	sink Sink
	now  func() time.Time

	mu      sync.Mutex
	session string
	records []model.CostRecord
}

// NewTracker creates a Tracker with a fresh session. sink may be nil, in
// which case records are only kept in memory.
func NewTracker(calc *Calculator, sink Sink) *Tracker {
	return &Tracker{calc: calc, sink: sink, now: time.Now, session: uuid.NewString()}
}

// StartSession begins a new session and returns its ID. Records from the
// previous session are dropped from memory.
func (t *Tracker) StartSession(name string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = uuid.NewString()
	t.records = nil
	zap.L().Info("cost: session started", zap.String("session_id", t.session), zap.String("name", name))
	return t.session
}

// Session returns the current session ID.
func (t *Tracker) Session() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// Record prices one call and persists it.
func (t *Tracker) Record(ctx context.Context, operation, modelName string, u anthropic.TokenUsage) (model.CostRecord, error) {
	usd := t.calc.Claude(modelName, u)

	t.mu.Lock()
	rec := model.CostRecord{
		ID:               uuid.NewString(),
		SessionID:        t.session,
		Operation:        operation,
		Model:            modelName,
		InputTokens:      u.InputTokens,
		OutputTokens:     u.OutputTokens,
		CacheWriteTokens: u.CacheCreationInputTokens,
		CacheReadTokens:  u.CacheReadInputTokens,
		CostUSD:          usd,
		CostJPY:          t.calc.JPY(usd),
		CreatedAt:        t.now().UTC(),
	}
	t.records = append(t.records, rec)
	t.mu.Unlock()

	zap.L().Info("cost: recorded",
		zap.String("operation", operation),
		zap.String("model", modelName),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Float64("cost_usd", rec.CostUSD),
		zap.Float64("cost_jpy", rec.CostJPY),
	)

	if t.sink != nil {
		if err := t.sink.RecordCost(ctx, rec); err != nil {
			return rec, eris.Wrap(err, "cost: persist record")
		}
	}
	return rec, nil
}

// Records returns a copy of the current session's records.
func (t *Tracker) Records() []model.CostRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.CostRecord(nil), t.records...)
}

// Summary totals the current session.
func (t *Tracker) Summary() Summary {
	return Summarize(t.Records())
}

// OperationSummary totals one operation.
type OperationSummary struct {
	Operation string  `json:"operation"`
	Count     int     `json:"count"`
	Tokens    int64   `json:"tokens"`
	CostUSD   float64 `json:"cost_usd"`
	CostJPY   float64 `json:"cost_jpy"`
}

// Summary totals a set of cost records.
type Summary struct {
	Records      int                `json:"total_records"`
	InputTokens  int64              `json:"total_input_tokens"`
	OutputTokens int64              `json:"total_output_tokens"`
	TotalTokens  int64              `json:"total_tokens"`
	CostUSD      float64            `json:"total_cost_usd"`
	CostJPY      float64            `json:"total_cost_jpy"`
	ByOperation  []OperationSummary `json:"by_operation"`
	ByDate       map[string]float64 `json:"by_date_jpy"`
}

// Summarize totals records overall, per operation (sorted by name) and per
// UTC day.
func Summarize(records []model.CostRecord) Summary {
	s := Summary{ByDate: map[string]float64{}}
	ops := map[string]*OperationSummary{}
	for _, r := range records {
		s.Records++
		s.InputTokens += r.InputTokens
		s.OutputTokens += r.OutputTokens
		s.CostUSD += r.CostUSD
		s.CostJPY += r.CostJPY
		s.ByDate[r.CreatedAt.UTC().Format("2006-01-02")] += r.CostJPY

		op, ok := ops[r.Operation]
		if !ok {
			op = &OperationSummary{Operation: r.Operation}
			ops[r.Operation] = op
		}
		op.Count++
		op.Tokens += r.TotalTokens()
		op.CostUSD += r.CostUSD
		op.CostJPY += r.CostJPY
	}
	s.TotalTokens = s.InputTokens + s.OutputTokens

	for _, op := range ops {
		s.ByOperation = append(s.ByOperation, *op)
	}
	sort.Slice(s.ByOperation, func(i, j int) bool {
		return s.ByOperation[i].Operation < s.ByOperation[j].Operation
	})
	return s
}
