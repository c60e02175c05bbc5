// Package pipeline runs a spec document through ingestion, item drafting,
// pricing and validation to produce a quotation.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/calc"
	"github.com/sells-group/bidquote/internal/checklist"
	"github.com/sells-group/bidquote/internal/classify"
	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/internal/cost"
	"github.com/sells-group/bidquote/internal/export"
	"github.com/sells-group/bidquote/internal/ingest"
	"github.com/sells-group/bidquote/internal/kb"
	"github.com/sells-group/bidquote/internal/matcher"
	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/validate"
)

// Generator drafts building facts and estimate items from spec text.
type Generator interface {
	BuildingInfo(ctx context.Context, specText string) (*model.BuildingInfo, error)
	All(ctx context.Context, info *model.BuildingInfo, disciplines []model.Discipline) ([]*model.EstimateItem, error)
}

// RunStore records run progress.
type RunStore interface {
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
}

// Request describes one estimate run. Items, when given, replace LLM
// drafting; Building fields, when given, override extracted ones.
type Request struct {
	SpecPath     string
	SpecText     string
	Items        []*model.EstimateItem
	Building     *model.BuildingInfo
	Disciplines  []model.Discipline
	FloorArea    float64
	BuildingType string
	AutoCorrect  bool
	SkipLLM      bool
}

// Result is the outcome of a run.
type Result struct {
	RunID       string                      `json:"run_id,omitempty"`
	Building    *model.BuildingInfo         `json:"building_info"`
	Disciplines []model.Discipline          `json:"disciplines"`
	Items       []*model.EstimateItem       `json:"items"`
	Overheads   []model.OverheadCalculation `json:"overhead_calculations"`
	Coverage    matcher.Coverage            `json:"match_coverage"`
	Adjustments []*validate.Adjustment      `json:"adjustments,omitempty"`
	Report      *validate.Report            `json:"validation"`
	ReportText  string                      `json:"report_text"`
	TotalAmount float64                     `json:"total_amount"`
	Costs       cost.Summary                `json:"costs"`
	Phases      []model.PhaseResult         `json:"phases"`
}

// Quote converts the result for export.
func (r *Result) Quote() *export.Quote {
	name := ""
	if r.Building != nil {
		name = r.Building.ProjectName
	}
	cov := r.Coverage
	return &export.Quote{
		ProjectName: name,
		Building:    r.Building,
		Items:       r.Items,
		Overheads:   r.Overheads,
		Coverage:    &cov,
		Adjustments: r.Adjustments,
		Report:      r.Report,
		TotalAmount: r.TotalAmount,
		CreatedAt:   time.Now(),
	}
}

// Pipeline holds the collaborators of a run. Only cfg, the KB and the
// validator are required; a nil generator means items must be supplied and a
// nil store skips run bookkeeping.
type Pipeline struct {
	cfg       *config.Config
	store     RunStore
	ingestor  *ingest.Ingestor
	gen       Generator
	kb        *kb.KB
	matcher   *matcher.Matcher
	checker   *checklist.Checker
	validator *validate.Validator
	tracker   *cost.Tracker
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore records runs in st.
func WithStore(st RunStore) Option { return func(p *Pipeline) { p.store = st } }

// WithIngestor reads spec files with in.
func WithIngestor(in *ingest.Ingestor) Option { return func(p *Pipeline) { p.ingestor = in } }

// WithGenerator drafts items with g.
func WithGenerator(g Generator) Option { return func(p *Pipeline) { p.gen = g } }

// WithChecker fills quantities with c.
func WithChecker(c *checklist.Checker) Option { return func(p *Pipeline) { p.checker = c } }

// WithTracker reports the LLM cost of the run from t.
func WithTracker(t *cost.Tracker) Option { return func(p *Pipeline) { p.tracker = t } }

// New creates a Pipeline.
func New(cfg *config.Config, k *kb.KB, v *validate.Validator, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		kb:        k,
		matcher:   matcher.New(cfg.Match),
		checker:   checklist.New(nil),
		validator: v,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes every phase for one request.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	log := zap.L().With(zap.String("spec", req.SpecPath))
	log.Info("pipeline: starting estimate")

	result := &Result{}
	if p.tracker != nil {
		p.tracker.StartSession(req.SpecPath)
	}

	if p.store != nil {
		run, err := p.store.CreateRun(ctx, model.Run{
			SpecPath:     req.SpecPath,
			BuildingType: model.FacilityType(req.BuildingType),
			FloorArea:    req.FloorArea,
		})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		result.RunID = run.ID
		log = log.With(zap.String("run_id", run.ID))
	}

	setStatus := func(status model.RunStatus) {
		if p.store == nil {
			return
		}
		if err := p.store.UpdateRunStatus(ctx, result.RunID, status); err != nil {
			log.Warn("pipeline: failed to update status", zap.Error(err))
		}
	}

	trackPhase := func(name string, fn func() (map[string]any, error)) error {
		start := time.Now()
		meta, err := fn()
		pr := model.PhaseResult{
			Name:     name,
			Status:   model.PhaseStatusComplete,
			Duration: time.Since(start).Milliseconds(),
			Metadata: meta,
		}
		if err != nil {
			pr.Status = model.PhaseStatusFailed
			pr.Error = err.Error()
			log.Error("pipeline: phase failed", zap.String("phase", name), zap.Int64("duration_ms", pr.Duration), zap.Error(err))
		} else if meta != nil && meta["skipped"] == true {
			pr.Status = model.PhaseStatusSkipped
		} else {
			log.Info("pipeline: phase complete", zap.String("phase", name), zap.Int64("duration_ms", pr.Duration))
		}
		result.Phases = append(result.Phases, pr)
		return err
	}

	fail := func(err error) (*Result, error) {
		p.complete(ctx, result, err)
		return result, err
	}

	// ===== Phase 1: Ingest =====
	setStatus(model.RunStatusIngesting)

	specText := req.SpecText
	if err := trackPhase("1_ingest", func() (map[string]any, error) {
		if req.SpecPath == "" {
			return map[string]any{"skipped": true}, nil
		}
		if p.ingestor == nil {
			return nil, eris.New("pipeline: no ingestor configured")
		}
		doc, err := p.ingestor.Ingest(ctx, req.SpecPath)
		if err != nil {
			return nil, err
		}
		specText = doc.Text
		return map[string]any{"pages": doc.PageCount, "chars": len([]rune(doc.Text))}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Phase 2: Classify =====
	disciplines := p.disciplines(req, specText)
	_ = trackPhase("2_classify", func() (map[string]any, error) {
		return map[string]any{"disciplines": len(disciplines)}, nil
	})
	result.Disciplines = disciplines

	// ===== Phase 3: Building info =====
	setStatus(model.RunStatusGenerating)

	building := &model.BuildingInfo{}
	if req.Building != nil {
		*building = *req.Building
	}
	if err := trackPhase("3_building_info", func() (map[string]any, error) {
		if p.gen == nil || req.SkipLLM || specText == "" {
			return map[string]any{"skipped": true}, nil
		}
		extracted, err := p.gen.BuildingInfo(ctx, specText)
		if err != nil {
			return nil, err
		}
		building.Merge(extracted)
		return map[string]any{"floor_area": extracted.FloorArea, "building_type": string(extracted.BuildingType)}, nil
	}); err != nil {
		return fail(err)
	}
	if building.BuildingType == "" && specText != "" {
		building.BuildingType = classify.FacilityType(specText)
	}
	floorArea, buildingType := p.scale(req, building)
	building.FloorArea = floorArea
	result.Building = building

	// ===== Phase 4: Items =====
	var items []*model.EstimateItem
	if err := trackPhase("4_items", func() (map[string]any, error) {
		switch {
		case len(req.Items) > 0:
			items = model.CloneItems(req.Items)
			return map[string]any{"source": "supplied", "items": len(items)}, nil
		case p.gen != nil && !req.SkipLLM:
			if len(disciplines) == 0 {
				return nil, eris.New("pipeline: no disciplines to generate")
			}
			generated, err := p.gen.All(ctx, building, disciplines)
			if err != nil {
				return nil, err
			}
			items = generated
			return map[string]any{"source": "generated", "items": len(items)}, nil
		default:
			return nil, eris.New("pipeline: no items supplied and no generator configured")
		}
	}); err != nil {
		return fail(err)
	}
	if len(disciplines) == 0 {
		disciplines = itemDisciplines(items)
		result.Disciplines = disciplines
	}

	// ===== Phase 5: Quantities =====
	setStatus(model.RunStatusPricing)

	_ = trackPhase("5_quantities", func() (map[string]any, error) {
		filled := 0
		leafItems := leaves(items)
		for _, d := range disciplines {
			filled += p.checker.EstimateQuantities(itemsOf(leafItems, d), d, floorArea, building.NumRooms, building.Floors)
		}
		return map[string]any{"filled": filled}, nil
	})

	// ===== Phase 6: Match =====
	_ = trackPhase("6_match", func() (map[string]any, error) {
		if p.kb == nil {
			return map[string]any{"skipped": true}, nil
		}
		result.Coverage = p.matcher.EnrichItems(items, p.kb)
		return map[string]any{
			"eligible": result.Coverage.Eligible,
			"matched":  result.Coverage.Matched(),
			"rate":     result.Coverage.Rate(),
		}, nil
	})

	// ===== Phase 7: Amounts and rollup =====
	if err := trackPhase("7_amounts", func() (map[string]any, error) {
		set := calc.ApplyAmounts(items)
		if err := calc.RollupParents(items); err != nil {
			return nil, eris.Wrap(err, "pipeline: rollup")
		}
		return map[string]any{"amounts_set": set}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Phase 8: Correction =====
	setStatus(model.RunStatusValidating)

	autoCorrect := req.AutoCorrect || p.cfg.Estimate.AutoCorrect
	_ = trackPhase("8_correction", func() (map[string]any, error) {
		applied := 0
		for _, d := range disciplines {
			adj := p.validator.Correction(items, d, floorArea, buildingType)
			if adj == nil {
				continue
			}
			result.Adjustments = append(result.Adjustments, adj)
			if autoCorrect {
				items = append(items, adj.Item)
				applied++
			}
		}
		return map[string]any{"proposed": len(result.Adjustments), "applied": applied}, nil
	})

	// ===== Phase 9: Statutory welfare =====
	_ = trackPhase("9_welfare", func() (map[string]any, error) {
		rate := p.cfg.Estimate.WelfareRate
		if rate <= 0 || calc.HasStatutoryWelfare(items) {
			return map[string]any{"skipped": true}, nil
		}
		var d model.Discipline
		if len(disciplines) > 0 {
			d = disciplines[0]
		}
		var oc model.OverheadCalculation
		items, oc = calc.AddStatutoryWelfare(items, rate, d)
		result.Overheads = append(result.Overheads, oc)
		return map[string]any{"amount": oc.Amount}, nil
	})

	// ===== Phase 10: Validate =====
	_ = trackPhase("10_validate", func() (map[string]any, error) {
		result.Report = p.validator.Validate(items, floorArea, buildingType)
		result.ReportText = validate.FormatReport(result.Report)
		return map[string]any{
			"is_valid":  result.Report.IsValid,
			"anomalies": len(result.Report.AnomalyItems),
		}, nil
	})

	result.Items = items
	result.TotalAmount = calc.RootTotal(items, false)
	if p.tracker != nil {
		result.Costs = p.tracker.Summary()
	}

	p.complete(ctx, result, nil)

	log.Info("pipeline: estimate complete",
		zap.Int("items", len(items)),
		zap.Float64("total_amount", result.TotalAmount),
		zap.Float64("match_rate", result.Coverage.Rate()),
		zap.Bool("is_valid", result.Report.IsValid),
	)
	return result, nil
}

// complete saves the run result. Failures to save are logged, not returned.
func (p *Pipeline) complete(ctx context.Context, result *Result, runErr error) {
	if p.store == nil || result.RunID == "" {
		return
	}
	rr := &model.RunResult{
		TotalAmount: result.TotalAmount,
		ItemCount:   len(result.Items),
		MatchedRate: result.Coverage.Rate(),
		TotalTokens: int(result.Costs.TotalTokens),
		TotalCost:   result.Costs.CostUSD,
		Phases:      result.Phases,
		Items:       result.Items,
		Report:      result.ReportText,
	}
	if result.Report != nil {
		rr.IsValid = result.Report.IsValid
	}
	if runErr != nil {
		rr.Error = runErr.Error()
	}
	if err := p.store.CompleteRun(ctx, result.RunID, rr); err != nil {
		zap.L().Warn("pipeline: failed to save run result", zap.String("run_id", result.RunID), zap.Error(err))
	}
}

// disciplines picks the disciplines to estimate: the request's, then the
// configured ones, then those named in the spec text.
func (p *Pipeline) disciplines(req Request, specText string) []model.Discipline {
	if len(req.Disciplines) > 0 {
		return req.Disciplines
	}
	var out []model.Discipline
	for _, s := range p.cfg.Estimate.Disciplines {
		if d, ok := model.ParseDiscipline(s); ok {
			out = append(out, d)
		}
	}
	if len(out) > 0 {
		return out
	}
	return classify.Disciplines(specText)
}

// scale resolves floor area and building type: request values first, then
// extracted building info, then configuration.
func (p *Pipeline) scale(req Request, b *model.BuildingInfo) (float64, string) {
	area := req.FloorArea
	if area <= 0 {
		area = b.FloorArea
	}
	if area <= 0 {
		area = p.cfg.Estimate.DefaultFloorArea
	}

	bt := req.BuildingType
	if bt == "" && b.BuildingType != "" && b.BuildingType != model.FacilityOther {
		bt = string(b.BuildingType)
	}
	if bt == "" {
		bt = p.cfg.Estimate.BuildingType
	}
	return area, bt
}

func itemsOf(items []*model.EstimateItem, d model.Discipline) []*model.EstimateItem {
	var out []*model.EstimateItem
	for _, it := range items {
		if it.Discipline == d {
			out = append(out, it)
		}
	}
	return out
}

// leaves returns the items that have no children: those not directly
// followed by a deeper item.
func leaves(items []*model.EstimateItem) []*model.EstimateItem {
	var out []*model.EstimateItem
	for i, it := range items {
		if i+1 < len(items) && items[i+1].Level > it.Level {
			continue
		}
		out = append(out, it)
	}
	return out
}

// itemDisciplines lists the distinct disciplines of items in first-seen
// order.
func itemDisciplines(items []*model.EstimateItem) []model.Discipline {
	seen := map[model.Discipline]bool{}
	var out []model.Discipline
	for _, it := range items {
		if it.Discipline == "" || seen[it.Discipline] {
			continue
		}
		seen[it.Discipline] = true
		out = append(out, it.Discipline)
	}
	return out
}
