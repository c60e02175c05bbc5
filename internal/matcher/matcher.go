// Package matcher assigns historical unit prices from the KB to estimate
// items by deterministic lexical scoring.
package matcher

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/internal/kb"
	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/normalize"
)

// Result is the outcome of matching one item.
type Result struct {
	Reference     *model.PriceReference
	Score         float64 // best candidate score
	Tier          model.MatchTier
	FallbackScore float64 // best name+category score among category matches
	Candidates    int     // KB entries in the item's discipline
	Signals       []string
}

// Matched reports whether a reference was selected.
func (r Result) Matched() bool {
	return r.Tier != model.MatchNone && r.Reference != nil
}

// Matcher scores items against KB entries. It holds no per-run state and
// is safe for concurrent use.
type Matcher struct {
	cfg      config.MatchConfig
	name     group
	category group
	spec     group
	unit     group
}

// New creates a Matcher with the given weights and thresholds.
func New(cfg config.MatchConfig) *Matcher {
	m := &Matcher{cfg: cfg}
	m.name, m.category, m.spec, m.unit = buildGroups(cfg)
	return m
}

// Eligible reports whether an item takes part in matching: roots and items
// without a quantity never do.
func Eligible(item *model.EstimateItem) bool {
	return item.Level > 0 && item.Quantity != nil && *item.Quantity != 0
}

func newProbe(item *model.EstimateItem) *probe {
	p := &probe{
		name:     normalize.Normalize(item.Name),
		spec:     normalize.Normalize(item.Specification),
		size:     normalize.ExtractSize(item.Specification),
		category: normalize.ExtractCategory(item.Name),
		rawUnit:  strings.TrimSpace(item.Unit),
		unit:     normalize.NormalizeUnit(item.Unit),
	}
	for _, w := range strings.Fields(p.name) {
		if utf8.RuneCountInString(w) > 1 {
			p.words = append(p.words, w)
		}
	}
	return p
}

// Match finds the best KB reference for item among entries of the same
// discipline. Ties keep the earlier KB entry.
func (m *Matcher) Match(item *model.EstimateItem, k *kb.KB) Result {
	var res Result
	if !Eligible(item) || k == nil {
		return res
	}

	candidates := k.Candidates(item.Discipline)
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		return res
	}

	p := newProbe(item)
	var (
		best, fallback *kb.Entry
		bestSignals    []string
	)
	for i := range candidates {
		e := &candidates[i]
		var signals []string
		score := 0.0

		add := func(g *group) bool {
			w, rule := g.score(p, e)
			if rule == "" {
				return false
			}
			score += w
			signals = append(signals, g.name+":"+rule)
			return true
		}

		add(&m.name)
		if add(&m.category) && score > res.FallbackScore {
			fallback = e
			res.FallbackScore = score
		}
		add(&m.spec)
		add(&m.unit)

		if score > res.Score {
			best = e
			res.Score = score
			bestSignals = signals
		}
	}

	switch {
	case best != nil && res.Score >= m.cfg.ExactThreshold:
		res.Reference, res.Tier, res.Signals = best.Ref, model.MatchExact, bestSignals
	case best != nil && res.Score >= m.cfg.PartialThreshold:
		res.Reference, res.Tier, res.Signals = best.Ref, model.MatchPartial, bestSignals
	case fallback != nil && res.FallbackScore >= m.cfg.CategoryThreshold:
		res.Reference, res.Tier = fallback.Ref, model.MatchCategory
		res.Signals = []string{"category:fallback"}
	}
	return res
}

// Apply copies a match onto the item: unit price, amount (quantity × unit
// price), the reference id and provenance. It returns false and leaves the
// item untouched when r carries no match.
func Apply(item *model.EstimateItem, r Result) bool {
	if !r.Matched() {
		return false
	}
	ref := r.Reference

	price := ref.UnitPrice
	item.UnitPrice = &price
	if item.Quantity != nil && *item.Quantity != 0 && price != 0 {
		amount := *item.Quantity * price
		item.Amount = &amount
	}
	item.PriceReferences = []string{ref.ItemID}
	item.SourceType = model.SourceRAG
	item.MatchTier = r.Tier

	// MatchScore is the score that selected the reference; the provenance
	// string always carries the best overall score.
	item.MatchScore = r.Score
	if r.Tier == model.MatchCategory {
		item.MatchScore = r.FallbackScore
	}

	provenance := fmt.Sprintf("KB:%s[%s](score=%.2f)", ref.ItemID, r.Tier, r.Score)
	if item.SourceReference != "" {
		provenance += ", " + item.SourceReference
	}
	item.SourceReference = provenance
	return true
}

// Coverage summarizes a matching pass.
type Coverage struct {
	Total     int `json:"total"`
	Eligible  int `json:"eligible"`
	Exact     int `json:"exact"`
	Partial   int `json:"partial"`
	Category  int `json:"category"`
	Unmatched int `json:"unmatched"`
}

// Matched returns the number of items that received a price.
func (c Coverage) Matched() int {
	return c.Exact + c.Partial + c.Category
}

// Rate returns matched / eligible, or 0 when nothing was eligible.
func (c Coverage) Rate() float64 {
	if c.Eligible == 0 {
		return 0
	}
	return float64(c.Matched()) / float64(c.Eligible)
}

// EnrichItems matches and applies every eligible item in place.
func (m *Matcher) EnrichItems(items []*model.EstimateItem, k *kb.KB) Coverage {
	cov := Coverage{Total: len(items)}

	for _, item := range items {
		if !Eligible(item) {
			continue
		}
		cov.Eligible++

		res := m.Match(item, k)
		if !Apply(item, res) {
			cov.Unmatched++
			zap.L().Debug("matcher: no match",
				zap.String("name", item.Name),
				zap.String("specification", item.Specification),
				zap.String("discipline", string(item.Discipline)),
				zap.Int("candidates", res.Candidates),
				zap.Float64("best_score", res.Score),
			)
			continue
		}

		switch res.Tier {
		case model.MatchExact:
			cov.Exact++
		case model.MatchPartial:
			cov.Partial++
		case model.MatchCategory:
			cov.Category++
		}
		zap.L().Debug("matcher: matched",
			zap.String("name", item.Name),
			zap.String("item_id", res.Reference.ItemID),
			zap.String("tier", string(res.Tier)),
			zap.Float64("score", item.MatchScore),
			zap.Strings("signals", res.Signals),
		)
	}

	zap.L().Info("matcher: price matching complete",
		zap.Int("items", cov.Total),
		zap.Int("eligible", cov.Eligible),
		zap.Int("matched", cov.Matched()),
		zap.Int("exact", cov.Exact),
		zap.Int("partial", cov.Partial),
		zap.Int("category", cov.Category),
		zap.Float64("rate", cov.Rate()),
	)
	return cov
}
