package matcher

import (
	"strings"

	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/internal/kb"
)

// probe is an estimate item reduced to its comparison keys.
type probe struct {
	name     string
	words    []string
	spec     string
	size     string
	category string
	rawUnit  string
	unit     string
}

// rule is one (predicate, weight) pair. Within a group only the first rule
// whose predicate holds contributes.
type rule struct {
	name   string
	weight float64
	match  func(p *probe, e *kb.Entry) bool
}

type group struct {
	name  string
	rules []rule
}

// score returns the weight of the first matching rule, or 0.
func (g *group) score(p *probe, e *kb.Entry) (float64, string) {
	for _, r := range g.rules {
		if r.match(p, e) {
			return r.weight, r.name
		}
	}
	return 0, ""
}

func buildGroups(w config.MatchConfig) (name, category, spec, unit group) {
	name = group{name: "name", rules: []rule{
		{"exact", w.NameExact, func(p *probe, e *kb.Entry) bool {
			return p.name != "" && p.name == e.Desc
		}},
		{"contains", w.NameContains, func(p *probe, e *kb.Entry) bool {
			return containsEither(p.name, e.Desc)
		}},
		{"word", w.NameWord, func(p *probe, e *kb.Entry) bool {
			for _, word := range p.words {
				if strings.Contains(e.Desc, word) {
					return true
				}
			}
			return false
		}},
	}}

	category = group{name: "category", rules: []rule{
		{"same", w.Category, func(p *probe, e *kb.Entry) bool {
			return p.category != "" && p.category == e.Category
		}},
	}}

	// The spec group only applies when both sides have a specification.
	spec = group{name: "spec", rules: []rule{
		{"exact", w.SpecExact, func(p *probe, e *kb.Entry) bool {
			return p.spec != "" && p.spec == e.Spec
		}},
		{"size", w.SpecSize, func(p *probe, e *kb.Entry) bool {
			return p.spec != "" && e.Spec != "" && p.size != "" && p.size == e.Size
		}},
		{"contains", w.SpecContains, func(p *probe, e *kb.Entry) bool {
			if p.spec == "" || e.Spec == "" {
				return false
			}
			return strings.Contains(e.Full, p.spec) || strings.Contains(p.spec, e.Spec)
		}},
	}}

	unit = group{name: "unit", rules: []rule{
		{"exact", w.UnitExact, func(p *probe, e *kb.Entry) bool {
			return p.rawUnit != "" && p.rawUnit == strings.TrimSpace(e.Ref.Unit)
		}},
		{"normalized", w.UnitNormalized, func(p *probe, e *kb.Entry) bool {
			return p.unit != "" && p.unit == e.Unit
		}},
		{"contains", w.UnitContains, func(p *probe, e *kb.Entry) bool {
			return containsEither(p.unit, e.Unit)
		}},
	}}

	return name, category, spec, unit
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
