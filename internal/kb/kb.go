// Package kb holds the historical unit-price knowledge base. A KB is built
// once from a snapshot and is read-only afterwards, so it can be shared
// across goroutines without locking.
package kb

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/normalize"
)

// Entry is a reference with its comparison keys precomputed.
type Entry struct {
	Ref      *model.PriceReference
	Desc     string // normalized description
	Spec     string // normalized specification
	Full     string // normalized "description specification"
	Size     string
	Category string
	Unit     string // normalized unit
}

// KB is an immutable, discipline-indexed set of price references.
type KB struct {
	entries      []Entry
	byDiscipline map[model.Discipline][]Entry
	byID         map[string]int
}

// LoadStats reports what happened while building a KB.
type LoadStats struct {
	Total   int            `json:"total"`
	Loaded  int            `json:"loaded"`
	Skipped int            `json:"skipped"`
	Reasons map[string]int `json:"reasons,omitempty"`
}

func (s *LoadStats) skip(reason string) {
	s.Skipped++
	if s.Reasons == nil {
		s.Reasons = make(map[string]int)
	}
	s.Reasons[reason]++
}

// New builds a KB from refs. Records without an id, description or known
// discipline, with a negative or non-finite price, or with a duplicate id
// are skipped and counted. Input order is preserved within each discipline.
func New(refs []model.PriceReference) (*KB, LoadStats) {
	k := &KB{
		byDiscipline: make(map[model.Discipline][]Entry),
		byID:         make(map[string]int, len(refs)),
	}
	stats := LoadStats{Total: len(refs)}

	for i := range refs {
		ref := refs[i]
		reason := check(&ref)
		if reason == "" {
			if _, dup := k.byID[ref.ItemID]; dup {
				reason = "duplicate item_id"
			}
		}
		if reason != "" {
			stats.skip(reason)
			zap.L().Warn("kb: skipping malformed reference",
				zap.Int("index", i),
				zap.String("item_id", ref.ItemID),
				zap.String("reason", reason),
			)
			continue
		}

		e := newEntry(&ref)
		k.byID[ref.ItemID] = len(k.entries)
		k.entries = append(k.entries, e)
		k.byDiscipline[ref.Discipline] = append(k.byDiscipline[ref.Discipline], e)
		stats.Loaded++
	}

	return k, stats
}

func check(ref *model.PriceReference) string {
	ref.ItemID = strings.TrimSpace(ref.ItemID)
	ref.Description = strings.TrimSpace(ref.Description)
	if ref.ItemID == "" {
		return "missing item_id"
	}
	if ref.Description == "" {
		return "missing description"
	}
	d, ok := model.ParseDiscipline(string(ref.Discipline))
	if !ok {
		return "unknown discipline"
	}
	ref.Discipline = d
	if math.IsNaN(ref.UnitPrice) || math.IsInf(ref.UnitPrice, 0) || ref.UnitPrice < 0 {
		return "invalid unit_price"
	}
	return ""
}

func newEntry(ref *model.PriceReference) Entry {
	spec := ref.Features.Specification
	return Entry{
		Ref:      ref,
		Desc:     normalize.Normalize(ref.Description),
		Spec:     normalize.Normalize(spec),
		Full:     normalize.Normalize(ref.Description + " " + spec),
		Size:     normalize.ExtractSize(spec),
		Category: normalize.ExtractCategory(ref.Description),
		Unit:     normalize.NormalizeUnit(ref.Unit),
	}
}

// Len returns the number of loaded references.
func (k *KB) Len() int {
	return len(k.entries)
}

// Candidates returns the entries for one discipline in KB order. The
// returned slice must not be modified.
func (k *KB) Candidates(d model.Discipline) []Entry {
	return k.byDiscipline[d]
}

// Get looks up a reference by item id.
func (k *KB) Get(itemID string) (*model.PriceReference, bool) {
	i, ok := k.byID[itemID]
	if !ok {
		return nil, false
	}
	return k.entries[i].Ref, true
}

// References returns copies of every reference, optionally restricted to
// one discipline.
func (k *KB) References(d model.Discipline) []model.PriceReference {
	src := k.entries
	if d != "" {
		src = k.byDiscipline[d]
	}
	out := make([]model.PriceReference, len(src))
	for i, e := range src {
		out[i] = *e.Ref
		out[i].ContextTags = append([]string(nil), e.Ref.ContextTags...)
	}
	return out
}

// Disciplines lists the disciplines present, sorted.
func (k *KB) Disciplines() []model.Discipline {
	ds := make([]model.Discipline, 0, len(k.byDiscipline))
	for d := range k.byDiscipline {
		ds = append(ds, d)
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })
	return ds
}
