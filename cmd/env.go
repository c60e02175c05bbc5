package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/checklist"
	"github.com/sells-group/bidquote/internal/cost"
	"github.com/sells-group/bidquote/internal/generate"
	"github.com/sells-group/bidquote/internal/kb"
	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/store"
	"github.com/sells-group/bidquote/internal/validate"
	"github.com/sells-group/bidquote/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

// loadKB reads the price KB from path, or from the store when path is empty
// and kb.from_store is set.
func loadKB(ctx context.Context, path string, st store.Store) (*kb.KB, error) {
	if path == "" {
		path = cfg.KB.Path
	}
	var (
		k     *kb.KB
		stats kb.LoadStats
		err   error
	)
	if cfg.KB.FromStore && st != nil {
		k, stats, err = kb.FromStore(ctx, st)
	} else {
		k, stats, err = kb.Load(ctx, path, kb.LoadOptions{})
	}
	if err != nil {
		return nil, eris.Wrap(err, "load kb")
	}
	zap.L().Info("kb loaded",
		zap.String("path", path),
		zap.Int("loaded", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
	)
	return k, nil
}

func newValidator() (*validate.Validator, error) {
	return validate.FromConfig(cfg.Validation)
}

func newChecker() (*checklist.Checker, error) {
	if cfg.Checklist.RulesFile == "" {
		return checklist.New(nil), nil
	}
	rules, err := checklist.LoadRules(cfg.Checklist.RulesFile)
	if err != nil {
		return nil, err
	}
	return checklist.New(rules), nil
}

// newGenerator builds an LLM generator whose usage is tracked in tracker.
func newGenerator(tracker *cost.Tracker) (*generate.Generator, error) {
	if err := cfg.Validate("generate"); err != nil {
		return nil, err
	}
	client := anthropic.NewClient(cfg.Anthropic.Key)
	return generate.New(client, cfg.Anthropic, generate.WithRecorder(tracker)), nil
}

// itemsFile is the object form of an items file.
type itemsFile struct {
	Items        []*model.EstimateItem `json:"items"`
	Building     *model.BuildingInfo   `json:"building_info"`
	FloorArea    float64               `json:"floor_area"`
	BuildingType string                `json:"building_type"`
}

// readItems reads a JSON item list, either a bare array or an object with
// an "items" key.
func readItems(path string) (*itemsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read items %s", path)
	}
	data = bytes.TrimSpace(data)
	out := &itemsFile{}
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &out.Items); err != nil {
			return nil, eris.Wrapf(err, "parse items %s", path)
		}
		return out, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, eris.Wrapf(err, "parse items %s", path)
	}
	if out.Building != nil && out.FloorArea <= 0 {
		out.FloorArea = out.Building.FloorArea
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer f.Close() //nolint:errcheck

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}

func parseDisciplines(values []string) ([]model.Discipline, error) {
	var out []model.Discipline
	for _, s := range values {
		d, ok := model.ParseDiscipline(s)
		if !ok {
			return nil, eris.Errorf("unknown discipline %q", s)
		}
		out = append(out, d)
	}
	return out, nil
}

// itemDisciplineList lists the distinct item disciplines in first-seen
// order.
func itemDisciplineList(f *itemsFile) []model.Discipline {
	seen := map[model.Discipline]bool{}
	var out []model.Discipline
	for _, it := range f.Items {
		if it.Discipline == "" || seen[it.Discipline] {
			continue
		}
		seen[it.Discipline] = true
		out = append(out, it.Discipline)
	}
	return out
}
