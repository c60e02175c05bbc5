package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/fetcher"
	"github.com/sells-group/bidquote/internal/model"
)

// LoadOptions controls how tabular sources are mapped to references. JSON
// sources carry every field themselves and ignore these options.
type LoadOptions struct {
	Discipline    model.Discipline // used when the sheet has no 工事区分 column
	SourceProject string
	IDPrefix      string // ids are <prefix>_<nnn>; defaults to the file name
	ContextTags   []string
	Vendor        string
	SheetName     string // xlsx only; all sheets are scanned when empty
	Charset       string // csv only
}

// ReferenceLister is the subset of the store the KB can be rebuilt from.
type ReferenceLister interface {
	ListReferences(ctx context.Context, discipline model.Discipline) ([]model.PriceReference, error)
}

// Load reads a KB snapshot from a .json, .xlsx or .csv file.
func Load(ctx context.Context, path string, opts LoadOptions) (*KB, LoadStats, error) {
	refs, parseStats, err := ReadReferences(ctx, path, opts)
	if err != nil {
		return nil, LoadStats{}, err
	}

	k, stats := New(refs)
	stats.Total += parseStats.Skipped
	stats.Skipped += parseStats.Skipped
	for reason, n := range parseStats.Reasons {
		if stats.Reasons == nil {
			stats.Reasons = make(map[string]int)
		}
		stats.Reasons[reason] += n
	}

	zap.L().Info("kb: loaded",
		zap.String("path", path),
		zap.Int("loaded", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("disciplines", len(k.byDiscipline)),
	)
	return k, stats, nil
}

// FromStore rebuilds a KB from persisted references.
func FromStore(ctx context.Context, src ReferenceLister) (*KB, LoadStats, error) {
	refs, err := src.ListReferences(ctx, "")
	if err != nil {
		return nil, LoadStats{}, eris.Wrap(err, "kb: list references from store")
	}
	k, stats := New(refs)
	return k, stats, nil
}

// ReadReferences parses a source file into references without building a
// KB. Records that cannot be parsed at all are counted in the returned
// stats; field-level validation happens in New.
func ReadReferences(ctx context.Context, path string, opts LoadOptions) ([]model.PriceReference, LoadStats, error) {
	if opts.IDPrefix == "" {
		base := filepath.Base(path)
		opts.IDPrefix = strings.TrimSuffix(base, filepath.Ext(base))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return readJSON(ctx, path)
	case ".xlsx":
		sheets, err := fetcher.ReadWorkbook(path)
		if err != nil {
			return nil, LoadStats{}, eris.Wrapf(err, "kb: read %s", path)
		}
		var rows [][]string
		for _, s := range sheets {
			if opts.SheetName != "" && s.Name != opts.SheetName {
				continue
			}
			rows = append(rows, s.Rows...)
		}
		return fromRows(rows, opts)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, LoadStats{}, eris.Wrapf(err, "kb: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		rows, err := fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{Charset: opts.Charset, TrimSpace: true})
		if err != nil {
			return nil, LoadStats{}, eris.Wrapf(err, "kb: read %s", path)
		}
		return fromRows(rows, opts)
	default:
		return nil, LoadStats{}, eris.Errorf("kb: unsupported file type %q", filepath.Ext(path))
	}
}

func readJSON(ctx context.Context, path string) ([]model.PriceReference, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, eris.Wrapf(err, "kb: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var (
		refs  []model.PriceReference
		stats LoadStats
	)
	err = fetcher.EachJSONElement(ctx, f, func(i int, raw json.RawMessage) error {
		var ref model.PriceReference
		if err := json.Unmarshal(raw, &ref); err != nil {
			stats.skip("invalid record")
			zap.L().Warn("kb: skipping undecodable record", zap.Int("index", i), zap.Error(err))
			return nil
		}
		// A zero price is a real price; an absent or null one is not.
		var price struct {
			UnitPrice *float64 `json:"unit_price"`
		}
		if err := json.Unmarshal(raw, &price); err != nil || price.UnitPrice == nil {
			stats.skip("missing unit_price")
			zap.L().Warn("kb: skipping reference without unit_price",
				zap.Int("index", i),
				zap.String("item_id", ref.ItemID),
			)
			return nil
		}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return nil, LoadStats{}, eris.Wrapf(err, "kb: read %s", path)
	}
	return refs, stats, nil
}

// Header labels accepted for each column of a past-estimate sheet.
var columnLabels = map[string][]string{
	"id":         {"ID", "item_id", "コード"},
	"name":       {"名称", "品名", "項目", "工事名称", "品名・仕様"},
	"spec":       {"仕様", "規格", "摘要・仕様", "形状寸法"},
	"quantity":   {"数量"},
	"unit":       {"単位"},
	"unit_price": {"単価", "単価(円)"},
	"discipline": {"工事区分", "区分"},
}

func fromRows(rows [][]string, opts LoadOptions) ([]model.PriceReference, LoadStats, error) {
	header := -1
	for _, name := range columnLabels["name"] {
		for _, price := range columnLabels["unit_price"] {
			if h := fetcher.FindHeader(rows, name, price); h >= 0 && (header < 0 || h < header) {
				header = h
			}
		}
	}
	if header < 0 {
		return nil, LoadStats{}, eris.New("kb: no header row with 名称 and 単価 columns")
	}
	cols := mapColumns(rows[header])

	var (
		refs  []model.PriceReference
		stats LoadStats
	)
	for i, row := range rows[header+1:] {
		name := cell(row, cols["name"])
		priceText := cell(row, cols["unit_price"])
		if name == "" && priceText == "" {
			continue
		}
		// Repeated header rows on continuation sheets.
		if cols["name"] >= 0 && name == rows[header][cols["name"]] {
			continue
		}

		price, ok := ParseYen(priceText)
		if !ok {
			stats.skip("invalid unit_price")
			zap.L().Warn("kb: skipping row with unparseable price",
				zap.Int("row", header+i+2),
				zap.String("name", name),
				zap.String("unit_price", priceText),
			)
			continue
		}

		disc := opts.Discipline
		if d, ok := model.ParseDiscipline(cell(row, cols["discipline"])); ok {
			disc = d
		}

		id := cell(row, cols["id"])
		if id == "" {
			id = fmt.Sprintf("%s_%03d", opts.IDPrefix, len(refs)+1)
		}

		ref := model.PriceReference{
			ItemID:        id,
			Description:   name,
			Discipline:    disc,
			Unit:          cell(row, cols["unit"]),
			UnitPrice:     price,
			SourceProject: opts.SourceProject,
			ContextTags:   opts.ContextTags,
			Vendor:        opts.Vendor,
			Features: model.ReferenceFeature{
				Specification: cell(row, cols["spec"]),
			},
		}
		if q, ok := ParseYen(cell(row, cols["quantity"])); ok {
			ref.Features.Quantity = &q
		}
		refs = append(refs, ref)
	}

	return refs, stats, nil
}

func mapColumns(header []string) map[string]int {
	cols := make(map[string]int, len(columnLabels))
	for key := range columnLabels {
		cols[key] = -1
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		for key, labels := range columnLabels {
			if cols[key] >= 0 {
				continue
			}
			for _, l := range labels {
				if h == l {
					cols[key] = i
					break
				}
			}
		}
	}
	return cols
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

var yenReplacer = strings.NewReplacer("¥", "", "￥", "", ",", "", "，", "", "円", "", " ", "")

// ParseYen parses amounts written the way estimating sheets write them:
// "¥8,990", "8990円", "1,200.5". Empty and non-numeric text is rejected.
func ParseYen(s string) (float64, bool) {
	s = yenReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}
