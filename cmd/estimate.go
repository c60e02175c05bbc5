package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/calc"
	"github.com/sells-group/bidquote/internal/cost"
	"github.com/sells-group/bidquote/internal/export"
	"github.com/sells-group/bidquote/internal/ingest"
	"github.com/sells-group/bidquote/internal/ocr"
	"github.com/sells-group/bidquote/internal/pipeline"
	"github.com/sells-group/bidquote/internal/store"
)

type estimateOptions struct {
	specPath     string
	itemsPath    string
	kbPath       string
	outPath      string
	jsonPath     string
	floorArea    float64
	buildingType string
	disciplines  []string
	noLLM        bool
	autoCorrect  bool
	noStore      bool
}

var estimateOpts estimateOptions

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Produce a priced quotation from a spec document or item list",
	Long:  "Reads a spec document (pdf, xlsx, csv, txt), drafts items with Claude unless --items is given, prices them against the KB, adds statutory welfare, validates the totals and writes the quotation.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEstimate(cmd.Context(), estimateOpts, os.Stdout)
	},
}

func runEstimate(ctx context.Context, opts estimateOptions, out io.Writer) error {
	if opts.specPath == "" && opts.itemsPath == "" {
		return eris.New("estimate: --spec or --items is required")
	}
	if err := cfg.Validate("estimate"); err != nil {
		return err
	}

	var st store.Store
	if !opts.noStore {
		var err error
		st, err = initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
	}

	disciplines, err := parseDisciplines(opts.disciplines)
	if err != nil {
		return err
	}
	k, err := loadKB(ctx, opts.kbPath, st)
	if err != nil {
		return err
	}
	v, err := newValidator()
	if err != nil {
		return err
	}
	checker, err := newChecker()
	if err != nil {
		return err
	}
	extractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		return err
	}

	tracker := cost.NewTracker(cost.NewCalculator(cfg.Pricing), st)
	popts := []pipeline.Option{
		pipeline.WithIngestor(ingest.New(extractor)),
		pipeline.WithChecker(checker),
		pipeline.WithTracker(tracker),
	}
	if st != nil {
		popts = append(popts, pipeline.WithStore(st))
	}
	if !opts.noLLM && cfg.Anthropic.Key != "" {
		gen, err := newGenerator(tracker)
		if err != nil {
			return err
		}
		popts = append(popts, pipeline.WithGenerator(gen))
	}

	req := pipeline.Request{
		SpecPath:     opts.specPath,
		Disciplines:  disciplines,
		FloorArea:    opts.floorArea,
		BuildingType: opts.buildingType,
		AutoCorrect:  opts.autoCorrect,
		SkipLLM:      opts.noLLM,
	}
	if opts.itemsPath != "" {
		f, err := readItems(opts.itemsPath)
		if err != nil {
			return err
		}
		req.Items = f.Items
		req.Building = f.Building
		if req.FloorArea <= 0 {
			req.FloorArea = f.FloorArea
		}
		if req.BuildingType == "" {
			req.BuildingType = f.BuildingType
		}
	}

	res, err := pipeline.New(cfg, k, v, popts...).Run(ctx, req)
	if err != nil {
		return eris.Wrap(err, "estimate")
	}

	return writeResult(res, opts.outPath, opts.jsonPath, out)
}

// writeResult saves the quotation files and prints the text report.
func writeResult(res *pipeline.Result, xlsxPath, jsonPath string, out io.Writer) error {
	q := res.Quote()
	if xlsxPath != "" {
		if err := export.XLSX(xlsxPath, q); err != nil {
			return err
		}
	}
	if jsonPath != "" {
		f, err := os.Create(jsonPath)
		if err != nil {
			return eris.Wrapf(err, "create %s", jsonPath)
		}
		defer f.Close() //nolint:errcheck
		if err := export.JSON(f, q); err != nil {
			return err
		}
	}

	fmt.Fprint(out, res.ReportText)
	fmt.Fprintf(out, "\n総額: %s  (KB一致 %d/%d件)\n",
		calc.FormatYen(res.TotalAmount), res.Coverage.Matched(), res.Coverage.Eligible)
	if res.Costs.Records > 0 {
		fmt.Fprintf(out, "LLMコスト: $%.4f (¥%.0f, %d tokens)\n", res.Costs.CostUSD, res.Costs.CostJPY, res.Costs.TotalTokens)
	}

	zap.L().Info("estimate complete",
		zap.String("run_id", res.RunID),
		zap.Int("items", len(res.Items)),
		zap.Float64("total_amount", res.TotalAmount),
	)
	return nil
}

func init() {
	f := estimateCmd.Flags()
	f.StringVar(&estimateOpts.specPath, "spec", "", "spec document (pdf, xlsx, csv, txt, md)")
	f.StringVar(&estimateOpts.itemsPath, "items", "", "JSON item list; skips LLM item drafting")
	f.StringVar(&estimateOpts.kbPath, "kb", "", "price KB file (default from config)")
	f.StringVar(&estimateOpts.outPath, "out", "quote.xlsx", "Excel quotation output path (empty to skip)")
	f.StringVar(&estimateOpts.jsonPath, "json", "", "JSON result output path")
	f.Float64Var(&estimateOpts.floorArea, "floor-area", 0, "total floor area in ㎡ (overrides extracted value)")
	f.StringVar(&estimateOpts.buildingType, "building-type", "", "building type for range checks (学校, オフィス, ...)")
	f.StringSliceVar(&estimateOpts.disciplines, "discipline", nil, "disciplines to estimate (repeatable)")
	f.BoolVar(&estimateOpts.noLLM, "no-llm", false, "never call Claude")
	f.BoolVar(&estimateOpts.autoCorrect, "auto-correct", false, "append 見積調整費 lines for under-priced disciplines")
	f.BoolVar(&estimateOpts.noStore, "no-store", false, "do not record the run in the store")
	rootCmd.AddCommand(estimateCmd)
}
