package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bidquote/internal/pipeline"
)

type matchOptions struct {
	itemsPath    string
	kbPath       string
	outPath      string
	jsonPath     string
	floorArea    float64
	buildingType string
	autoCorrect  bool
}

var matchOpts matchOptions

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Price an item list against the KB without calling Claude",
	Long:  "Runs only the deterministic core on an existing item list: quantity fill, KB matching, amounts, rollup, statutory welfare and validation.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMatch(cmd.Context(), matchOpts, os.Stdout)
	},
}

func runMatch(ctx context.Context, opts matchOptions, out io.Writer) error {
	f, err := readItems(opts.itemsPath)
	if err != nil {
		return err
	}
	if len(f.Items) == 0 {
		return eris.Errorf("match: no items in %s", opts.itemsPath)
	}
	k, err := loadKB(ctx, opts.kbPath, nil)
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

	req := pipeline.Request{
		Items:        f.Items,
		Building:     f.Building,
		FloorArea:    opts.floorArea,
		BuildingType: opts.buildingType,
		AutoCorrect:  opts.autoCorrect,
		SkipLLM:      true,
	}
	if req.FloorArea <= 0 {
		req.FloorArea = f.FloorArea
	}
	if req.BuildingType == "" {
		req.BuildingType = f.BuildingType
	}

	res, err := pipeline.New(cfg, k, v, pipeline.WithChecker(checker)).Run(ctx, req)
	if err != nil {
		return eris.Wrap(err, "match")
	}
	return writeResult(res, opts.outPath, opts.jsonPath, out)
}

func init() {
	f := matchCmd.Flags()
	f.StringVar(&matchOpts.itemsPath, "items", "", "JSON item list (required)")
	f.StringVar(&matchOpts.kbPath, "kb", "", "price KB file (default from config)")
	f.StringVar(&matchOpts.outPath, "out", "", "Excel quotation output path")
	f.StringVar(&matchOpts.jsonPath, "json", "", "JSON result output path")
	f.Float64Var(&matchOpts.floorArea, "floor-area", 0, "total floor area in ㎡")
	f.StringVar(&matchOpts.buildingType, "building-type", "", "building type for range checks")
	f.BoolVar(&matchOpts.autoCorrect, "auto-correct", false, "append 見積調整費 lines for under-priced disciplines")
	_ = matchCmd.MarkFlagRequired("items")
	rootCmd.AddCommand(matchCmd)
}
