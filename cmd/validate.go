package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/bidquote/internal/validate"
)

type validateOptions struct {
	itemsPath    string
	jsonPath     string
	floorArea    float64
	buildingType string
}

var validateOpts validateOptions

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a priced item list against expected ㎡ cost ranges",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runValidate(cmd.Context(), validateOpts, os.Stdout)
	},
}

func runValidate(_ context.Context, opts validateOptions, out io.Writer) error {
	f, err := readItems(opts.itemsPath)
	if err != nil {
		return err
	}
	v, err := newValidator()
	if err != nil {
		return err
	}

	area := opts.floorArea
	if area <= 0 {
		area = f.FloorArea
	}
	if area <= 0 {
		area = cfg.Estimate.DefaultFloorArea
	}
	bt := opts.buildingType
	if bt == "" {
		bt = f.BuildingType
	}
	if bt == "" {
		bt = cfg.Estimate.BuildingType
	}

	report := v.Validate(f.Items, area, bt)
	fmt.Fprint(out, validate.FormatReport(report))

	var adjustments []*validate.Adjustment
	for _, d := range itemDisciplineList(f) {
		if adj := v.Correction(f.Items, d, area, bt); adj != nil {
			adjustments = append(adjustments, adj)
			fmt.Fprintf(out, "補正提案 %s: %s\n", d.WorkName(), adj.Message)
		}
	}

	if opts.jsonPath != "" {
		return writeJSON(opts.jsonPath, map[string]any{
			"validation":  report,
			"adjustments": adjustments,
		})
	}
	return nil
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateOpts.itemsPath, "items", "", "priced JSON item list (required)")
	f.StringVar(&validateOpts.jsonPath, "json", "", "write the report as JSON")
	f.Float64Var(&validateOpts.floorArea, "floor-area", 0, "total floor area in ㎡")
	f.StringVar(&validateOpts.buildingType, "building-type", "", "building type for range checks")
	_ = validateCmd.MarkFlagRequired("items")
	rootCmd.AddCommand(validateCmd)
}
