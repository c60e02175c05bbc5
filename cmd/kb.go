package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/calc"
	"github.com/sells-group/bidquote/internal/cost"
	"github.com/sells-group/bidquote/internal/ingest"
	"github.com/sells-group/bidquote/internal/kb"
	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/ocr"
	"github.com/sells-group/bidquote/internal/store"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the price knowledge base",
	Long:  "Commands for importing past unit prices into the store, listing and exporting them, and extracting them from past invoices with Claude.",
}

// -- kb import --

var kbImportOpts struct {
	discipline string
	project    string
	tags       []string
	vendor     string
	sheet      string
	charset    string
}

var kbImportCmd = &cobra.Command{
	Use:   "import <file.json|file.xlsx|file.csv>",
	Short: "Import price references into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		opts := kb.LoadOptions{
			SourceProject: kbImportOpts.project,
			ContextTags:   kbImportOpts.tags,
			Vendor:        kbImportOpts.vendor,
			SheetName:     kbImportOpts.sheet,
			Charset:       kbImportOpts.charset,
		}
		if kbImportOpts.discipline != "" {
			d, ok := model.ParseDiscipline(kbImportOpts.discipline)
			if !ok {
				return eris.Errorf("kb import: unknown discipline %q", kbImportOpts.discipline)
			}
			opts.Discipline = d
		}

		n, err := importReferences(ctx, st, args[0], opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d件の単価を取り込みました\n", n)
		return nil
	},
}

func importReferences(ctx context.Context, st store.Store, path string, opts kb.LoadOptions) (int, error) {
	refs, stats, err := kb.ReadReferences(ctx, path, opts)
	if err != nil {
		return 0, eris.Wrap(err, "kb import")
	}
	n, err := st.SaveReferences(ctx, refs)
	if err != nil {
		return 0, eris.Wrap(err, "kb import")
	}
	zap.L().Info("kb import complete",
		zap.String("file", path),
		zap.Int("saved", n),
		zap.Int("skipped", stats.Skipped),
		zap.Any("skip_reasons", stats.Reasons),
	)
	return n, nil
}

// -- kb list --

var kbListDiscipline string

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored price references",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var d model.Discipline
		if kbListDiscipline != "" {
			var ok bool
			if d, ok = model.ParseDiscipline(kbListDiscipline); !ok {
				return eris.Errorf("kb list: unknown discipline %q", kbListDiscipline)
			}
		}
		refs, err := st.ListReferences(ctx, d)
		if err != nil {
			return eris.Wrap(err, "kb list")
		}
		if len(refs) == 0 {
			fmt.Fprintln(os.Stderr, "No references found.")
			return nil
		}
		formatReferences(os.Stdout, refs)
		return nil
	},
}

func formatReferences(out io.Writer, refs []model.PriceReference) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\t工事区分\t名称\t仕様\t単位\t単価\t出典")
	_, _ = fmt.Fprintln(w, "--\t----\t--\t--\t--\t--\t--")
	for _, r := range refs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ItemID,
			r.Discipline,
			r.Description,
			r.Features.Specification,
			r.Unit,
			calc.FormatYen(r.UnitPrice),
			r.SourceProject,
		)
	}
	_ = w.Flush()
}

// -- kb export --

var kbExportOut string

var kbExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored price references as a JSON KB file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		refs, err := st.ListReferences(ctx, "")
		if err != nil {
			return eris.Wrap(err, "kb export")
		}
		if err := writeJSON(kbExportOut, refs); err != nil {
			return err
		}
		zap.L().Info("kb export complete", zap.String("out", kbExportOut), zap.Int("references", len(refs)))
		return nil
	},
}

// -- kb extract --

var kbExtractOpts struct {
	project string
	out     string
	noSave  bool
}

var kbExtractCmd = &cobra.Command{
	Use:   "extract <invoice.pdf|invoice.xlsx|invoice.txt>",
	Short: "Extract unit prices from a past invoice with Claude",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		extractor, err := ocr.NewExtractor(cfg.OCR)
		if err != nil {
			return err
		}
		doc, err := ingest.New(extractor).Ingest(ctx, path)
		if err != nil {
			return err
		}

		tracker := cost.NewTracker(cost.NewCalculator(cfg.Pricing), st)
		tracker.StartSession("kb extract " + filepath.Base(path))
		gen, err := newGenerator(tracker)
		if err != nil {
			return err
		}

		project := kbExtractOpts.project
		if project == "" {
			project = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		refs, err := gen.ExtractReferences(ctx, doc.Text, project)
		if err != nil {
			return eris.Wrap(err, "kb extract")
		}

		if kbExtractOpts.out != "" {
			if err := writeJSON(kbExtractOpts.out, refs); err != nil {
				return err
			}
		}
		if !kbExtractOpts.noSave {
			if _, err := st.SaveReferences(ctx, refs); err != nil {
				return eris.Wrap(err, "kb extract")
			}
		}

		formatReferences(os.Stdout, refs)
		sum := tracker.Summary()
		fmt.Fprintf(os.Stdout, "\n%d件抽出  LLMコスト: $%.4f (¥%.0f)\n", len(refs), sum.CostUSD, sum.CostJPY)
		return nil
	},
}

func init() {
	kbImportCmd.Flags().StringVar(&kbImportOpts.discipline, "discipline", "", "discipline for sheets without a 工事区分 column")
	kbImportCmd.Flags().StringVar(&kbImportOpts.project, "project", "", "source project name")
	kbImportCmd.Flags().StringSliceVar(&kbImportOpts.tags, "tag", nil, "context tag (repeatable)")
	kbImportCmd.Flags().StringVar(&kbImportOpts.vendor, "vendor", "", "vendor name")
	kbImportCmd.Flags().StringVar(&kbImportOpts.sheet, "sheet", "", "xlsx sheet name (all sheets when empty)")
	kbImportCmd.Flags().StringVar(&kbImportOpts.charset, "charset", "", "csv charset (e.g. shift_jis)")

	kbListCmd.Flags().StringVar(&kbListDiscipline, "discipline", "", "only list one discipline")

	kbExportCmd.Flags().StringVar(&kbExportOut, "out", "price_kb.json", "output JSON path")

	kbExtractCmd.Flags().StringVar(&kbExtractOpts.project, "project", "", "project name (default: file name)")
	kbExtractCmd.Flags().StringVar(&kbExtractOpts.out, "out", "", "also write the references to a JSON file")
	kbExtractCmd.Flags().BoolVar(&kbExtractOpts.noSave, "no-save", false, "do not save the references to the store")

	kbCmd.AddCommand(kbImportCmd, kbListCmd, kbExportCmd, kbExtractCmd)
	rootCmd.AddCommand(kbCmd)
}
