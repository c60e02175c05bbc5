package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bidquote/internal/calc"
	"github.com/sells-group/bidquote/internal/model"
	"github.com/sells-group/bidquote/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect estimate run history",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List estimate runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatus(status), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(run)
		}
		formatRunDetail(os.Stdout, run)
		return nil
	},
}

// formatRunDetail prints the run header, its phase timings and the
// validation report the run stored.
func formatRunDetail(out io.Writer, r *model.Run) {
	_, _ = fmt.Fprintf(out, "実行ID: %s\n状態: %s\n仕様書: %s\n", r.ID, r.Status, r.SpecPath)
	if r.ProjectName != "" {
		_, _ = fmt.Fprintf(out, "工事名: %s\n", r.ProjectName)
	}
	_, _ = fmt.Fprintf(out, "建物用途: %s  延床面積: %s㎡\n", r.BuildingType, calc.FormatAmount(r.FloorArea))
	if r.Result == nil {
		return
	}
	res := r.Result
	_, _ = fmt.Fprintf(out, "総額: %s  項目数: %d  KB一致率: %.1f%%\n",
		calc.FormatYen(res.TotalAmount), res.ItemCount, res.MatchedRate*100)
	if res.Error != "" {
		_, _ = fmt.Fprintf(out, "エラー: %s\n", res.Error)
	}

	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PHASE\tSTATUS\tMS\tTOKENS\tERROR")
	for _, p := range res.Phases {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			p.Name, p.Status, p.Duration,
			p.TokenUsage.InputTokens+p.TokenUsage.OutputTokens, p.Error)
	}
	_ = w.Flush()

	if res.Report != "" {
		_, _ = fmt.Fprintf(out, "\n%s\n", res.Report)
	}
}

func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSPEC\tSTATUS\tTOTAL\tVALID\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t-----\t-------")

	for _, r := range runs {
		total, valid := "", ""
		if r.Result != nil {
			total = calc.FormatYen(r.Result.TotalAmount)
			valid = fmt.Sprintf("%t", r.Result.IsValid)
		}
		spec := r.SpecPath
		if len([]rune(spec)) > 30 {
			spec = "..." + string([]rune(spec)[len([]rune(spec))-27:])
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			spec,
			r.Status,
			total,
			valid,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by status")
	runsListCmd.Flags().Int("limit", 20, "max runs to list")
	runsShowCmd.Flags().Bool("json", false, "print the stored run as JSON")
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
