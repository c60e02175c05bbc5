package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bidquote/internal/cost"
)

var (
	costsSession string
	costsJSON    bool
)

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Summarize recorded LLM costs",
	Long:  "Totals the Claude token usage recorded in the store, overall or for one session, by operation and by day.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListCosts(ctx, costsSession)
		if err != nil {
			return eris.Wrap(err, "costs")
		}
		sum := cost.Summarize(records)

		if costsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		}
		formatCostSummary(os.Stdout, sum)
		return nil
	},
}

func formatCostSummary(out io.Writer, s cost.Summary) {
	fmt.Fprintf(out, "呼び出し: %d回  入力: %d tokens  出力: %d tokens\n", s.Records, s.InputTokens, s.OutputTokens)
	fmt.Fprintf(out, "合計: $%.4f (¥%.0f)\n\n", s.CostUSD, s.CostJPY)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "OPERATION\tCALLS\tTOKENS\tUSD\tJPY")
	for _, op := range s.ByOperation {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%.4f\t%.0f\n", op.Operation, op.Count, op.Tokens, op.CostUSD, op.CostJPY)
	}
	_ = w.Flush()

	if len(s.ByDate) == 0 {
		return
	}
	dates := make([]string, 0, len(s.ByDate))
	for d := range s.ByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tJPY")
	for _, d := range dates {
		_, _ = fmt.Fprintf(w, "%s\t%.0f\n", d, s.ByDate[d])
	}
	_ = w.Flush()
}

func init() {
	costsCmd.Flags().StringVar(&costsSession, "session", "", "only one session ID")
	costsCmd.Flags().BoolVar(&costsJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(costsCmd)
}
