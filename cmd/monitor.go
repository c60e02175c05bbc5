package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bidquote/internal/calc"
	"github.com/sells-group/bidquote/internal/monitoring"
)

var monitorOpts struct {
	hours int
	send  bool
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Check run health and LLM spend against alert thresholds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hours := monitorOpts.hours
		if hours <= 0 {
			hours = cfg.Monitoring.LookbackWindowHours
		}
		snap, err := monitoring.NewCollector(st).Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "monitor")
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap)
		formatSnapshot(os.Stdout, snap, alerts)

		if monitorOpts.send && len(alerts) > 0 {
			if err := alerter.Send(ctx, alerts, snap); err != nil {
				return eris.Wrap(err, "monitor")
			}
			fmt.Fprintf(os.Stdout, "\n%d alerts sent\n", len(alerts))
		}
		return nil
	},
}

func formatSnapshot(out io.Writer, s *monitoring.MetricsSnapshot, alerts []monitoring.Alert) {
	fmt.Fprintf(out, "直近%d時間\n", s.LookbackHours)
	fmt.Fprintf(out, "  見積実行: %d件 (完了 %d / 失敗 %d / 処理中 %d)\n", s.RunsTotal, s.RunsComplete, s.RunsFailed, s.RunsInProgress)
	fmt.Fprintf(out, "  失敗率: %.1f%%  要確認見積: %d件\n", s.FailRate*100, s.InvalidQuotes)
	fmt.Fprintf(out, "  平均KB一致率: %.1f%%  平均総額: %s\n", s.AvgMatchRate*100, calc.FormatYen(s.AvgTotalAmount))
	fmt.Fprintf(out, "  LLM: %d回 %d tokens $%.4f (¥%.0f)\n", s.LLMCalls, s.LLMTokens, s.LLMCostUSD, s.LLMCostJPY)

	if len(alerts) == 0 {
		fmt.Fprintln(out, "\nアラートなし")
		return
	}
	fmt.Fprintln(out, "\nアラート:")
	for _, a := range alerts {
		fmt.Fprintf(out, "  [%s] %s\n", a.Severity, a.Message)
	}
}

func init() {
	monitorCmd.Flags().IntVar(&monitorOpts.hours, "hours", 0, "lookback window in hours (default from config)")
	monitorCmd.Flags().BoolVar(&monitorOpts.send, "send", false, "post triggered alerts to the configured webhook")
	rootCmd.AddCommand(monitorCmd)
}
