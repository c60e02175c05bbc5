package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bidquote/internal/config"
)

var cfg *config.Config

var rootOpts struct {
	configPath string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:           "bidquote",
	Short:         "Construction bid estimate engine",
	Long:          "Drafts equipment-work estimate items from spec documents, prices them against a KB of past unit prices, rolls up amounts, adds statutory welfare and checks the result against ㎡ cost ranges.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		c, err := config.LoadFile(rootOpts.configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if rootOpts.logLevel != "" {
			c.Log.Level = rootOpts.logLevel
		}
		if err := config.InitLogger(c.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		cfg = c
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootOpts.configPath, "config", "", "config file (default ./config.yaml)")
	pf.StringVar(&rootOpts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("error: " + err.Error() + "\n") //nolint:errcheck
		os.Exit(1)
	}
}
