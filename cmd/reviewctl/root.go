package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/config"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/observability/logging"
)

const service = "reviewctl"

var rootFlags struct {
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "reviewctl",
	Short: "Review property tax return documents from the command line",
	Long: "reviewctl normalizes source documents and runs the review pipeline locally,\n" +
		"using the same environment configuration as the API.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		level := rootFlags.logLevel
		if level == "" {
			level = config.Load().LogLevel
		}
		slog.SetDefault(logging.NewJSONLoggerTo(cmd.ErrOrStderr(), service, level))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "log level (defaults to LOG_LEVEL)")

	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(learningsCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
