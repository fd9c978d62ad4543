// Command salesflow runs the daily sales medallion pipeline: raw CSV to
// cleaned silver files, an idempotent gold fact table, a quality audit,
// and optional warehouse and artifact sinks.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/salesflow/internal/pipeline"
)

// Process exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitQuality = 2
)

var flags struct {
	config  string
	verbose bool
	asOf    string
}

var rootCmd = &cobra.Command{
	Use:   "salesflow",
	Short: "Daily sales data pipeline",
	Long: `salesflow cleans raw daily sales files into silver, merges them into an
idempotent gold fact table with a date dimension, and audits the result.

Stages can run one at a time or together with "salesflow run". A stage that
detects a data-quality failure exits with status 2; any other error exits
with status 1.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "config file (default config.toml)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&flags.asOf, "as-of", "", "reference date YYYYMMDD in the audit time zone (default now)")

	rootCmd.AddCommand(
		generateCmd,
		silverCmd,
		validateCmd,
		goldCmd,
		auditCmd,
		trendsCmd,
		loadCmd,
		factsCmd,
		publishCmd,
		runCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case pipeline.IsQuality(err):
		fmt.Fprintln(os.Stderr, "quality failure:", err)
		return exitQuality
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "interrupted")
		return exitError
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitError
	}
}
