package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/salesflow/internal/fixture"
	"github.com/JaimeStill/salesflow/internal/pipeline"
	"github.com/JaimeStill/salesflow/pkg/formatting"
)

var (
	errDatabaseDisabled = errors.New("database is disabled in configuration")
	errStorageDisabled  = errors.New("storage is disabled in configuration")
)

var generateFlags struct {
	days int
	seed uint64
	end  string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write synthetic raw sales files",
	Long: `Writes one sales_<YYYYMMDD>.csv per day into the raw directory. The same
seed always produces the same files, including a small share of duplicate
and invalid rows.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			end, err := a.now()
			if err != nil {
				return err
			}
			if generateFlags.end != "" {
				if end, err = parseDay("end", generateFlags.end, end.Location()); err != nil {
					return err
				}
			}

			paths, err := fixture.Generate(a.cfg.Paths.Raw, generateFlags.days, generateFlags.seed, end)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		})
	},
}

var silverCmd = &cobra.Command{
	Use:   "silver",
	Short: "Clean raw files into silver and quarantine",
	Args:  cobra.NoArgs,
	RunE:  stageCommand(pipeline.Silver),
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a layer against its schema descriptor",
}

var validateSilverCmd = &cobra.Command{
	Use:   "silver",
	Short: "Validate every silver file",
	Args:  cobra.NoArgs,
	RunE:  stageCommand(pipeline.ValidateSilver),
}

var validateGoldCmd = &cobra.Command{
	Use:   "gold",
	Short: "Validate the gold fact table",
	Args:  cobra.NoArgs,
	RunE:  stageCommand(pipeline.ValidateGold),
}

var goldCmd = &cobra.Command{
	Use:   "gold",
	Short: "Merge silver files into the gold fact table",
	Args:  cobra.NoArgs,
	RunE:  stageCommand(pipeline.Gold),
}

var auditFlags struct {
	render bool
	width  int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit the gold fact table and write the quality report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			s, err := a.execute(cmd.Context(), pipeline.Audit)
			if s != nil && s.Audit != nil {
				out := s.Audit.Markdown()
				if auditFlags.render {
					rendered, rerr := s.Audit.Render(auditFlags.width)
					if rerr != nil {
						return rerr
					}
					out = rendered
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
			}
			return err
		})
	},
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Append today's good and bad counts to the trend history",
	Args:  cobra.NoArgs,
	RunE:  stageCommand(pipeline.Trends),
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Mirror the gold outputs into the warehouse database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			if a.infra.Database == nil {
				return errDatabaseDisabled
			}
			s, err := a.execute(cmd.Context(), pipeline.Load)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows\n", s.Loaded)
			return nil
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the current artifacts to storage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			if a.infra.Storage == nil {
				return errStorageDisabled
			}
			s, err := a.execute(cmd.Context(), pipeline.Publish)
			if err != nil {
				return err
			}
			for _, key := range s.Published {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	Long: `Runs silver, silver validation, gold, gold validation, audit, trends,
metrics export, warehouse load, and publishing. A silver validation failure
stops the run; other quality failures are reported once every stage has run
and skip the warehouse load.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			s, err := a.execute(cmd.Context(), pipeline.Default()...)
			if s != nil {
				fmt.Fprint(cmd.OutOrStdout(), formatting.Summary("salesflow run", runSummary(s)))
			}
			return err
		})
	},
}

func init() {
	generateCmd.Flags().IntVar(&generateFlags.days, "days", 7, "number of consecutive days")
	generateCmd.Flags().Uint64Var(&generateFlags.seed, "seed", 42, "random seed")
	generateCmd.Flags().StringVar(&generateFlags.end, "end", "", "last day YYYYMMDD (default the reference date)")

	auditCmd.Flags().BoolVar(&auditFlags.render, "render", false, "render the report for the terminal")
	auditCmd.Flags().IntVar(&auditFlags.width, "width", 100, "word wrap width for --render")

	validateCmd.AddCommand(validateSilverCmd, validateGoldCmd)
}

// stageCommand runs a single stage with metrics export afterwards.
func stageCommand(stage pipeline.Stage) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			_, err := a.execute(cmd.Context(), stage, pipeline.Metrics)
			return err
		})
	}
}

func runSummary(s *pipeline.State) []formatting.Item {
	items := []formatting.Item{{Key: "run_id", Value: s.RunID}}
	if s.Silver != nil {
		items = append(items,
			formatting.Item{Key: "silver_good", Value: s.Silver.Good},
			formatting.Item{Key: "silver_bad", Value: s.Silver.Bad},
		)
	}
	if s.Gold != nil {
		items = append(items,
			formatting.Item{Key: "gold_rows", Value: s.Gold.Rows},
			formatting.Item{Key: "gold_inserted", Value: s.Gold.Inserted},
			formatting.Item{Key: "gold_updated", Value: s.Gold.Updated},
		)
	}
	if s.Audit != nil {
		items = append(items, formatting.Item{Key: "audit", Value: s.Audit.Status()})
	}
	items = append(items,
		formatting.Item{Key: "warehouse_rows", Value: s.Loaded},
		formatting.Item{Key: "published", Value: len(s.Published)},
	)
	for _, qe := range s.Issues() {
		items = append(items, formatting.Item{Key: "issue", Value: qe.Error()})
	}
	return items
}
