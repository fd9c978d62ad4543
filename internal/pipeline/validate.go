package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JaimeStill/salesflow/internal/gold"
	"github.com/JaimeStill/salesflow/internal/schema"
	"github.com/JaimeStill/salesflow/pkg/formatting"
	"github.com/JaimeStill/salesflow/pkg/table"
)

// Report titles written to the data-quality summary.
const (
	SilverReportTitle = "Data Quality Report (Silver)"
	GoldReportTitle   = "Data Quality Report (Gold)"
)

const errorSampleLimit = 10

// Validation is the schema validation outcome of one layer.
type Validation struct {
	Files        int
	Rows         int
	PKDuplicates int
	Errors       []string
}

// OK reports whether no file had schema errors.
func (v *Validation) OK() bool {
	return len(v.Errors) == 0
}

func (v *Validation) samples() string {
	n := min(len(v.Errors), errorSampleLimit)
	return strings.Join(v.Errors[:n], " | ")
}

func (v *Validation) silverItems() []formatting.Item {
	items := []formatting.Item{
		{Key: "silver_files", Value: v.Files},
		{Key: "silver_rows_total", Value: v.Rows},
		{Key: "silver_errors", Value: len(v.Errors)},
	}
	if !v.OK() {
		items = append(items, formatting.Item{Key: "error_samples", Value: v.samples()})
	}
	return items
}

func (v *Validation) goldItems() []formatting.Item {
	items := []formatting.Item{
		{Key: "gold_rows", Value: v.Rows},
		{Key: "pk_duplicates", Value: v.PKDuplicates},
		{Key: "errors", Value: len(v.Errors)},
	}
	if !v.OK() {
		items = append(items, formatting.Item{Key: "error_samples", Value: v.samples()})
	}
	return items
}

// runValidateSilver checks every silver file against the silver schema.
// Errors are collected per file as "name: e1; e2".
func runValidateSilver(ctx context.Context, rt *Runtime, s *State) error {
	paths := rt.Config.Paths

	sch, err := schema.Load(paths.SilverSchema)
	if err != nil {
		return err
	}

	files, err := gold.Discover(paths.Silver)
	if err != nil {
		return err
	}

	v := &Validation{Files: len(files)}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, err := table.ReadFile(f, table.ReadOptions{})
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		v.Rows += t.Len()

		rep := schema.Validate(t, sch)
		if !rep.OK() {
			v.Errors = append(v.Errors, fmt.Sprintf("%s: %s", filepath.Base(f), strings.Join(rep.Errors, "; ")))
		}
	}
	s.SilverValidation = v

	if err := schema.WriteSummary(paths.DQReport(), SilverReportTitle, v.silverItems()); err != nil {
		return err
	}

	rt.Logger.Info("silver validated",
		zap.Int("files", v.Files),
		zap.Int("rows", v.Rows),
		zap.Int("errors", len(v.Errors)),
	)

	if !v.OK() {
		return &QualityError{
			Stage:   StageValidateSilver,
			Details: fmt.Sprintf("%d of %d files failed schema validation", len(v.Errors), v.Files),
		}
	}
	return nil
}

// runValidateGold checks the fact table against the gold schema.
func runValidateGold(ctx context.Context, rt *Runtime, s *State) error {
	paths := rt.Config.Paths

	sch, err := schema.Load(paths.GoldSchema)
	if err != nil {
		return err
	}

	factPath := filepath.Join(paths.Gold, gold.FactFile)
	fact, err := table.ReadFile(factPath, table.ReadOptions{})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoGold, factPath)
		}
		return fmt.Errorf("read fact table: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rep := schema.Validate(fact, sch)
	v := &Validation{
		Files:        1,
		Rows:         fact.Len(),
		PKDuplicates: rep.PKDuplicates,
		Errors:       rep.Errors,
	}
	s.GoldValidation = v

	if err := schema.WriteSummary(paths.DQReport(), GoldReportTitle, v.goldItems()); err != nil {
		return err
	}

	rt.Logger.Info("gold validated",
		zap.Int("rows", v.Rows),
		zap.Int("pk_duplicates", v.PKDuplicates),
		zap.Int("errors", len(v.Errors)),
	)

	if !v.OK() {
		return &QualityError{
			Stage:   StageValidateGold,
			Details: fmt.Sprintf("%d schema errors", len(v.Errors)),
		}
	}
	return nil
}
