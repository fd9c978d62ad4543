// Package audit runs quality checks against the gold fact table and
// renders the results as a Markdown report.
//
// Every check runs regardless of the others. A report fails when any
// check fails; warnings never fail it.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/JaimeStill/salesflow/internal/gold"
	"github.com/JaimeStill/salesflow/pkg/formatting"
	"github.com/JaimeStill/salesflow/pkg/table"
)

// Status is the outcome of a check. Higher values are worse.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Warn:
		return "WARN"
	default:
		return "FAIL"
	}
}

// Check is the result of one rule. Value carries the computed statistic
// for the anomaly checks.
type Check struct {
	Name    string
	Status  Status
	Details string
	Value   float64
}

// Report aggregates every check of one audit.
type Report struct {
	GeneratedAt time.Time
	Rows        int
	NaturalKey  []string
	Checks      []Check
}

// Status returns the worst status among the checks.
func (r *Report) Status() Status {
	worst := Pass
	for _, c := range r.Checks {
		worst = max(worst, c.Status)
	}
	return worst
}

// Failed reports whether any check failed.
func (r *Report) Failed() bool {
	return r.Status() == Fail
}

// Lookup returns the check with the given name.
func (r *Report) Lookup(name string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// Markdown renders the report with one table row per check.
func (r *Report) Markdown() string {
	rows := make([][]string, len(r.Checks))
	for i, c := range r.Checks {
		rows[i] = []string{c.Name, c.Status.String(), c.Details}
	}

	var b strings.Builder
	b.WriteString(formatting.Summary("Gold Quality Report", []formatting.Item{
		{Key: "generated_at", Value: r.GeneratedAt.Format(time.RFC3339)},
		{Key: "rows", Value: r.Rows},
		{Key: "natural_key", Value: strings.Join(r.NaturalKey, ", ")},
		{Key: "overall", Value: r.Status()},
	}))
	b.WriteString("\n")
	b.WriteString(formatting.Table([]string{"Check", "Status", "Details"}, rows))
	return b.String()
}

// Render formats the Markdown report for a terminal of the given width.
func (r *Report) Render(width int) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	out, err := renderer.Render(r.Markdown())
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return out, nil
}

// Run evaluates every check against fact. dim may be nil when no date
// dimension exists. key is the configured natural key; an empty key
// selects the first matching candidate.
func Run(fact, dim *table.Table, key []string, now time.Time, cfg *Config) *Report {
	resolved, keyErr := gold.ResolveKey(fact, key)
	s := dailySeries(fact)

	return &Report{
		GeneratedAt: now,
		Rows:        fact.Len(),
		NaturalKey:  resolved,
		Checks: []Check{
			checkRequiredColumns(fact),
			checkPrimaryKey(fact, resolved, keyErr),
			checkKeyNotNull(fact, resolved, keyErr),
			checkNumericRanges(fact, cfg.MaxUnitPrice),
			checkDateRange(fact, now, cfg.LookbackDays, cfg.Location()),
			checkReferential(fact, dim),
			checkVolume(s, cfg),
			checkSpike(s, cfg),
			checkNonNegative(fact),
			checkRevenueConsistency(fact, cfg.RevenueTolerance),
		},
	}
}

// Paths locates the audit inputs and output.
type Paths struct {
	Fact   string
	Dim    string
	Report string
}

// Auditor reads the gold outputs from disk and writes the quality report.
type Auditor struct {
	cfg    Config
	paths  Paths
	key    []string
	logger *zap.Logger
}

// New creates an Auditor. cfg must already be finalized.
func New(cfg *Config, paths Paths, key []string, logger *zap.Logger) *Auditor {
	return &Auditor{
		cfg:    *cfg,
		paths:  paths,
		key:    key,
		logger: logger.With(zap.String("system", "audit")),
	}
}

// Audit checks the fact table as of now and writes the Markdown report.
// A missing date dimension fails referential integrity rather than the
// audit itself.
func (a *Auditor) Audit(ctx context.Context, now time.Time) (*Report, error) {
	fact, err := table.ReadFile(a.paths.Fact, table.ReadOptions{})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoFact, a.paths.Fact)
		}
		return nil, fmt.Errorf("read fact table: %w", err)
	}

	dim, err := table.ReadFile(a.paths.Dim, table.ReadOptions{})
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read date dimension: %w", err)
		}
		a.logger.Warn("date dimension missing", zap.String("path", a.paths.Dim))
		dim = nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := Run(fact, dim, a.key, now, &a.cfg)
	for _, c := range report.Checks {
		if c.Status != Pass {
			a.logger.Warn("check not passed",
				zap.String("check", c.Name),
				zap.Stringer("status", c.Status),
				zap.String("details", c.Details),
			)
		}
	}

	if a.paths.Report != "" {
		if err := table.WriteAtomic(a.paths.Report, []byte(report.Markdown())); err != nil {
			return nil, fmt.Errorf("write quality report: %w", err)
		}
	}

	a.logger.Info("audit complete",
		zap.Int("rows", report.Rows),
		zap.Stringer("status", report.Status()),
	)
	return report, nil
}
