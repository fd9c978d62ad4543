package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/salesflow/pkg/formatting"
	"github.com/JaimeStill/salesflow/pkg/table"
)

// Report is the outcome of validating one table. An empty Errors slice
// means the table passed.
type Report struct {
	Errors       []string
	Warnings     []string
	Counts       map[string]int
	PKDuplicates int
}

// OK reports whether validation found no errors.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

// Validate checks t against s. Data problems are collected in the report;
// Validate itself never fails.
//
// When required columns are missing the report holds only those errors:
// the remaining checks are meaningless without them.
func Validate(t *table.Table, s *Schema) *Report {
	r := &Report{Counts: map[string]int{"rows": t.Len()}}

	for _, col := range s.Required {
		if !t.Has(col) {
			r.Errors = append(r.Errors, fmt.Sprintf("Missing required column: %s", col))
		}
	}
	if len(r.Errors) > 0 {
		return r
	}

	required := make(map[string]bool, len(s.Required))
	for _, col := range s.Required {
		required[col] = true
	}

	for _, f := range s.Fields {
		if !t.Has(f.Name) {
			r.Warnings = append(r.Warnings, fmt.Sprintf("Declared column not present: %s", f.Name))
			continue
		}
		r.checkField(t, f, required[f.Name])
	}

	if len(s.PrimaryKey) > 0 {
		r.checkPrimaryKey(t, s.PrimaryKey)
	}

	return r
}

// WriteSummary writes a Markdown bullet summary: a level-one title followed
// by one "- **key**: value" line per item.
func WriteSummary(path, title string, items []formatting.Item) error {
	if err := table.WriteAtomic(path, []byte(formatting.Summary(title, items))); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}

func (r *Report) checkField(t *table.Table, f NamedField, required bool) {
	values := t.Column(f.Name)

	var coerce func(string) (float64, bool)
	switch f.DType {
	case DTypeString:
		coerce = func(v string) (float64, bool) { return 0, !table.IsNull(v) }
	case DTypeInt:
		coerce = func(v string) (float64, bool) {
			n, ok := table.ParseInt(v)
			return float64(n), ok
		}
	case DTypeFloat:
		coerce = table.ParseFloat
	case DTypeDate:
		layouts := dateLayouts(f.Format)
		coerce = func(v string) (float64, bool) {
			_, ok := parseDate(v, layouts)
			return 0, ok
		}
	default:
		r.Warnings = append(r.Warnings, fmt.Sprintf("Unknown dtype %q for column: %s", f.DType, f.Name))
		coerce = func(v string) (float64, bool) { return 0, !table.IsNull(v) }
	}

	numeric := f.DType == DTypeInt || f.DType == DTypeFloat
	var nulls, below, above int

	for _, v := range values {
		n, ok := coerce(v)
		if !ok {
			nulls++
			continue
		}
		if !numeric {
			continue
		}
		if f.Min != nil && n < *f.Min {
			below++
		}
		if f.Max != nil && n > *f.Max {
			above++
		}
	}

	if required && nulls > 0 {
		r.Errors = append(r.Errors, fmt.Sprintf("NULLs in required column: %s (%d)", f.Name, nulls))
	}
	if below > 0 {
		r.Errors = append(r.Errors, fmt.Sprintf("%s < %s: %d rows", f.Name, table.FormatFloat(*f.Min), below))
	}
	if above > 0 {
		r.Errors = append(r.Errors, fmt.Sprintf("%s > %s: %d rows", f.Name, table.FormatFloat(*f.Max), above))
	}
}

func (r *Report) checkPrimaryKey(t *table.Table, pk []string) {
	idx := make([]int, len(pk))
	for i, col := range pk {
		idx[i] = t.Index(col)
		if idx[i] < 0 {
			r.Errors = append(r.Errors, fmt.Sprintf("Missing primary key column: %s", col))
			return
		}
	}

	seen := make(map[string]int, t.Len())
	for i := range t.Len() {
		seen[table.Key(t.Row(i), idx)]++
	}

	var dups, groups int
	for _, n := range seen {
		if n > 1 {
			dups += n - 1
			groups++
		}
	}

	r.PKDuplicates = dups
	r.Counts["pk_duplicate_groups"] = groups
	if dups > 0 {
		r.Errors = append(r.Errors, fmt.Sprintf("Primary key duplicates: %d rows", dups))
	}
}

var defaultDateLayouts = []string{
	"2006-01-02",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

var strftime = strings.NewReplacer(
	"%Y", "2006",
	"%y", "06",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%M", "04",
	"%S", "05",
	"%b", "Jan",
	"%B", "January",
	"%j", "002",
	"%z", "-0700",
	"%%", "%",
)

// dateLayouts converts a strftime format (any value containing "%") to a
// Go layout; other non-empty formats are taken as Go layouts already.
func dateLayouts(format string) []string {
	switch {
	case format == "":
		return defaultDateLayouts
	case strings.Contains(format, "%"):
		return []string{strftime.Replace(format)}
	default:
		return []string{format}
	}
}

func parseDate(v string, layouts []string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
