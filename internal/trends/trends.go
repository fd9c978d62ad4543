// Package trends maintains the quarantine trend history: one row per day
// with the total, good and bad row counts and the bad rate.
package trends

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/JaimeStill/salesflow/pkg/table"
)

// Columns of quarantine_trends.csv.
var Columns = []string{"Date", "Total", "Good", "Bad", "Rate"}

// Entry is one day of trend history.
type Entry struct {
	Date  string
	Total int
	Good  int
	Bad   int
}

// NewEntry builds an entry for date from good and bad counts.
func NewEntry(date string, good, bad int) Entry {
	return Entry{Date: date, Total: good + bad, Good: good, Bad: bad}
}

// Rate returns the bad share as a percentage with one decimal.
func (e Entry) Rate() string {
	var r float64
	if e.Total > 0 {
		r = float64(e.Bad) / float64(e.Total) * 100
	}
	return fmt.Sprintf("%.1f%%", r)
}

// Update appends e to the trend file at path unless a row for the same
// date already exists. It reports whether a row was appended.
func Update(path string, e Entry) (bool, error) {
	t, err := table.ReadFile(path, table.ReadOptions{})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		t = table.New(Columns...)
	case err != nil:
		return false, fmt.Errorf("read trends: %w", err)
	}

	if slices.Contains(t.Column("Date"), e.Date) {
		return false, nil
	}

	t.AppendRecord(map[string]string{
		"Date":  e.Date,
		"Total": table.FormatInt(int64(e.Total)),
		"Good":  table.FormatInt(int64(e.Good)),
		"Bad":   table.FormatInt(int64(e.Bad)),
		"Rate":  e.Rate(),
	})

	if err := table.WriteFile(path, t); err != nil {
		return false, fmt.Errorf("write trends: %w", err)
	}
	return true, nil
}

// Collect counts fact rows as good and every quarantined row under
// quarantineDir as bad.
func Collect(factPath, quarantineDir string) (good, bad int, err error) {
	fact, err := table.ReadFile(factPath, table.ReadOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("read fact table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(quarantineDir, "*.csv"))
	if err != nil {
		return 0, 0, fmt.Errorf("glob quarantine: %w", err)
	}
	for _, f := range files {
		q, err := table.ReadFile(f, table.ReadOptions{})
		if err != nil {
			return 0, 0, fmt.Errorf("read quarantine: %w", err)
		}
		bad += q.Len()
	}
	return fact.Len(), bad, nil
}
