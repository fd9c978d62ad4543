// Package gold merges silver day files into the long-lived fact table.
//
// The merger projects silver rows onto the fact layout, resolves revenue
// and the natural key, upserts into the existing fact table with new rows
// winning, and writes the result atomically. The date dimension is built
// once when absent.
package gold

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JaimeStill/salesflow/pkg/table"
)

// Output file names in the gold directory.
const (
	FactFile = "fact_sales.csv"
	DimFile  = "dim_date.csv"
)

// Dimension columns.
const (
	DimColDateID = "date_id"
	DimColDate   = "date"
)

// Dirs locates the silver input and the gold output.
type Dirs struct {
	Silver string
	Gold   string
}

// Result describes one merge.
type Result struct {
	Files        []string
	NewRows      int
	ExistingRows int
	Rows         int
	Inserted     int
	Updated      int
	NaturalKey   []string
	SortColumn   string
	DimCreated   bool
}

// Merger upserts silver batches into the gold fact table. Concurrent
// merges against the same directory are not safe.
type Merger struct {
	cfg    Config
	dirs   Dirs
	logger *zap.Logger
}

// New creates a Merger. cfg must already be finalized.
func New(cfg *Config, dirs Dirs, logger *zap.Logger) *Merger {
	return &Merger{
		cfg:    *cfg,
		dirs:   dirs,
		logger: logger.With(zap.String("system", "gold")),
	}
}

// FactPath returns the location of the fact table.
func (m *Merger) FactPath() string {
	return filepath.Join(m.dirs.Gold, FactFile)
}

// DimPath returns the location of the date dimension.
func (m *Merger) DimPath() string {
	return filepath.Join(m.dirs.Gold, DimFile)
}

// Discover lists sales_clean_*.csv files in dir sorted by name.
func Discover(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "sales_clean_*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob silver dir: %w", err)
	}
	slices.Sort(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInput, dir)
	}
	return files, nil
}

// Merge reads every silver file, upserts it into the fact table and writes
// the result. All transformation happens before the first write.
func (m *Merger) Merge(ctx context.Context) (*Result, error) {
	files, err := Discover(m.dirs.Silver)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	batches := make([]*table.Table, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := table.ReadFile(f, table.ReadOptions{})
		if err != nil {
			return nil, fmt.Errorf("read silver file: %w", err)
		}
		batches = append(batches, t)
	}

	incoming, err := Project(table.Concat(batches...))
	if err != nil {
		return nil, fmt.Errorf("project silver batch: %w", err)
	}

	existing, err := m.readExisting()
	if err != nil {
		return nil, err
	}

	merged := table.Concat(existing, incoming)
	key, err := m.resolveKey(merged)
	if err != nil {
		return nil, err
	}

	out := Upsert(existing, incoming, key)
	sortCol := SortByDate(out)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dimStart, dimEnd := m.cfg.DimRange()
	created, err := BuildDimDate(m.DimPath(), dimStart, dimEnd)
	if err != nil {
		return nil, err
	}

	if err := table.WriteFile(m.FactPath(), out); err != nil {
		return nil, fmt.Errorf("write fact table: %w", err)
	}

	res := &Result{
		Files:        files,
		NewRows:      incoming.Len(),
		ExistingRows: existing.Len(),
		Rows:         out.Len(),
		NaturalKey:   key,
		SortColumn:   sortCol,
		DimCreated:   created,
	}
	res.Inserted, res.Updated = countChanges(existing, incoming, key)

	m.logger.Info("gold complete",
		zap.Int("files", len(files)),
		zap.Int("new_rows", res.NewRows),
		zap.Int("existing_rows", res.ExistingRows),
		zap.Int("rows", res.Rows),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Strings("natural_key", key),
		zap.Bool("dim_created", created),
		zap.Duration("elapsed", time.Since(start)),
	)

	return res, nil
}

func (m *Merger) readExisting() (*table.Table, error) {
	t, err := table.ReadFile(m.FactPath(), table.ReadOptions{})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return table.New(), nil
		}
		return nil, fmt.Errorf("read fact table: %w", err)
	}
	return t, nil
}

func (m *Merger) resolveKey(t *table.Table) ([]string, error) {
	if !m.cfg.AutoKey {
		return ResolveKey(t, m.cfg.NaturalKey)
	}

	matches := MatchingCandidates(t)
	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, k := range matches {
			names[i] = strings.Join(k, "+")
		}
		m.logger.Warn("multiple natural key candidates match",
			zap.Strings("candidates", names),
			zap.String("selected", names[0]),
		)
	}
	return ResolveKey(t, nil)
}

// countChanges reports how many distinct incoming keys were new and how
// many replaced an existing row.
func countChanges(existing, incoming *table.Table, key []string) (inserted, updated int) {
	known := keySet(existing, key)
	seen := make(map[string]struct{})
	for i := range incoming.Len() {
		k := rowKey(incoming, i, key)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := known[k]; ok {
			updated++
		} else {
			inserted++
		}
	}
	return inserted, updated
}

func keySet(t *table.Table, key []string) map[string]struct{} {
	set := make(map[string]struct{}, t.Len())
	for i := range t.Len() {
		set[rowKey(t, i, key)] = struct{}{}
	}
	return set
}

func rowKey(t *table.Table, i int, key []string) string {
	idx := make([]int, len(key))
	for j, c := range key {
		idx[j] = t.Index(c)
	}
	return table.Key(t.Row(i), idx)
}

// BuildDimDate writes the date dimension covering start through end
// inclusive when path does not exist yet. It reports whether a file was
// written.
func BuildDimDate(path string, start, end time.Time) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat date dimension: %w", err)
	}

	dim := table.New(DimColDateID, DimColDate)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dim.Append(d.Format("20060102"), d.Format(dimLayout))
	}

	if err := table.WriteFile(path, dim); err != nil {
		return false, fmt.Errorf("write date dimension: %w", err)
	}
	return true, nil
}
