// Package silver turns raw daily sales files into cleaned silver tables and
// quarantined reject files.
//
// Each raw day is deduplicated, classified row by row, and partitioned:
// rejects are written with their violated rules to the quarantine directory,
// survivors are deduplicated by order_id, typed, and written with derived
// revenue. Days are independent and may be processed concurrently.
package silver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/salesflow/pkg/formatting"
	"github.com/JaimeStill/salesflow/pkg/table"
)

// Column names shared with downstream stages.
const (
	ColOrderID     = "order_id"
	ColOrderDate   = "order_date"
	ColGeoID       = "geo_id"
	ColProductID   = "product_id"
	ColQuantity    = "quantity"
	ColUnitPrice   = "unit_price"
	ColRevenue     = "revenue_jpy"
	ColProcessedAt = "processed_at"
	ColBadReason   = "_bad_reason"
	ColSourceFile  = "source_file"
)

// RawColumns are the columns every raw file is expected to carry.
var RawColumns = []string{ColOrderID, ColOrderDate, ColGeoID, ColProductID, ColQuantity, ColUnitPrice}

// CleanColumns is the fixed column order of sales_clean_<day>.csv.
var CleanColumns = []string{ColOrderID, ColOrderDate, ColGeoID, ColProductID, ColQuantity, ColUnitPrice, ColRevenue, ColProcessedAt}

var rawFilePattern = regexp.MustCompile(`^sales_(\d{8})\.csv$`)

// Dirs locates the raw input and the silver outputs.
type Dirs struct {
	Raw        string
	Silver     string
	Quarantine string
}

// DaySummary describes the outcome of one raw day.
type DaySummary struct {
	Day             string
	Source          string
	Rows            int
	DuplicateRows   int
	DuplicateOrders int
	Good            int
	Bad             int
	Reasons         map[string]int
}

// Summary aggregates every processed day in file name order.
type Summary struct {
	Days    []DaySummary
	Good    int
	Bad     int
	Reasons map[string]int
}

// ReasonTags returns the histogram keys in sorted order.
func (s *Summary) ReasonTags() []string {
	return slices.Sorted(maps.Keys(s.Reasons))
}

// Result holds the partition of one raw day.
type Result struct {
	Clean      *table.Table
	Quarantine *table.Table
	Summary    DaySummary
}

// CleanFile returns the silver file name for a day.
func CleanFile(day string) string {
	return fmt.Sprintf("sales_clean_%s.csv", day)
}

// QuarantineFile returns the quarantine file name for a day.
func QuarantineFile(day string) string {
	return fmt.Sprintf("sales_bad_%s.csv", day)
}

// SourceFile returns the raw file name for a day.
func SourceFile(day string) string {
	return fmt.Sprintf("sales_%s.csv", day)
}

// Split partitions a raw day table. It does not modify raw.
func Split(day string, raw *table.Table) Result {
	t := raw.Clone()
	for _, c := range RawColumns {
		t.AddColumn(c)
	}

	deduped := t.DropDuplicates()
	summary := DaySummary{
		Day:           day,
		Source:        SourceFile(day),
		Rows:          raw.Len(),
		DuplicateRows: t.Len() - deduped.Len(),
		Reasons:       make(map[string]int),
	}

	verdicts := make([]Verdict, deduped.Len())
	for i := range deduped.Len() {
		verdicts[i] = Classify(Record{
			OrderID:   deduped.Get(i, ColOrderID),
			OrderDate: deduped.Get(i, ColOrderDate),
			GeoID:     deduped.Get(i, ColGeoID),
			ProductID: deduped.Get(i, ColProductID),
			Quantity:  deduped.Get(i, ColQuantity),
			UnitPrice: deduped.Get(i, ColUnitPrice),
		})
	}

	bad := deduped.Filter(func(i int) bool { return !verdicts[i].Accepted() })
	bad.AddColumn(ColBadReason)
	bad.AddColumn(ColSourceFile)
	row := 0
	for _, v := range verdicts {
		if v.Accepted() {
			continue
		}
		bad.Set(row, ColBadReason, v.Reason())
		bad.Set(row, ColSourceFile, summary.Source)
		for _, r := range v.Reasons {
			summary.Reasons[r]++
		}
		row++
	}

	good := deduped.Filter(func(i int) bool { return verdicts[i].Accepted() })
	unique := good.DedupeBy([]string{ColOrderID}, false)

	clean := table.New(CleanColumns...)
	for i := range unique.Len() {
		qty, _ := table.TruncInt(unique.Get(i, ColQuantity))
		price, _ := table.ParseFloat(unique.Get(i, ColUnitPrice))

		clean.Append(
			unique.Get(i, ColOrderID),
			unique.Get(i, ColOrderDate),
			unique.Get(i, ColGeoID),
			unique.Get(i, ColProductID),
			table.FormatInt(qty),
			table.FormatFloat(price),
			table.FormatFloat(float64(qty)*price),
			day,
		)
	}

	summary.Good = clean.Len()
	summary.Bad = bad.Len()
	summary.DuplicateOrders = good.Len() - unique.Len()

	return Result{Clean: clean, Quarantine: bad, Summary: summary}
}

// Writer reads raw day files and writes their silver partitions.
type Writer struct {
	cfg    Config
	dirs   Dirs
	logger *zap.Logger
}

// New creates a Writer. cfg must already be finalized.
func New(cfg *Config, dirs Dirs, logger *zap.Logger) *Writer {
	return &Writer{
		cfg:    *cfg,
		dirs:   dirs,
		logger: logger.With(zap.String("system", "silver")),
	}
}

// Discover lists raw day files in dir sorted by name. Names that do not
// match sales_<YYYYMMDD>.csv are skipped.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNoInput, dir)
		}
		return nil, fmt.Errorf("read raw dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && rawFilePattern.MatchString(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInput, dir)
	}
	return files, nil
}

// ProcessDir processes every raw day file on a bounded worker pool.
// Results are collected by file index, so the summary does not depend on
// scheduling. The first failing day cancels the remaining ones.
func (w *Writer) ProcessDir(ctx context.Context) (*Summary, error) {
	files, err := Discover(w.dirs.Raw)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	days := make([]DaySummary, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			day, err := w.ProcessFile(gctx, path)
			if err != nil {
				return err
			}
			days[i] = day
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{Days: days, Reasons: make(map[string]int)}
	for _, d := range days {
		summary.Good += d.Good
		summary.Bad += d.Bad
		for r, n := range d.Reasons {
			summary.Reasons[r] += n
		}
	}

	w.logger.Info("silver complete",
		zap.Int("files", len(files)),
		zap.Int("good", summary.Good),
		zap.Int("bad", summary.Bad),
		zap.Duration("elapsed", time.Since(start)),
	)

	return summary, nil
}

// ProcessFile partitions one raw day file and writes its outputs. A day
// without rejects removes any quarantine file left by an earlier run.
func (w *Writer) ProcessFile(ctx context.Context, path string) (DaySummary, error) {
	m := rawFilePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return DaySummary{}, fmt.Errorf("%w: %s", ErrFileName, filepath.Base(path))
	}
	day := m[1]

	info, err := os.Stat(path)
	if err != nil {
		return DaySummary{}, fmt.Errorf("stat raw file: %w", err)
	}
	if limit := w.cfg.MaxFileSizeBytes(); limit > 0 && info.Size() > limit {
		return DaySummary{}, fmt.Errorf("%w: %s is %s, limit %s", ErrInputTooLarge,
			filepath.Base(path), formatting.FormatBytes(info.Size(), 1), w.cfg.MaxFileSize)
	}

	raw, err := table.ReadFile(path, table.ReadOptions{Encoding: w.cfg.Encoding})
	if err != nil {
		return DaySummary{}, fmt.Errorf("read raw day %s: %w", day, err)
	}
	if err := ctx.Err(); err != nil {
		return DaySummary{}, err
	}

	res := Split(day, raw)

	if err := table.WriteFile(filepath.Join(w.dirs.Silver, CleanFile(day)), res.Clean); err != nil {
		return DaySummary{}, fmt.Errorf("write silver day %s: %w", day, err)
	}

	quarantine := filepath.Join(w.dirs.Quarantine, QuarantineFile(day))
	if res.Quarantine.Len() > 0 {
		if err := table.WriteFile(quarantine, res.Quarantine); err != nil {
			return DaySummary{}, fmt.Errorf("write quarantine day %s: %w", day, err)
		}
	} else if err := os.Remove(quarantine); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return DaySummary{}, fmt.Errorf("remove stale quarantine day %s: %w", day, err)
	}

	w.logger.Debug("processed raw day",
		zap.String("file", res.Summary.Source),
		zap.Int("rows", res.Summary.Rows),
		zap.Int("good", res.Summary.Good),
		zap.Int("bad", res.Summary.Bad),
		zap.Int("duplicate_rows", res.Summary.DuplicateRows),
		zap.Int("duplicate_orders", res.Summary.DuplicateOrders),
	)

	return res.Summary, nil
}
