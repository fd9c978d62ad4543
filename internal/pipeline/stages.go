package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JaimeStill/salesflow/internal/audit"
	"github.com/JaimeStill/salesflow/internal/gold"
	"github.com/JaimeStill/salesflow/internal/silver"
	"github.com/JaimeStill/salesflow/internal/trends"
	"github.com/JaimeStill/salesflow/internal/warehouse"
	"github.com/JaimeStill/salesflow/pkg/storage"
	"github.com/JaimeStill/salesflow/pkg/table"
)

func runSilver(ctx context.Context, rt *Runtime, s *State) error {
	paths := rt.Config.Paths
	w := silver.New(&rt.Config.Silver, silver.Dirs{
		Raw:        paths.Raw,
		Silver:     paths.Silver,
		Quarantine: paths.Quarantine,
	}, rt.Logger)

	sum, err := w.ProcessDir(ctx)
	if err != nil {
		return err
	}
	s.Silver = sum
	rt.Metrics.ObserveSilver(sum.Good, sum.Bad, sum.Reasons)
	return nil
}

func runGold(ctx context.Context, rt *Runtime, s *State) error {
	m := gold.New(&rt.Config.Gold, gold.Dirs{
		Silver: rt.Config.Paths.Silver,
		Gold:   rt.Config.Paths.Gold,
	}, rt.Logger)

	res, err := m.Merge(ctx)
	if err != nil {
		return err
	}
	s.Gold = res
	rt.Metrics.SetGoldRows(res.Rows)
	return nil
}

// runAudit writes the quality report. The natural key resolved by the
// gold stage takes precedence over the configured one.
func runAudit(ctx context.Context, rt *Runtime, s *State) error {
	paths := rt.Config.Paths

	key := rt.Config.Gold.NaturalKey
	if s.Gold != nil {
		key = s.Gold.NaturalKey
	}

	a := audit.New(&rt.Config.Audit, audit.Paths{
		Fact:   filepath.Join(paths.Gold, gold.FactFile),
		Dim:    filepath.Join(paths.Gold, gold.DimFile),
		Report: paths.QualityReport(),
	}, key, rt.Logger)

	rep, err := a.Audit(ctx, s.Now)
	if err != nil {
		return err
	}
	s.Audit = rep

	for _, c := range rep.Checks {
		rt.Metrics.SetCheckStatus(c.Name, int(c.Status))
	}

	if rep.Failed() {
		var failed []string
		for _, c := range rep.Checks {
			if c.Status == audit.Fail {
				failed = append(failed, c.Name)
			}
		}
		return &QualityError{
			Stage:   StageAudit,
			Details: strings.Join(failed, ", "),
		}
	}
	return nil
}

// runTrends appends today's good/bad counts once per calendar day in the
// audit time zone.
func runTrends(_ context.Context, rt *Runtime, s *State) error {
	paths := rt.Config.Paths

	good, bad, err := trends.Collect(filepath.Join(paths.Gold, gold.FactFile), paths.Quarantine)
	if err != nil {
		return err
	}

	date := s.Now.In(rt.Config.Audit.Location()).Format(time.DateOnly)
	added, err := trends.Update(paths.Trends(), trends.NewEntry(date, good, bad))
	if err != nil {
		return err
	}
	s.TrendAdded = added

	rt.Logger.Info("trends updated",
		zap.String("date", date),
		zap.Int("good", good),
		zap.Int("bad", bad),
		zap.Bool("added", added),
	)
	return nil
}

func runMetrics(ctx context.Context, rt *Runtime, _ *State) error {
	return rt.Metrics.Export(ctx, &rt.Config.Metrics, rt.Logger)
}

// runLoad mirrors the gold outputs into the warehouse. It is skipped when
// no database is configured or when an earlier stage failed quality checks.
func runLoad(ctx context.Context, rt *Runtime, s *State) error {
	if rt.Database == nil {
		rt.Logger.Debug("warehouse load skipped: database disabled")
		return nil
	}
	if s.Failed() {
		rt.Logger.Warn("warehouse load skipped: quality checks failed")
		return nil
	}

	if err := warehouse.Migrate(&rt.Config.Database, rt.Logger); err != nil {
		return err
	}

	paths := rt.Config.Paths
	fact, err := table.ReadFile(filepath.Join(paths.Gold, gold.FactFile), table.ReadOptions{})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoGold, paths.Gold)
		}
		return fmt.Errorf("read fact table: %w", err)
	}
	facts, err := warehouse.FactsFromTable(fact)
	if err != nil {
		return err
	}

	wh := warehouse.New(rt.Database.Connection(), rt.Database.Dialect(), rt.Config.Pagination, rt.Logger)

	dim, err := table.ReadFile(filepath.Join(paths.Gold, gold.DimFile), table.ReadOptions{})
	switch {
	case err == nil:
		dates, err := warehouse.DatesFromTable(dim)
		if err != nil {
			return err
		}
		if _, err := wh.LoadDates(ctx, dates); err != nil {
			return err
		}
	case errors.Is(err, fs.ErrNotExist):
		rt.Logger.Warn("date dimension missing, loading facts only")
	default:
		return fmt.Errorf("read date dimension: %w", err)
	}

	n, err := wh.Load(ctx, facts)
	if err != nil {
		return err
	}
	s.Loaded = n
	return nil
}

var contentTypes = map[string]string{
	".csv": "text/csv",
	".md":  "text/markdown",
}

// runPublish uploads the run's artifacts under <prefix>/<YYYYMMDD>/<run-id>/.
// Artifacts that were not produced are skipped.
func runPublish(ctx context.Context, rt *Runtime, s *State) error {
	if rt.Storage == nil {
		rt.Logger.Debug("publish skipped: storage disabled")
		return nil
	}

	paths := rt.Config.Paths
	day := s.Now.In(rt.Config.Audit.Location()).Format("20060102")
	prefix := storage.Key(rt.Config.Storage.Prefix, day, s.RunID.String())

	artifacts := []string{
		filepath.Join(paths.Gold, gold.FactFile),
		filepath.Join(paths.Gold, gold.DimFile),
		paths.QualityReport(),
		paths.DQReport(),
		paths.Trends(),
	}

	for _, path := range artifacts {
		key := storage.Key(prefix, filepath.Base(path))
		uploaded, err := upload(ctx, rt.Storage, key, path)
		if err != nil {
			return err
		}
		if uploaded {
			s.Published = append(s.Published, key)
		}
	}

	rt.Logger.Info("artifacts published",
		zap.String("prefix", prefix),
		zap.Int("count", len(s.Published)),
	)
	return nil
}

func upload(ctx context.Context, store storage.System, key, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	contentType, ok := contentTypes[filepath.Ext(path)]
	if !ok {
		contentType = "application/octet-stream"
	}
	if err := store.Upload(ctx, key, f, contentType); err != nil {
		return false, fmt.Errorf("upload %s: %w", key, err)
	}
	return true, nil
}
